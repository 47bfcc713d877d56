package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerLevels(t *testing.T) {
	cases := []struct {
		env, level string
		want       zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"test", "", zerolog.Disabled},
		{"production", "warn", zerolog.WarnLevel},
		{"production", "bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		l := newLogger(&buf, tc.env, tc.level)
		if got := l.GetLevel(); got != tc.want {
			t.Fatalf("env=%s level=%q: got %v want %v", tc.env, tc.level, got, tc.want)
		}
	}
}

func TestComponentTagsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Component(newLogger(&buf, "production", ""), "ledger")
	l.Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if line["service"] != "ravelon" || line["component"] != "ledger" || line["message"] != "hello" {
		t.Fatalf("unexpected log line: %#v", line)
	}
}
