package genai

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var dataURLPattern = regexp.MustCompile(`^data:(image/[a-zA-Z+]+);base64,(.+)$`)

var anyImageHeader = regexp.MustCompile(`^data:image/\w+;base64,`)

// ParseDataURL accepts a data URL or raw base64 and returns the mime type and
// decoded bytes. The mime type defaults to image/jpeg.
func ParseDataURL(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	mimeType := "image/jpeg"
	payload := s
	if m := dataURLPattern.FindStringSubmatch(s); m != nil {
		mimeType = m[1]
		payload = m[2]
	} else {
		payload = anyImageHeader.ReplaceAllString(s, "")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("genai: invalid base64 image: %w", err)
	}
	return mimeType, data, nil
}

// DataURL renders bytes as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
