package adgate

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ravelon/internal/domain"
	"ravelon/internal/metrics"
)

func transitions(label string) float64 {
	return testutil.ToFloat64(metrics.GateTransitions.WithLabelValues(label))
}

func TestGateTransitionsAreCounted(t *testing.T) {
	g, c := newGate(t)
	shown, busy, notReady, completed, cancelled :=
		transitions("shown"), transitions("busy"), transitions("not_ready"), transitions("completed"), transitions("cancelled")

	req := Request[string]{
		Kind:        domain.ActionEnhance,
		MinDuration: time.Second,
		Continue:    func(context.Context) (string, error) { return "ok", nil },
	}
	ticket, err := g.Show(req)
	require.NoError(t, err)
	_, err = g.Show(req)
	require.ErrorIs(t, err, domain.ErrGateBusy)
	_, err = g.Complete(context.Background(), ticket.Token)
	require.ErrorIs(t, err, domain.ErrGateNotReady)
	c.Advance(time.Second)
	_, err = g.Complete(context.Background(), ticket.Token)
	require.NoError(t, err)

	ticket, err = g.Show(req)
	require.NoError(t, err)
	require.NoError(t, g.Cancel(ticket.Token))

	require.Equal(t, shown+2, transitions("shown"))
	require.Equal(t, busy+1, transitions("busy"))
	require.Equal(t, notReady+1, transitions("not_ready"))
	require.Equal(t, completed+1, transitions("completed"))
	require.Equal(t, cancelled+1, transitions("cancelled"))
}
