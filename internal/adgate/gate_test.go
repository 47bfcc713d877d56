package adgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ravelon/internal/clock"
	"ravelon/internal/domain"
)

func newGate(t *testing.T) (*Gate[string], *clock.Manual) {
	t.Helper()
	c := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return New[string](c), c
}

func TestCompleteBeforeMinDurationDoesNotRun(t *testing.T) {
	g, c := newGate(t)
	var calls int32
	ticket, err := g.Show(Request[string]{
		Kind:        domain.ActionEnhance,
		Label:       "Enhance",
		MinDuration: 5 * time.Second,
		Continue: func(context.Context) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "done", nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, g.Remaining())

	c.Advance(4999 * time.Millisecond)
	_, err = g.Complete(context.Background(), ticket.Token)
	require.ErrorIs(t, err, domain.ErrGateNotReady)
	require.Zero(t, atomic.LoadInt32(&calls))
	state, _ := g.Current()
	require.Equal(t, StateShowing, state)

	c.Advance(time.Millisecond)
	out, err := g.Complete(context.Background(), ticket.Token)
	require.NoError(t, err)
	require.Equal(t, "done", out)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	_, err = g.Complete(context.Background(), ticket.Token)
	require.ErrorIs(t, err, domain.ErrGateIdle)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestShowWhileShowingIsRejected(t *testing.T) {
	g, _ := newGate(t)
	first, err := g.Show(Request[string]{Kind: domain.ActionEnhance, MinDuration: time.Second, Continue: func(context.Context) (string, error) { return "first", nil }})
	require.NoError(t, err)

	_, err = g.Show(Request[string]{Kind: domain.ActionDownload, Continue: func(context.Context) (string, error) { return "second", nil }})
	require.ErrorIs(t, err, domain.ErrGateBusy)

	_, current := g.Current()
	require.NotNil(t, current)
	require.Equal(t, first.Token, current.Token)
}

func TestConcurrentCompleteRunsOnce(t *testing.T) {
	g, c := newGate(t)
	var calls int32
	ticket, err := g.Show(Request[string]{Kind: domain.ActionEnhance, MinDuration: time.Second, Continue: func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ok", nil
	}})
	require.NoError(t, err)
	c.Advance(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.Complete(context.Background(), ticket.Token)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCancelDropsContinuation(t *testing.T) {
	g, c := newGate(t)
	ran := false
	ticket, err := g.Show(Request[string]{Kind: domain.ActionUpload, Continue: func(context.Context) (string, error) {
		ran = true
		return "", nil
	}})
	require.NoError(t, err)

	require.ErrorIs(t, g.Cancel("wrong-token"), domain.ErrGateIdle)
	require.NoError(t, g.Cancel(ticket.Token))
	c.Advance(time.Minute)
	_, err = g.Complete(context.Background(), ticket.Token)
	require.ErrorIs(t, err, domain.ErrGateIdle)
	require.False(t, ran)

	state, cur := g.Current()
	require.Equal(t, StateIdle, state)
	require.Nil(t, cur)
}

func TestContinuationErrorIsReturned(t *testing.T) {
	g, _ := newGate(t)
	boom := errors.New("boom")
	ticket, err := g.Show(Request[string]{Kind: domain.ActionEnhance, Continue: func(context.Context) (string, error) { return "", boom }})
	require.NoError(t, err)

	_, err = g.Complete(context.Background(), ticket.Token)
	require.ErrorIs(t, err, boom)
	state, _ := g.Current()
	require.Equal(t, StateIdle, state)
}

func TestShowRequiresContinuation(t *testing.T) {
	g, _ := newGate(t)
	_, err := g.Show(Request[string]{Kind: domain.ActionEnhance})
	require.Error(t, err)
}
