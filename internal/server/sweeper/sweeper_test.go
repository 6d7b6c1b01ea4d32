package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJIT struct {
	mu      sync.Mutex
	pending int
	calls   int
	err     error
}

func (f *fakeJIT) ExpireDue(ctx context.Context, batch int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	n := min(batch, f.pending)
	f.pending -= n
	return n, nil
}

type fakeLinks struct {
	mu    sync.Mutex
	calls int
	n     int64
	err   error
}

func (f *fakeLinks) PurgeExpired(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func (f *fakeLinks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweepOnce_DrainsInBatches(t *testing.T) {
	j := &fakeJIT{pending: 250}
	l := &fakeLinks{n: 3}
	s := New(j, l, time.Minute, logging.Nop())

	before := testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("ok"))
	s.SweepOnce(context.Background())

	assert.Equal(t, 0, j.pending)
	assert.Equal(t, 3, j.calls)
	assert.Equal(t, 1, l.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("ok")))
}

func TestSweepOnce_ErrorsDoNotStopOtherWork(t *testing.T) {
	j := &fakeJIT{err: errors.New("db down")}
	l := &fakeLinks{}
	s := New(j, l, time.Minute, logging.Nop())

	before := testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("error"))
	s.SweepOnce(context.Background())

	assert.Equal(t, 1, j.calls)
	assert.Equal(t, 1, l.calls, "link purge still runs")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SweepRuns.WithLabelValues("error")))
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	j := &fakeJIT{}
	l := &fakeLinks{}
	s := New(j, l, 5*time.Millisecond, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return l.count() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_DefaultsInterval(t *testing.T) {
	s := New(&fakeJIT{}, &fakeLinks{}, 0, logging.Nop())
	assert.Equal(t, time.Minute, s.interval)
}
