package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inFlightProbe struct {
	current atomic.Int64
	peak    atomic.Int64
}

func (p *inFlightProbe) enter() {
	n := p.current.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (p *inFlightProbe) leave() { p.current.Add(-1) }

func TestProcessBoundsInFlight(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		n     int
		limit int
	}{
		{name: "limit one", n: 20, limit: 1},
		{name: "limit three", n: 50, limit: 3},
		{name: "limit equals n", n: 16, limit: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			items := make([]int, tt.n)
			for i := range items {
				items[i] = i
			}
			probe := &inFlightProbe{}

			results := Values(context.Background(), items, tt.limit, func(_ context.Context, v int) (int, error) {
				probe.enter()
				defer probe.leave()
				time.Sleep(time.Millisecond)
				return v * 2, nil
			})

			require.Len(t, results, tt.n)
			assert.LessOrEqual(t, probe.peak.Load(), int64(tt.limit))
			for i, r := range results {
				assert.Equal(t, i, r.Index)
				assert.Equal(t, i*2, r.Value)
				assert.NoError(t, r.Err)
			}
		})
	}
}

func TestProcessIsolatesFailures(t *testing.T) {
	t.Parallel()
	boom := errors.New("transport down")
	var completed atomic.Int64

	results := Values(context.Background(), []string{"a", "b", "c", "d", "e"}, 2, func(_ context.Context, v string) (string, error) {
		if v == "c" {
			return "", boom
		}
		if v == "d" {
			panic("unexpected")
		}
		completed.Add(1)
		return v, nil
	})

	require.Len(t, results, 5)
	assert.Equal(t, int64(3), completed.Load())
	assert.Equal(t, 2, Failures(results))
	assert.ErrorIs(t, results[2].Err, boom)
	assert.ErrorIs(t, results[3].Err, ErrPanic)
	assert.Equal(t, "e", results[4].Value)
}

func TestProcessPullsLazily(t *testing.T) {
	t.Parallel()
	var pulled, running atomic.Int64
	release := make(chan struct{})

	seq := func(yield func(int) bool) {
		for i := 0; i < 6; i++ {
			pulled.Add(1)
			if !yield(i) {
				return
			}
		}
	}

	done := make(chan []Result[int, int])
	go func() {
		done <- Process(context.Background(), seq, 2, func(_ context.Context, v int) (int, error) {
			running.Add(1)
			<-release
			return v, nil
		})
	}()

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, time.Millisecond)
	assert.LessOrEqual(t, pulled.Load(), int64(3))

	close(release)
	results := <-done
	assert.Len(t, results, 6)
	assert.Equal(t, int64(6), pulled.Load())
}

func TestProcessEmptyAndUnbounded(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Values(context.Background(), []int(nil), 3, func(context.Context, int) (int, error) { return 0, nil }))

	results := Values(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, v int) (int, error) { return v, nil })
	assert.Len(t, results, 3)
}

func TestProcessIgnoresCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	results := Values(ctx, []int{1, 2, 3, 4}, 2, func(context.Context, int) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	assert.Len(t, results, 4)
	assert.Equal(t, int64(4), calls.Load())
}
