package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterStaysInRange(t *testing.T) {
	j := tickerJitter{MaxJitter: 100 * time.Millisecond}
	for i := 0; i < 1000; i++ {
		d := j.Jitter(time.Second)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.Less(t, d, 1100*time.Millisecond)
	}

	// capped at half the period
	big := tickerJitter{MaxJitter: time.Hour}
	for i := 0; i < 100; i++ {
		assert.GreaterOrEqual(t, big.Jitter(time.Second), 500*time.Millisecond)
	}

	assert.Equal(t, time.Second, tickerJitter{}.Jitter(time.Second))
}

func TestRunWithTickerStops(t *testing.T) {
	var calls atomic.Int32
	err := RunWithTicker(context.Background(), &Interval{Duration: 5 * time.Millisecond, Immediate: true}, func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			return ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunWithTickerPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	err := RunWithTicker(context.Background(), &Interval{Duration: 5 * time.Millisecond}, func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestRunWithTickerCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := RunWithTicker(ctx, &Interval{Duration: time.Hour}, func(ctx context.Context) error {
		t.Fatal("should not tick")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunWithTickerRejectsBadInterval(t *testing.T) {
	assert.Error(t, RunWithTicker(context.Background(), &Interval{}, func(ctx context.Context) error { return nil }))
	assert.Error(t, RunWithTicker(context.Background(), nil, func(ctx context.Context) error { return nil }))
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
