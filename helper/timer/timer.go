package timer

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"runtime"
	"time"

	"github.com/lthibault/jitterbug/v2"

	log "github.com/sirupsen/logrus"
)

// ErrStop ends RunWithTicker without an error being reported to the caller.
var ErrStop = errors.New("timer: stop")

type Interval struct {
	Duration  time.Duration
	Jitter    time.Duration
	Immediate bool // run once before the first tick
}

// Valid reports whether the interval can drive a ticker.
func (i *Interval) Valid() bool {
	return i != nil && i.Duration > 0 && i.Jitter >= 0
}

type tickerJitter struct {
	MaxJitter time.Duration
}

// Jitter spreads d uniformly over [d-MaxJitter, d+MaxJitter). MaxJitter is
// capped at half of d so the ticker never fires back to back.
func (j tickerJitter) Jitter(d time.Duration) time.Duration {
	limit := j.MaxJitter
	if limit > d/2 {
		limit = d / 2
	}
	if limit <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(2*limit))) - limit
}

// RunWithTicker runs f periodically until ctx is cancelled or f returns an error.
// Returning ErrStop from f stops the loop and yields nil.
func RunWithTicker(ctx context.Context, interval *Interval, f func(ctx context.Context) error) error {
	if !interval.Valid() {
		return errors.New("timer: invalid interval")
	}
	funcName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()

	call := func() error {
		err := f(ctx)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrStop):
			log.Debugf("RunWithTicker: %s asked to stop", funcName)
			return ErrStop
		default:
			log.Errorf("RunWithTicker: function %s returned error: %v", funcName, err)
			return err
		}
	}

	log.Debugf("RunWithTicker: running %s every %v (jitter %v)", funcName, interval.Duration, interval.Jitter)

	if interval.Immediate {
		if err := call(); err != nil {
			return stopped(err)
		}
	}

	t := jitterbug.New(interval.Duration, tickerJitter{MaxJitter: interval.Jitter})
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debugf("RunWithTicker: context cancelled for %s", funcName)
			return ctx.Err()
		case <-t.C:
			if err := call(); err != nil {
				return stopped(err)
			}
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func stopped(err error) error {
	if errors.Is(err, ErrStop) {
		return nil
	}
	return err
}
