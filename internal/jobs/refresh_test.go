package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"tweetsched/internal/query"
)

type recorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recorder) Invalidate(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, key+":"+reason)
}

func TestRunRefreshOnceInvalidatesThenFetches(t *testing.T) {
	rec := &recorder{}
	var fetched bool
	err := RunRefreshOnce(context.Background(), rec, query.KeyAnalytics, func(context.Context) error {
		if len(rec.reasons) != 1 {
			t.Fatal("refetch ran before invalidation")
		}
		fetched = true
		return nil
	})
	if err != nil || !fetched {
		t.Fatalf("err=%v fetched=%v", err, fetched)
	}
	if rec.reasons[0] != "analytics:refresh" {
		t.Fatalf("unexpected reason %q", rec.reasons[0])
	}
}

func TestRunRefreshLoopTicksUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := query.New()
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- RunRefreshLoop(ctx, c, query.KeyAnalytics, 5*time.Millisecond, func(ctx context.Context) error {
			_, err := query.Fetch(ctx, c, query.KeyAnalytics, func(context.Context) (int, error) {
				return int(ticks.Add(1)), nil
			})
			return err
		})
	}()
	deadline := time.After(2 * time.Second)
	for ticks.Load() < 3 {
		select {
		case <-deadline:
			t.Fatal("loop did not tick")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunRefreshLoopSurvivesErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = RunRefreshLoop(ctx, &recorder{}, query.KeyAnalytics, 2*time.Millisecond, func(context.Context) error {
			calls.Add(1)
			return errors.New("backend down")
		})
	}()
	for calls.Load() < 2 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}
