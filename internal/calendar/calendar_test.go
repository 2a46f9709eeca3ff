package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsched/internal/model"
	"tweetsched/internal/query"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeBackend stores tweets in memory. When gate is non-nil every
// Reschedule waits for a value on it; errs are returned in order.
type fakeBackend struct {
	mu      sync.Mutex
	tweets  map[string]model.Tweet
	sent    []time.Time
	gate    chan error
	started chan time.Time
	lists   int
	listErr error
}

func newBackend(tweets ...model.Tweet) *fakeBackend {
	b := &fakeBackend{tweets: make(map[string]model.Tweet)}
	for _, t := range tweets {
		b.tweets[t.ID] = t
	}
	return b
}

func (b *fakeBackend) ListTweets(context.Context) ([]model.Tweet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lists++
	if b.listErr != nil {
		return nil, b.listErr
	}
	out := make([]model.Tweet, 0, len(b.tweets))
	for _, t := range b.tweets {
		out = append(out, t)
	}
	return out, nil
}

func (b *fakeBackend) Reschedule(ctx context.Context, id string, start time.Time) (model.Tweet, error) {
	if b.started != nil {
		b.started <- start
	}
	if b.gate != nil {
		select {
		case err := <-b.gate:
			if err != nil {
				return model.Tweet{}, err
			}
		case <-ctx.Done():
			return model.Tweet{}, ctx.Err()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, start)
	t := b.tweets[id]
	t.ScheduledAt = start
	b.tweets[id] = t
	return t, nil
}

func (b *fakeBackend) DeleteTweet(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tweets[id]; !ok {
		return errors.New("not found")
	}
	delete(b.tweets, id)
	return nil
}

func (b *fakeBackend) sentTimes() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]time.Time(nil), b.sent...)
}

func tweet(id string, at time.Time) model.Tweet {
	return model.Tweet{ID: id, Content: "tweet " + id, Status: model.StatusScheduled, ScheduledAt: at}
}

func TestEventsSpanThirtyMinutes(t *testing.T) {
	s := New(query.New(), newBackend(tweet("b", base.Add(time.Hour)), tweet("a", base)))
	evs, err := s.Events(context.Background())
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "a", evs[0].ID)
	assert.Equal(t, base.Add(30*time.Minute), evs[0].End)
	assert.Equal(t, model.StatusScheduled, evs[1].Status)
	assert.Empty(t, evs[0].Phase)
}

func TestEventsFallBackToLastDataWhenRefetchFails(t *testing.T) {
	b := newBackend(tweet("a", base))
	c := query.New()
	s := New(c, b)
	ctx := context.Background()
	_, err := s.Events(ctx)
	require.NoError(t, err)

	down := errors.New("backend down")
	b.mu.Lock()
	b.listErr = down
	b.mu.Unlock()
	c.Invalidate(query.KeyTweets, "refresh")

	evs, err := s.Events(ctx)
	assert.ErrorIs(t, err, down)
	require.Len(t, evs, 1)
	assert.Equal(t, "a", evs[0].ID)
	assert.Equal(t, base, evs[0].Start)

	_, err = New(query.New(), b).Events(ctx)
	assert.ErrorIs(t, err, down)
}

func TestDropAndResizeRescheduleToNewStart(t *testing.T) {
	b := newBackend(tweet("a", base))
	s := New(query.New(), b)
	ctx := context.Background()

	in, err := s.Drop(ctx, "a", base.Add(2*time.Hour), base.Add(2*time.Hour+30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, in.Phase)

	in, err = s.Resize(ctx, "a", base.Add(3*time.Hour), base.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, PhaseConfirmed, in.Phase)

	assert.Equal(t, []time.Time{base.Add(2 * time.Hour), base.Add(3 * time.Hour)}, b.sentTimes())
	evs, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, base.Add(3*time.Hour), evs[0].Start, "re-fetched after confirmation")
	assert.Equal(t, base.Add(3*time.Hour+Span), evs[0].End)
}

func TestPendingIntentOverlaysThenRevertsOnFailure(t *testing.T) {
	b := newBackend(tweet("a", base))
	b.gate = make(chan error)
	b.started = make(chan time.Time, 1)
	s := New(query.New(), b)
	ctx := context.Background()

	done := make(chan Intent)
	go func() {
		in, _ := s.Drop(ctx, "a", base.Add(time.Hour), base.Add(90*time.Minute))
		done <- in
	}()
	<-b.started
	evs, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhasePending, evs[0].Phase)
	assert.Equal(t, base.Add(time.Hour), evs[0].Start)

	b.gate <- errors.New("server said no")
	in := <-done
	assert.Equal(t, PhaseReverted, in.Phase)
	assert.EqualError(t, in.Err, "server said no")

	evs, err = s.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, base, evs[0].Start, "reverted to server time")
	assert.Empty(t, evs[0].Phase)
}

func TestLatestIntentWins(t *testing.T) {
	b := newBackend(tweet("a", base))
	b.gate = make(chan error)
	b.started = make(chan time.Time, 3)
	s := New(query.New(), b)
	ctx := context.Background()

	results := make(chan Intent, 3)
	drop := func(at time.Time) {
		in, _ := s.Drop(ctx, "a", at, at.Add(Span))
		results <- in
	}
	first := base.Add(1 * time.Hour)
	go drop(first)
	assert.Equal(t, first, <-b.started)

	second, third := base.Add(2*time.Hour), base.Add(3*time.Hour)
	go drop(second)
	require.Eventually(t, func() bool {
		in, _ := s.Status("a")
		return in.Start.Equal(second)
	}, time.Second, time.Millisecond)
	go drop(third)
	require.Eventually(t, func() bool {
		in, _ := s.Status("a")
		return in.Start.Equal(third)
	}, time.Second, time.Millisecond)

	// First completes while newer intents wait. The second is skipped when
	// its turn comes, so the next send is the third.
	b.gate <- nil
	assert.Equal(t, third, <-b.started)

	evs, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, third, evs[0].Start, "older completion must not clear the newer overlay")
	assert.Equal(t, PhasePending, evs[0].Phase)

	b.gate <- nil
	phases := map[time.Time]Phase{}
	for i := 0; i < 3; i++ {
		in := <-results
		phases[in.Start] = in.Phase
	}
	assert.Equal(t, PhaseConfirmed, phases[first])
	assert.Equal(t, PhaseSuperseded, phases[second])
	assert.Equal(t, PhaseConfirmed, phases[third])
	assert.Equal(t, []time.Time{first, third}, b.sentTimes())

	evs, err = s.Events(ctx)
	require.NoError(t, err)
	assert.Equal(t, third, evs[0].Start)
	assert.Empty(t, evs[0].Phase)
}

func TestCancelledContextReverts(t *testing.T) {
	b := newBackend(tweet("a", base))
	b.gate = make(chan error)
	b.started = make(chan time.Time, 1)
	var outcomes []Phase
	var mu sync.Mutex
	s := New(query.New(), b, OnOutcome(func(in Intent) {
		mu.Lock()
		outcomes = append(outcomes, in.Phase)
		mu.Unlock()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := s.Drop(ctx, "a", base.Add(time.Hour), base.Add(2*time.Hour))
		done <- err
	}()
	<-b.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	in, ok := s.Status("a")
	require.True(t, ok)
	assert.Equal(t, PhaseReverted, in.Phase)
	mu.Lock()
	assert.Equal(t, []Phase{PhaseReverted}, outcomes)
	mu.Unlock()
	assert.Empty(t, b.sentTimes())
}

func TestUnknownTweet(t *testing.T) {
	s := New(query.New(), newBackend(tweet("a", base)))
	_, err := s.Drop(context.Background(), "missing", base, base.Add(Span))
	assert.ErrorIs(t, err, ErrUnknownTweet)
}

func TestUpdateScheduleParsesLocalInput(t *testing.T) {
	b := newBackend(tweet("a", base))
	s := New(query.New(), b, WithLocation(time.UTC))
	in, err := s.UpdateSchedule(context.Background(), "a", "2025-03-02T18:45")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 2, 18, 45, 0, 0, time.UTC), in.Start)
	_, err = s.UpdateSchedule(context.Background(), "a", "later")
	assert.Error(t, err)
}

func TestDeleteInvalidatesOnSuccessOnly(t *testing.T) {
	b := newBackend(tweet("a", base))
	c := query.New()
	s := New(c, b)
	ctx := context.Background()
	_, err := s.Events(ctx)
	require.NoError(t, err)

	require.Error(t, s.Delete(ctx, "missing"))
	assert.True(t, c.Status(query.KeyTweets).Fresh)

	require.NoError(t, s.Delete(ctx, "a"))
	evs, err := s.Events(ctx)
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestSelectSlotOnlyObserves(t *testing.T) {
	b := newBackend()
	var got []time.Time
	s := New(query.New(), b, OnSelect(func(start, end time.Time) { got = append(got, start, end) }))
	s.SelectSlot(base, base.Add(time.Hour))
	assert.Equal(t, []time.Time{base, base.Add(time.Hour)}, got)
	assert.Zero(t, b.lists)
	assert.Empty(t, b.sentTimes())
}
