// Package calendar projects cached tweets onto a calendar and applies
// drag, resize and edit gestures as optimistic reschedules.
//
// Each reschedule is an intent that is pending until the backend answers,
// then confirmed or reverted. Intents for one tweet are sent one at a time
// and the latest intent wins: an intent overtaken before its turn is
// superseded and never sent, and an older completion never clears a newer
// pending intent. Cancelling the caller's context reverts its intent.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tweetsched/internal/logging"
	"tweetsched/internal/metrics"
	"tweetsched/internal/model"
	"tweetsched/internal/query"
	"tweetsched/internal/schedule"
	"tweetsched/internal/util"
)

// Span is the nominal length of a calendar event. It is not stored.
const Span = 30 * time.Minute

var ErrUnknownTweet = errors.New("tweet not in calendar")

type Phase string

const (
	PhasePending    Phase = "pending"
	PhaseConfirmed  Phase = "confirmed"
	PhaseReverted   Phase = "reverted"
	PhaseSuperseded Phase = "superseded"
)

// Backend is the subset of the API client the calendar uses.
type Backend interface {
	ListTweets(ctx context.Context) ([]model.Tweet, error)
	Reschedule(ctx context.Context, id string, start time.Time) (model.Tweet, error)
	DeleteTweet(ctx context.Context, id string) error
}

// Event is one calendar entry.
type Event struct {
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Status model.Status
	// Phase is PhasePending while a reschedule is in flight, else empty.
	Phase Phase
	Tweet model.Tweet
}

// Intent is one requested reschedule.
type Intent struct {
	Seq     uint64
	TweetID string
	Start   time.Time
	Phase   Phase
	Err     error
}

type Option func(*Sync)

// OnSelect registers the empty-slot observation hook.
func OnSelect(fn func(start, end time.Time)) Option { return func(s *Sync) { s.onSelect = fn } }

// OnOutcome is called whenever an intent leaves the pending phase.
func OnOutcome(fn func(Intent)) Option { return func(s *Sync) { s.onOutcome = fn } }

// WithLocation sets the zone used to read edit-form values.
func WithLocation(loc *time.Location) Option { return func(s *Sync) { s.loc = loc } }

// Sync keeps calendar events in step with the tweets cache.
type Sync struct {
	cache   *query.Cache
	backend Backend
	loc     *time.Location

	mu     sync.Mutex
	seq    uint64
	latest map[string]*Intent
	turns  map[string]chan struct{}

	onSelect  func(start, end time.Time)
	onOutcome func(Intent)
}

func New(cache *query.Cache, backend Backend, opts ...Option) *Sync {
	s := &Sync{
		cache:   cache,
		backend: backend,
		loc:     time.Local,
		latest:  make(map[string]*Intent),
		turns:   make(map[string]chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sync) tweets(ctx context.Context) ([]model.Tweet, error) {
	return query.Fetch(ctx, s.cache, query.KeyTweets, s.backend.ListTweets)
}

// Events returns one event per cached tweet ordered by start, with pending
// intents overlaid on the server's times. When a refetch fails the events
// of the last successful fetch are returned together with the error.
func (s *Sync) Events(ctx context.Context) ([]Event, error) {
	tweets, err := s.tweets(ctx)
	if err != nil {
		last, ok := query.Peek[[]model.Tweet](s.cache, query.KeyTweets)
		if !ok {
			return nil, err
		}
		return s.events(last), err
	}
	return s.events(tweets), nil
}

func (s *Sync) events(tweets []model.Tweet) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(tweets))
	for _, t := range tweets {
		ev := Event{
			ID:     t.ID,
			Title:  util.Truncate(t.Content, 40),
			Start:  t.ScheduledAt,
			Status: t.Status,
			Tweet:  t,
		}
		if in, ok := s.latest[t.ID]; ok && in.Phase == PhasePending {
			ev.Start, ev.Phase = in.Start, PhasePending
		}
		ev.End = ev.Start.Add(Span)
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Drop handles an event dragged to a new slot. Only the start matters.
func (s *Sync) Drop(ctx context.Context, id string, start, end time.Time) (Intent, error) {
	return s.Reschedule(ctx, id, start)
}

// Resize handles an event stretched or shrunk. Duration is not stored, so
// this is a reschedule to the new start.
func (s *Sync) Resize(ctx context.Context, id string, start, end time.Time) (Intent, error) {
	return s.Reschedule(ctx, id, start)
}

// UpdateSchedule applies a datetime-local value from the edit form.
func (s *Sync) UpdateSchedule(ctx context.Context, id, value string) (Intent, error) {
	start, err := schedule.ParseLocal(value, s.loc)
	if err != nil {
		return Intent{}, err
	}
	return s.Reschedule(ctx, id, start)
}

// SelectSlot observes a click on an empty range. It changes nothing.
func (s *Sync) SelectSlot(start, end time.Time) {
	logging.Info("calendar_slot_selected", map[string]any{"start": start, "end": end})
	if s.onSelect != nil {
		s.onSelect(start, end)
	}
}

// Status returns the most recent intent for id.
func (s *Sync) Status(id string) (Intent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.latest[id]
	if !ok {
		return Intent{}, false
	}
	return *in, true
}

// Reschedule moves tweet id to start. It blocks until the intent is
// resolved and returns its final state. A backend failure is returned
// along with the reverted intent.
func (s *Sync) Reschedule(ctx context.Context, id string, start time.Time) (Intent, error) {
	tweets, err := s.tweets(ctx)
	if err != nil {
		return Intent{}, err
	}
	if !contains(tweets, id) {
		return Intent{}, fmt.Errorf("%w: %s", ErrUnknownTweet, id)
	}

	in, turn := s.begin(id, start)

	select {
	case turn <- struct{}{}:
	case <-ctx.Done():
		return s.resolve(in, PhaseReverted, ctx.Err()), ctx.Err()
	}
	defer func() { <-turn }()

	if !s.isLatest(in) {
		return s.resolve(in, PhaseSuperseded, nil), nil
	}
	_, err = query.Mutate(ctx, s.cache, func(ctx context.Context) (model.Tweet, error) {
		return s.backend.Reschedule(ctx, id, start)
	}, query.KeyTweets)
	if err != nil {
		return s.resolve(in, PhaseReverted, err), err
	}
	return s.resolve(in, PhaseConfirmed, nil), nil
}

// begin records a new pending intent. Older intents for the same tweet
// stop being the latest and resolve as superseded.
func (s *Sync) begin(id string, start time.Time) (*Intent, chan struct{}) {
	s.mu.Lock()
	s.seq++
	in := &Intent{Seq: s.seq, TweetID: id, Start: start, Phase: PhasePending}
	s.latest[id] = in
	turn, ok := s.turns[id]
	if !ok {
		turn = make(chan struct{}, 1)
		s.turns[id] = turn
	}
	s.mu.Unlock()
	metrics.IncOptimisticOutcome(string(PhasePending))
	logging.Debug("calendar_intent_pending", map[string]any{"id": id, "seq": in.Seq, "start": start})
	return in, turn
}

func (s *Sync) isLatest(in *Intent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[in.TweetID] == in
}

// resolve finalizes in. Only the latest intent for a tweet is visible to
// Events and Status; older ones report their outcome to the caller only.
func (s *Sync) resolve(in *Intent, phase Phase, err error) Intent {
	s.mu.Lock()
	if s.latest[in.TweetID] != in && phase == PhaseReverted {
		// A newer intent already replaced this one on screen.
		phase = PhaseSuperseded
	}
	in.Phase, in.Err = phase, err
	out := *in
	s.mu.Unlock()

	metrics.IncOptimisticOutcome(string(phase))
	fields := map[string]any{"id": in.TweetID, "seq": in.Seq, "phase": string(phase)}
	if err != nil {
		fields["error"] = err
		logging.Warn("calendar_intent_resolved", fields)
	} else {
		logging.Debug("calendar_intent_resolved", fields)
	}
	if s.onOutcome != nil {
		s.onOutcome(out)
	}
	return out
}

// Delete removes a tweet and refreshes the calendar on success.
func (s *Sync) Delete(ctx context.Context, id string) error {
	_, err := query.Mutate(ctx, s.cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.backend.DeleteTweet(ctx, id)
	}, query.KeyTweets)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.latest, id)
	s.mu.Unlock()
	return nil
}

func contains(tweets []model.Tweet, id string) bool {
	for _, t := range tweets {
		if t.ID == id {
			return true
		}
	}
	return false
}
