// Package composer is the tweet authoring workflow: a draft with live
// length feedback, hashtag and suggestion helpers, media upload and
// submission through the query cache.
package composer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tweetsched/internal/api"
	"tweetsched/internal/logging"
	"tweetsched/internal/model"
	"tweetsched/internal/query"
	"tweetsched/internal/schedule"
	"tweetsched/internal/suggest"
	"tweetsched/internal/util"
)

const (
	MaxCharacters    = api.MaxContent
	WarningThreshold = 260
	MaxMedia         = api.MaxMedia
)

var (
	ErrEmpty     = errors.New("tweet content is empty")
	ErrTooLong   = errors.New("tweet is too long")
	ErrMediaFull = errors.New("media limit reached")
	ErrBusy      = errors.New("submission already in progress")
	ErrBadStatus = errors.New("new tweets are either draft or scheduled")
	ErrNoFiles   = errors.New("no files to upload")
	errNoBackend = errors.New("composer has no backend")
)

// Level is the counter color band.
type Level string

const (
	LevelNormal  Level = "normal"
	LevelWarning Level = "warning"
	LevelOver    Level = "over"
)

// Backend is the subset of the API client the composer calls.
type Backend interface {
	CreateTweet(ctx context.Context, req api.CreateTweetRequest) (model.Tweet, error)
	Upload(ctx context.Context, files []api.File) ([]string, error)
	Suggest(ctx context.Context, req api.SuggestRequest) ([]string, error)
	RecommendTimes(ctx context.Context, req api.RecommendTimesRequest) ([]string, error)
}

// Draft is a snapshot of the form.
type Draft struct {
	Content     string
	ScheduledAt time.Time
	Status      model.Status
	Media       []string
	Hashtags    []string
}

type Option func(*Composer)

func WithClock(now func() time.Time) Option { return func(c *Composer) { c.now = now } }

// WithLocation sets the zone for datetime-local schedule input.
func WithLocation(loc *time.Location) Option { return func(c *Composer) { c.loc = loc } }

type Composer struct {
	cache   *query.Cache
	backend Backend
	now     func() time.Time
	loc     *time.Location

	mu         sync.Mutex
	d          Draft
	submitting bool

	uploadMu sync.Mutex
}

func New(cache *query.Cache, backend Backend, opts ...Option) *Composer {
	c := &Composer{cache: cache, backend: backend, now: time.Now, loc: time.Local, d: Draft{Status: model.StatusDraft}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Draft returns a copy of the current form state.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.d
	d.Media = append([]string(nil), c.d.Media...)
	d.Hashtags = append([]string(nil), c.d.Hashtags...)
	return d
}

func (c *Composer) SetContent(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.d.Content = s
}

// Count is the number of characters in the content as typed.
func (c *Composer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return util.CharCount(c.d.Content)
}

// LevelFor classifies a character count.
func LevelFor(n int) Level {
	switch {
	case n > MaxCharacters:
		return LevelOver
	case n > WarningThreshold:
		return LevelWarning
	}
	return LevelNormal
}

func (c *Composer) Level() Level { return LevelFor(c.Count()) }

// Progress is the counter bar fill in percent, capped at 100.
func (c *Composer) Progress() float64 {
	p := float64(c.Count()) / MaxCharacters * 100
	if p > 100 {
		return 100
	}
	return p
}

// CanPost reports whether Submit would pass local validation.
func (c *Composer) CanPost() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return check(c.d.Content) == nil && !c.submitting
}

func check(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmpty
	}
	if util.CharCount(content) > MaxCharacters {
		return ErrTooLong
	}
	return nil
}

// AddHashtag appends tag to the content. Duplicates and tags that would
// push the content past the limit are skipped; the result reports whether
// the tag was added.
func (c *Composer) AddHashtag(tag string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false
	}
	if !strings.HasPrefix(tag, "#") {
		tag = "#" + tag
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, h := range c.d.Hashtags {
		if h == tag {
			return false
		}
	}
	if util.CharCount(c.d.Content)+1+util.CharCount(tag) > MaxCharacters {
		return false
	}
	c.d.Content += " " + tag
	c.d.Hashtags = append(c.d.Hashtags, tag)
	return true
}

// RemoveHashtag drops tag from the chip list and its first occurrence
// from the content.
func (c *Composer) RemoveHashtag(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, h := range c.d.Hashtags {
		if h == tag {
			c.d.Hashtags = append(c.d.Hashtags[:i], c.d.Hashtags[i+1:]...)
			c.d.Content = util.NormalizeWhitespace(strings.Replace(c.d.Content, tag, "", 1))
			return
		}
	}
}

// SelectSuggestion replaces the content with a suggestion.
func (c *Composer) SelectSuggestion(s string) { c.SetContent(s) }

// SelectTopic appends a lead-in for topic.
func (c *Composer) SelectTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.d.Content += " Thoughts on " + topic + ": "
}

// SetSchedule sets the publish time. The zero time means "now" on submit.
func (c *Composer) SetSchedule(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.d.ScheduledAt = t
}

// SetScheduleInput reads a datetime-local value; "" clears the schedule.
func (c *Composer) SetScheduleInput(value string) error {
	if strings.TrimSpace(value) == "" {
		c.SetSchedule(time.Time{})
		return nil
	}
	t, err := schedule.ParseLocal(value, c.loc)
	if err != nil {
		return err
	}
	c.SetSchedule(t)
	return nil
}

// ScheduleNextWindow schedules for the next hour outside quietHours.
func (c *Composer) ScheduleNextWindow(quietHours []int) time.Time {
	t := schedule.NextWindow(c.now(), quietHours)
	c.SetSchedule(t)
	return t
}

func (c *Composer) SetStatus(s model.Status) error {
	if s != model.StatusDraft && s != model.StatusScheduled {
		return ErrBadStatus
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.d.Status = s
	return nil
}

// HashtagCandidates returns local tag ideas for the current content.
func (c *Composer) HashtagCandidates() []string {
	c.mu.Lock()
	content := c.d.Content
	c.mu.Unlock()
	return suggest.HashtagCandidates(content)
}

// Upload sends files and appends the returned references. Uploads run one
// at a time and only fill the remaining media slots.
func (c *Composer) Upload(ctx context.Context, files []api.File) ([]string, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	c.uploadMu.Lock()
	defer c.uploadMu.Unlock()

	c.mu.Lock()
	room := MaxMedia - len(c.d.Media)
	c.mu.Unlock()
	if room <= 0 {
		return nil, ErrMediaFull
	}
	if len(files) > room {
		files = files[:room]
	}
	refs, err := c.backend.Upload(ctx, files)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.d.Media = append(c.d.Media, refs...)
	if len(c.d.Media) > MaxMedia {
		c.d.Media = c.d.Media[:MaxMedia]
	}
	c.mu.Unlock()
	return refs, nil
}

// Submit validates locally, creates the tweet and resets the form on
// success. Nothing is sent when validation fails, and a failed request
// keeps the form as it was.
func (c *Composer) Submit(ctx context.Context) (model.Tweet, error) {
	if c.backend == nil {
		return model.Tweet{}, errNoBackend
	}
	c.mu.Lock()
	if err := check(c.d.Content); err != nil {
		c.mu.Unlock()
		return model.Tweet{}, err
	}
	if c.submitting {
		c.mu.Unlock()
		return model.Tweet{}, ErrBusy
	}
	c.submitting = true
	req := api.CreateTweetRequest{
		Content:     strings.TrimSpace(c.d.Content),
		ScheduledAt: c.d.ScheduledAt,
		Status:      c.d.Status,
		Media:       append([]string(nil), c.d.Media...),
	}
	c.mu.Unlock()
	if req.ScheduledAt.IsZero() {
		req.ScheduledAt = c.now()
	}

	tw, err := query.Mutate(ctx, c.cache, func(ctx context.Context) (model.Tweet, error) {
		return c.backend.CreateTweet(ctx, req)
	}, query.KeyTweets, query.KeyAnalytics)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		logging.Warn("composer_submit_failed", map[string]any{"error": err})
		return model.Tweet{}, err
	}
	c.d = Draft{Status: model.StatusDraft}
	logging.Info("composer_submitted", map[string]any{"id": tw.ID, "status": string(tw.Status)})
	return tw, nil
}

// Suggestions returns backend drafts for topic unchanged.
func (c *Composer) Suggestions(ctx context.Context, topic string) ([]string, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, nil
	}
	return c.backend.Suggest(ctx, api.SuggestRequest{Topic: topic})
}

// OptimalTimes returns the backend's recommended posting times unchanged.
func (c *Composer) OptimalTimes(ctx context.Context) ([]string, error) {
	return c.backend.RecommendTimes(ctx, api.RecommendTimesRequest{})
}
