package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a tweet. It only moves forward:
// draft -> scheduled -> posted.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPosted    Status = "posted"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusDraft, StatusScheduled, StatusPosted}

func (s Status) rank() int {
	switch s {
	case StatusDraft:
		return 0
	case StatusScheduled:
		return 1
	case StatusPosted:
		return 2
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.rank() >= 0 }

// CanTransition reports whether a tweet in status s may move to next.
// Staying in place is allowed; moving backwards is not.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

// ParseStatus converts user input into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown tweet status %q", v)
	}
	return s, nil
}

// Tweet is the client's cached copy of a backend tweet. The backend owns it.
type Tweet struct {
	ID          string    `json:"_id"`
	Content     string    `json:"content"`
	Status      Status    `json:"status"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Media       []string  `json:"media,omitempty"`
	// Engagement counters are populated only once the tweet is posted.
	Likes       int `json:"likes,omitempty"`
	Retweets    int `json:"retweets,omitempty"`
	Impressions int `json:"impressions,omitempty"`
}

// Engagement weighs a retweet twice as much as a like.
func (t Tweet) Engagement() int { return t.Likes + 2*t.Retweets }

// User is the authenticated profile held for the lifetime of a session.
type User struct {
	ID       string `json:"_id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// DisplayName falls back to the email when no name is set.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session pairs a bearer token with the profile it was issued for.
type Session struct {
	Token string
	User  User
}

// Bucket classifies a posted tweet's performance.
type Bucket string

const (
	BucketViral           Bucket = "viral"
	BucketPerforming      Bucket = "performing"
	BucketUnderperforming Bucket = "underperforming"
)

// Buckets lists buckets from best to worst.
var Buckets = []Bucket{BucketViral, BucketPerforming, BucketUnderperforming}

// ScoredTweet is one entry of the server-side performance ranking.
type ScoredTweet struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Bucket Bucket  `json:"bucket"`
}

// PerformanceCounts are the bucket totals computed by the backend.
type PerformanceCounts struct {
	Total           int `json:"total"`
	Viral           int `json:"viral"`
	Performing      int `json:"performing"`
	Underperforming int `json:"underperforming"`
}

// Count returns the total for one bucket.
func (c PerformanceCounts) Count(b Bucket) int {
	switch b {
	case BucketViral:
		return c.Viral
	case BucketPerforming:
		return c.Performing
	case BucketUnderperforming:
		return c.Underperforming
	}
	return 0
}

// Performance groups the counts with the scored list.
type Performance struct {
	Counts PerformanceCounts `json:"counts"`
	Scored []ScoredTweet     `json:"scored"`
}

// Analytics is a read-only snapshot recomputed by the backend.
type Analytics struct {
	Total       int         `json:"total"`
	Scheduled   int         `json:"scheduled"`
	Posted      int         `json:"posted"`
	Drafts      int         `json:"drafts"`
	Performance Performance `json:"performance"`
}
