// Package analytics shapes the backend's analytics snapshot and the tweet
// list into the series the dashboard renders. Nothing here scores tweets;
// buckets and scores come from the server.
package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"tweetsched/internal/model"
)

// TopN is how many scored tweets the performance chart shows.
const TopN = 10

// TrendWindow is how many recent posts the trend chart covers.
const TrendWindow = 7

// Slice is one segment of the performance distribution.
type Slice struct {
	Bucket model.Bucket
	Count  int
	// Share is Count over the snapshot total, in percent.
	Share float64
}

// Distribution returns the non-empty buckets, best first.
func Distribution(a model.Analytics) []Slice {
	counts := a.Performance.Counts
	var out []Slice
	for _, b := range model.Buckets {
		n := counts.Count(b)
		if n <= 0 {
			continue
		}
		s := Slice{Bucket: b, Count: n}
		if counts.Total > 0 {
			s.Share = float64(n) / float64(counts.Total) * 100
		}
		out = append(out, s)
	}
	return out
}

// Bar is one entry of the top performing chart.
type Bar struct {
	Label  string
	ID     string
	Score  float64
	Bucket model.Bucket
}

// TopScored keeps the server ranking and labels the first n entries.
func TopScored(a model.Analytics, n int) []Bar {
	scored := a.Performance.Scored
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}
	out := make([]Bar, 0, len(scored))
	for i, s := range scored {
		out = append(out, Bar{Label: fmt.Sprintf("Tweet %d", i+1), ID: s.ID, Score: s.Score, Bucket: s.Bucket})
	}
	return out
}

// Point is one day of the engagement trend.
type Point struct {
	Label       string
	Impressions int
	Likes       int
	Retweets    int
	Engagement  int
}

// Trends covers the last TrendWindow posted tweets in list order.
func Trends(tweets []model.Tweet) []Point {
	posted := byStatus(tweets, model.StatusPosted)
	if len(posted) > TrendWindow {
		posted = posted[len(posted)-TrendWindow:]
	}
	out := make([]Point, 0, len(posted))
	for i, t := range posted {
		out = append(out, Point{
			Label:       fmt.Sprintf("Day %d", i+1),
			Impressions: t.Impressions,
			Likes:       t.Likes,
			Retweets:    t.Retweets,
			Engagement:  t.Engagement(),
		})
	}
	return out
}

// Summary is the content insights panel.
type Summary struct {
	Posted      int
	Impressions int
	Likes       int
	Retweets    int
	// AvgEngagement is likes plus retweets per posted tweet, rounded.
	AvgEngagement int
	// Rate is likes plus retweets over impressions in percent, two decimals.
	Rate float64
}

// Insights totals the posted tweets.
func Insights(tweets []model.Tweet) Summary {
	var s Summary
	for _, t := range byStatus(tweets, model.StatusPosted) {
		s.Posted++
		s.Impressions += t.Impressions
		s.Likes += t.Likes
		s.Retweets += t.Retweets
	}
	interactions := float64(s.Likes + s.Retweets)
	if s.Posted > 0 {
		s.AvgEngagement = int(math.Round(interactions / float64(s.Posted)))
	}
	if s.Impressions > 0 {
		s.Rate = math.Round(interactions/float64(s.Impressions)*100*100) / 100
	}
	return s
}

// RateBar is the insights progress bar fill: ten times the rate, capped.
func (s Summary) RateBar() float64 { return math.Min(s.Rate*10, 100) }

// GroupByStatus splits tweets per status, keeping list order inside each.
func GroupByStatus(tweets []model.Tweet) map[model.Status][]model.Tweet {
	out := make(map[model.Status][]model.Tweet, len(model.Statuses))
	for _, t := range tweets {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// Card is one headline metric.
type Card struct {
	Title string
	Value int
}

// Cards are the headline counters in display order.
func Cards(a model.Analytics) []Card {
	return []Card{
		{Title: "Total Tweets", Value: a.Total},
		{Title: "Scheduled", Value: a.Scheduled},
		{Title: "Posted", Value: a.Posted},
		{Title: "Drafts", Value: a.Drafts},
	}
}

// HourlyEngagement aggregates posted tweets into per-hour buckets in loc,
// keyed by the hour they went out.
func HourlyEngagement(tweets []model.Tweet, loc *time.Location) map[time.Time]int {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make(map[time.Time]int)
	for _, t := range byStatus(tweets, model.StatusPosted) {
		ts := t.ScheduledAt.In(loc)
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, loc)
		buckets[key] += t.Engagement()
	}
	return buckets
}

// SortedBucketKeys returns sorted hour keys.
func SortedBucketKeys(m map[time.Time]int) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

func byStatus(tweets []model.Tweet, s model.Status) []model.Tweet {
	var out []model.Tweet
	for _, t := range tweets {
		if t.Status == s {
			out = append(out, t)
		}
	}
	return out
}
