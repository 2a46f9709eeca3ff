// Package suggest holds the composer's local writing aids: hashtag
// candidates derived from the draft and a fixed list of trending topics.
package suggest

import (
	"fmt"

	"tweetsched/internal/util"
)

const (
	maxKeywordTags = 5
	maxCandidates  = 8
	minKeywordLen  = 4
)

// TrendingTags are always offered after the keyword tags.
var TrendingTags = []string{
	"#productivity", "#motivation", "#success", "#inspiration",
	"#leadership", "#innovation", "#technology", "#business",
}

// Topic is a trending subject with its mention volume.
type Topic struct {
	Name   string
	Volume int
}

func (t Topic) String() string {
	switch {
	case t.Volume >= 1_000_000:
		return fmt.Sprintf("%s (%.1fM)", t.Name, float64(t.Volume)/1_000_000)
	case t.Volume >= 1000:
		return fmt.Sprintf("%s (%dK)", t.Name, t.Volume/1000)
	}
	return fmt.Sprintf("%s (%d)", t.Name, t.Volume)
}

var trending = []Topic{
	{Name: "AI Technology", Volume: 125000},
	{Name: "Remote Work", Volume: 89000},
	{Name: "Sustainability", Volume: 76000},
	{Name: "Digital Marketing", Volume: 65000},
	{Name: "Mental Health", Volume: 54000},
}

// TrendingTopics returns a copy of the static topic list.
func TrendingTopics() []Topic {
	return append([]Topic(nil), trending...)
}

// HashtagCandidates turns the first few long words of content into tags,
// appends the trending tags and returns at most eight unique entries.
// Blank content has no candidates.
func HashtagCandidates(content string) []string {
	words := util.Keywords(content)
	if len(words) == 0 {
		return nil
	}
	tags := make([]string, 0, maxKeywordTags+len(TrendingTags))
	for _, w := range words {
		if util.CharCount(w) < minKeywordLen {
			continue
		}
		tags = append(tags, "#"+w)
		if len(tags) == maxKeywordTags {
			break
		}
	}
	tags = append(tags, TrendingTags...)

	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, maxCandidates)
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}
