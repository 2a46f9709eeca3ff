package suggest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashtagCandidates(t *testing.T) {
	got := HashtagCandidates("Shipping Go generics, today! Big wins for technology teams.")
	assert.Equal(t, []string{
		"#shipping", "#generics", "#today", "#wins", "#technology",
		"#productivity", "#motivation", "#success",
	}, got)
}

func TestHashtagCandidatesDeduplicatesAndCaps(t *testing.T) {
	got := HashtagCandidates("success success")
	assert.Equal(t, []string{
		"#success", "#productivity", "#motivation", "#inspiration",
		"#leadership", "#innovation", "#technology", "#business",
	}, got)
	assert.Nil(t, HashtagCandidates("   "))
}

func TestTrendingTopicsIsACopy(t *testing.T) {
	topics := TrendingTopics()
	assert.Len(t, topics, 5)
	assert.Equal(t, "AI Technology (125K)", topics[0].String())
	topics[0].Name = "changed"
	assert.Equal(t, "AI Technology", TrendingTopics()[0].Name)
}
