package mockbackend

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tweetsched/internal/model"
	"tweetsched/internal/util"
)

type createTweet struct {
	Content     string       `json:"content" binding:"required,max=280"`
	ScheduledAt time.Time    `json:"scheduledAt"`
	Status      model.Status `json:"status" binding:"omitempty,oneof=draft scheduled"`
	Media       []string     `json:"media" binding:"max=4"`
}

type updateTweet struct {
	Content     *string       `json:"content" binding:"omitempty,max=280"`
	ScheduledAt *time.Time    `json:"scheduledAt"`
	Status      *model.Status `json:"status" binding:"omitempty,oneof=draft scheduled posted"`
}

func (s *Server) owned(c *gin.Context) (*record, bool) {
	r, ok := s.tweets[c.Param("id")]
	if !ok || r.owner != c.GetString(ctxUserID) {
		return nil, false
	}
	return r, true
}

func (s *Server) listTweets(c *gin.Context) {
	respond(c, http.StatusOK, s.Tweets(c.GetString(ctxUserID)))
}

func (s *Server) getTweet(c *gin.Context) {
	s.mu.RLock()
	r, ok := s.owned(c)
	var t model.Tweet
	if ok {
		t = r.tweet
	}
	s.mu.RUnlock()
	if !ok {
		fail(c, http.StatusNotFound, "Tweet not found")
		return
	}
	respond(c, http.StatusOK, t)
}

func (s *Server) createTweet(c *gin.Context) {
	var req createTweet
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		fail(c, http.StatusBadRequest, "Content is required and must be at most 280 characters")
		return
	}
	if req.Status == "" {
		req.Status = model.StatusDraft
	}
	if req.ScheduledAt.IsZero() {
		req.ScheduledAt = s.now()
	}
	t := model.Tweet{
		ID:          uuid.NewString(),
		Content:     req.Content,
		Status:      req.Status,
		ScheduledAt: req.ScheduledAt.UTC(),
		Media:       req.Media,
	}
	owner := c.GetString(ctxUserID)
	s.mu.Lock()
	s.tweets[t.ID] = &record{owner: owner, tweet: t}
	s.mu.Unlock()
	s.hub.broadcast(owner, "tweet:created", t)
	respond(c, http.StatusCreated, t)
}

func (s *Server) updateTweet(c *gin.Context) {
	var req updateTweet
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid update")
		return
	}
	s.mu.Lock()
	r, ok := s.owned(c)
	if !ok {
		s.mu.Unlock()
		fail(c, http.StatusNotFound, "Tweet not found")
		return
	}
	if req.Status != nil && !r.tweet.Status.CanTransition(*req.Status) {
		from := r.tweet.Status
		s.mu.Unlock()
		fail(c, http.StatusBadRequest, "Cannot move a "+string(from)+" tweet back to "+string(*req.Status))
		return
	}
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			s.mu.Unlock()
			fail(c, http.StatusBadRequest, "Content is required")
			return
		}
		r.tweet.Content = *req.Content
	}
	rescheduled := false
	if req.ScheduledAt != nil {
		r.tweet.ScheduledAt = req.ScheduledAt.UTC()
		rescheduled = true
	}
	if req.Status != nil {
		r.tweet.Status = *req.Status
	}
	t := r.tweet
	s.mu.Unlock()
	s.hub.broadcast(r.owner, "tweet:updated", t)
	if rescheduled {
		s.hub.broadcast(r.owner, "tweet:scheduled", t)
	}
	respond(c, http.StatusOK, t)
}

func (s *Server) deleteTweet(c *gin.Context) {
	s.mu.Lock()
	r, ok := s.owned(c)
	if ok {
		delete(s.tweets, r.tweet.ID)
	}
	s.mu.Unlock()
	if !ok {
		fail(c, http.StatusNotFound, "Tweet not found")
		return
	}
	s.hub.broadcast(r.owner, "tweet:deleted", gin.H{"_id": r.tweet.ID})
	respond(c, http.StatusOK, gin.H{"_id": r.tweet.ID})
}

// simulate marks a tweet posted with engagement derived from its content
// so repeated runs give the same numbers.
func (s *Server) simulate(c *gin.Context) {
	s.mu.Lock()
	r, ok := s.owned(c)
	if !ok {
		s.mu.Unlock()
		fail(c, http.StatusNotFound, "Tweet not found")
		return
	}
	n := util.CharCount(r.tweet.Content)
	r.tweet.Status = model.StatusPosted
	r.tweet.Likes = 5 + (n*7)%120
	r.tweet.Retweets = r.tweet.Likes / 4
	r.tweet.Impressions = r.tweet.Likes*25 + n
	t := r.tweet
	s.mu.Unlock()
	s.hub.broadcast(r.owner, "tweet:posted", t)
	respond(c, http.StatusOK, t)
}

// Bucket thresholds on likes + 2*retweets.
const (
	viralScore      = 100
	performingScore = 25
)

func bucketFor(score int) model.Bucket {
	switch {
	case score >= viralScore:
		return model.BucketViral
	case score >= performingScore:
		return model.BucketPerforming
	}
	return model.BucketUnderperforming
}

func (s *Server) analytics(c *gin.Context) {
	tweets := s.Tweets(c.GetString(ctxUserID))
	var out model.Analytics
	out.Total = len(tweets)
	out.Performance.Scored = []model.ScoredTweet{}
	for _, t := range tweets {
		switch t.Status {
		case model.StatusDraft:
			out.Drafts++
		case model.StatusScheduled:
			out.Scheduled++
		case model.StatusPosted:
			out.Posted++
			score := t.Engagement()
			b := bucketFor(score)
			out.Performance.Scored = append(out.Performance.Scored, model.ScoredTweet{
				ID: t.ID, Name: util.Truncate(t.Content, 24), Score: float64(score), Bucket: b,
			})
			switch b {
			case model.BucketViral:
				out.Performance.Counts.Viral++
			case model.BucketPerforming:
				out.Performance.Counts.Performing++
			default:
				out.Performance.Counts.Underperforming++
			}
		}
	}
	out.Performance.Counts.Total = out.Posted
	sort.SliceStable(out.Performance.Scored, func(i, j int) bool {
		return out.Performance.Scored[i].Score > out.Performance.Scored[j].Score
	})
	respond(c, http.StatusOK, out)
}

func (s *Server) upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["media"]) == 0 {
		fail(c, http.StatusBadRequest, "No media uploaded")
		return
	}
	files := form.File["media"]
	if len(files) > 4 {
		files = files[:4]
	}
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, "/uploads/"+uuid.NewString()+"-"+f.Filename)
	}
	respond(c, http.StatusOK, gin.H{"urls": urls})
}

func (s *Server) suggest(c *gin.Context) {
	var req struct {
		Topic string `json:"topic" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		fail(c, http.StatusBadRequest, "Topic is required")
		return
	}
	topic := strings.TrimSpace(req.Topic)
	tag := "#" + strings.Join(strings.Fields(topic), "")
	respond(c, http.StatusOK, gin.H{"suggestions": []string{
		"Three things I learned about " + topic + " this week. A thread.",
		"Hot take: " + topic + " is more about people than tools. " + tag,
		"What is the one " + topic + " tip you wish you had known sooner?",
	}})
}

var recommendHours = []int{9, 12, 17}

// recommend returns the next posting slots at fixed local hours.
func (s *Server) recommend(c *gin.Context) {
	count := 3
	if v := c.Query("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 24 {
			fail(c, http.StatusBadRequest, "count must be between 1 and 24")
			return
		}
		count = n
	}
	loc := time.UTC
	tz := c.Query("timeZone")
	if tz == "" {
		s.mu.RLock()
		if a := s.byID[c.GetString(ctxUserID)]; a != nil {
			tz = a.user.TimeZone
		}
		s.mu.RUnlock()
	}
	if tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			fail(c, http.StatusBadRequest, "Unknown time zone")
			return
		}
		loc = l
	}
	now := s.now().In(loc)
	times := make([]string, 0, count)
	for day := 0; len(times) < count; day++ {
		d := now.AddDate(0, 0, day)
		for _, h := range recommendHours {
			slot := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, loc)
			if slot.After(now) && len(times) < count {
				times = append(times, slot.UTC().Format(time.RFC3339))
			}
		}
	}
	respond(c, http.StatusOK, gin.H{"times": times})
}
