package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetsched/internal/model"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	logouts int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Logout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.logouts++
	return nil
}

func (s *fakeSession) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logouts
}

func writeData(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func newTestClient(t *testing.T, h http.HandlerFunc, token string) (*Client, *fakeSession) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	sess := &fakeSession{token: token}
	return New(ts.URL, sess, WithHTTPClient(ts.Client()), WithRateLimit(0, 0)), sess
}

func TestBearerHeaderOnlyWithToken(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	h := func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Header.Get("Authorization"))
		mu.Unlock()
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeData(w, []model.Tweet{})
	}
	c, sess := newTestClient(t, h, "tok-1")
	_, err := c.ListTweets(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Logout(context.Background()))
	_, err = c.ListTweets(context.Background())
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Bearer tok-1", ""}, got)
}

func TestUnauthorizedForcesLogoutOnce(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"jwt expired"}`)
	}
	c, sess := newTestClient(t, h, "stale")
	_, err := c.Analytics(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, 1, sess.count())
	assert.Equal(t, "", sess.Token())
	assert.Equal(t, "jwt expired", Message(err, "fallback"))
}

func TestNoRetryOnServerError(t *testing.T) {
	var hits atomic.Int32
	h := func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}
	c, sess := newTestClient(t, h, "tok")
	err := c.DeleteTweet(context.Background(), "t1")
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 0, sess.count())
	assert.Equal(t, "Failed to delete", Message(err, "Failed to delete"))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }, "tok")
	ctx := context.Background()

	_, err := c.CreateTweet(ctx, CreateTweetRequest{Content: strings.Repeat("a", 281), ScheduledAt: time.Now(), Status: model.StatusDraft})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")

	_, err = c.CreateTweet(ctx, CreateTweetRequest{Content: "   ", ScheduledAt: time.Now(), Status: model.StatusDraft})
	assert.True(t, IsValidation(err))

	_, err = c.CreateTweet(ctx, CreateTweetRequest{Content: "hi", ScheduledAt: time.Now(), Status: model.StatusPosted})
	assert.True(t, IsValidation(err))

	_, err = c.CreateTweet(ctx, CreateTweetRequest{Content: "hi", ScheduledAt: time.Now(), Status: model.StatusDraft, Media: []string{"a", "b", "c", "d", "e"}})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "must be at most 4 items", verr.Fields["media"])

	_, err = c.Login(ctx, LoginRequest{Email: "not-an-email", Password: "123"})
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)

	err = c.UpdateSettings(ctx, SettingsRequest{TimeZone: "Mars/Olympus"})
	assert.True(t, IsValidation(err))

	_, err = c.UpdateTweet(ctx, "t1", UpdateTweetRequest{})
	assert.True(t, IsValidation(err))

	assert.EqualValues(t, 0, hits.Load())
}

func TestCreateTweetAcceptsExactly280Runes(t *testing.T) {
	content := strings.Repeat("é", 280)
	h := func(w http.ResponseWriter, r *http.Request) {
		var body CreateTweetRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeData(w, model.Tweet{ID: "t1", Content: body.Content, Status: body.Status, ScheduledAt: body.ScheduledAt})
	}
	c, _ := newTestClient(t, h, "tok")
	tw, err := c.CreateTweet(context.Background(), CreateTweetRequest{Content: content, ScheduledAt: time.Now(), Status: model.StatusScheduled})
	require.NoError(t, err)
	assert.Equal(t, "t1", tw.ID)
	assert.Equal(t, content, tw.Content)
}

func TestLoginReturnsSession(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		writeData(w, map[string]string{"token": "jwt", "_id": "u1", "email": "ada@example.com", "name": "Ada"})
	}
	c, _ := newTestClient(t, h, "")
	sess, err := c.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, model.Session{Token: "jwt", User: model.User{ID: "u1", Email: "ada@example.com", Name: "Ada"}}, sess)
}

func TestUploadSendsAtMostFourFiles(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		files := r.MultipartForm.File["media"]
		urls := make([]string, 0, len(files))
		for _, f := range files {
			urls = append(urls, "/uploads/"+f.Filename)
		}
		writeData(w, map[string]any{"urls": urls})
	}
	c, _ := newTestClient(t, h, "tok")
	var files []File
	for _, n := range []string{"a.png", "b.png", "c.png", "d.png", "e.png"} {
		files = append(files, File{Name: n, Body: strings.NewReader("img")})
	}
	urls, err := c.Upload(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"/uploads/a.png", "/uploads/b.png", "/uploads/c.png", "/uploads/d.png"}, urls)
}

func TestSuggestAndRecommendPassThrough(t *testing.T) {
	h := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ai/suggest":
			writeData(w, map[string]any{"suggestions": []string{"b", "a"}})
		case "/api/schedule/recommend":
			assert.Equal(t, "3", r.URL.Query().Get("count"))
			writeData(w, map[string]any{"times": []string{"2025-01-01T09:00:00Z"}})
		}
	}
	c, _ := newTestClient(t, h, "tok")
	s, err := c.Suggest(context.Background(), SuggestRequest{Topic: "go"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, s)
	times, err := c.RecommendTimes(context.Background(), RecommendTimesRequest{Count: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-01T09:00:00Z"}, times)
}

func TestGoogleAuthURL(t *testing.T) {
	c := New("http://backend:5000/", &fakeSession{})
	u, err := c.GoogleAuthURL("http://localhost:5173/oauth/callback")
	require.NoError(t, err)
	assert.Equal(t, "http://backend:5000/api/auth/google?redirect=http%3A%2F%2Flocalhost%3A5173%2Foauth%2Fcallback", u)
	_, err = c.GoogleAuthURL("not a url")
	assert.True(t, IsValidation(err))
}
