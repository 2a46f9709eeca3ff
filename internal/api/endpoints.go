package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-querystring/query"

	"tweetsched/internal/model"
)

// authPayload is the data of a successful login or registration.
type authPayload struct {
	Token  string `json:"token"`
	ID     string `json:"_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (p authPayload) session() model.Session {
	return model.Session{Token: p.Token, User: model.User{ID: p.ID, Email: p.Email, Name: p.Name, Avatar: p.Avatar}}
}

func (c *Client) authenticate(ctx context.Context, route string, body any) (model.Session, error) {
	if err := c.check(body); err != nil {
		return model.Session{}, err
	}
	r, err := jsonRequest(http.MethodPost, route, route, body)
	if err != nil {
		return model.Session{}, err
	}
	var p authPayload
	if err := c.do(ctx, r, &p); err != nil {
		return model.Session{}, err
	}
	if p.Token == "" {
		return model.Session{}, fmt.Errorf("POST %s: response has no token", route)
	}
	return p.session(), nil
}

// Login exchanges credentials for a session. It does not store it.
func (c *Client) Login(ctx context.Context, req LoginRequest) (model.Session, error) {
	return c.authenticate(ctx, "/auth/login", req)
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (model.Session, error) {
	return c.authenticate(ctx, "/auth/register", req)
}

// GoogleAuthURL is where a browser starts the OAuth flow. The backend
// redirects back to redirect with the session in the URL fragment.
func (c *Client) GoogleAuthURL(redirect string) (string, error) {
	if _, err := url.ParseRequestURI(redirect); err != nil {
		return "", &ValidationError{Fields: map[string]string{"redirect": "must be an absolute URL"}}
	}
	vals, err := query.Values(googleAuthQuery{Redirect: redirect})
	if err != nil {
		return "", err
	}
	return c.baseURL + "/api/auth/google?" + vals.Encode(), nil
}

func (c *Client) ListTweets(ctx context.Context) ([]model.Tweet, error) {
	var out []model.Tweet
	err := c.do(ctx, request{method: http.MethodGet, route: "/api/tweets", path: "/api/tweets"}, &out)
	return out, err
}

func tweetPath(id string) string { return "/api/tweets/" + url.PathEscape(id) }

func (c *Client) GetTweet(ctx context.Context, id string) (model.Tweet, error) {
	var out model.Tweet
	if id == "" {
		return out, &ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	err := c.do(ctx, request{method: http.MethodGet, route: "/api/tweets/:id", path: tweetPath(id)}, &out)
	return out, err
}

func (c *Client) CreateTweet(ctx context.Context, req CreateTweetRequest) (model.Tweet, error) {
	var out model.Tweet
	if err := c.check(req); err != nil {
		return out, err
	}
	r, err := jsonRequest(http.MethodPost, "/api/tweets", "/api/tweets", req)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, r, &out)
	return out, err
}

func (c *Client) UpdateTweet(ctx context.Context, id string, req UpdateTweetRequest) (model.Tweet, error) {
	var out model.Tweet
	if id == "" {
		return out, &ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	if req.empty() {
		return out, &ValidationError{Fields: map[string]string{"body": "has nothing to update"}}
	}
	if err := c.check(req); err != nil {
		return out, err
	}
	r, err := jsonRequest(http.MethodPut, "/api/tweets/:id", tweetPath(id), req)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, r, &out)
	return out, err
}

// Reschedule moves a tweet to start.
func (c *Client) Reschedule(ctx context.Context, id string, start time.Time) (model.Tweet, error) {
	return c.UpdateTweet(ctx, id, UpdateTweetRequest{ScheduledAt: &start})
}

func (c *Client) DeleteTweet(ctx context.Context, id string) error {
	if id == "" {
		return &ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	return c.do(ctx, request{method: http.MethodDelete, route: "/api/tweets/:id", path: tweetPath(id)}, nil)
}

// SimulatePost asks the backend to mark a tweet posted with synthetic
// engagement numbers.
func (c *Client) SimulatePost(ctx context.Context, id string) (model.Tweet, error) {
	var out model.Tweet
	if id == "" {
		return out, &ValidationError{Fields: map[string]string{"id": "is required"}}
	}
	err := c.do(ctx, request{method: http.MethodPost, route: "/api/tweets/:id/simulate", path: tweetPath(id) + "/simulate"}, &out)
	return out, err
}

func (c *Client) Analytics(ctx context.Context) (model.Analytics, error) {
	var out model.Analytics
	err := c.do(ctx, request{method: http.MethodGet, route: "/api/analytics", path: "/api/analytics"}, &out)
	return out, err
}

// File is one attachment for Upload.
type File struct {
	Name string
	Body io.Reader
}

// Upload sends up to MaxMedia files as the multipart field "media" and
// returns the media references the backend assigned. Extra files are
// ignored.
func (c *Client) Upload(ctx context.Context, files []File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > MaxMedia {
		files = files[:MaxMedia]
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("media", f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := io.Copy(part, f.Body); err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	var out struct {
		URLs []string `json:"urls"`
	}
	r := request{method: http.MethodPost, route: "/api/upload", path: "/api/upload", body: &buf, contentType: mw.FormDataContentType()}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.URLs, nil
}

// Suggest returns backend generated drafts for topic, in backend order.
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) ([]string, error) {
	if err := c.check(req); err != nil {
		return nil, err
	}
	r, err := jsonRequest(http.MethodPost, "/api/ai/suggest", "/api/ai/suggest", req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.Suggestions, nil
}

// RecommendTimes returns the backend's suggested posting times as sent.
func (c *Client) RecommendTimes(ctx context.Context, req RecommendTimesRequest) ([]string, error) {
	if err := c.check(req); err != nil {
		return nil, err
	}
	var out struct {
		Times []string `json:"times"`
	}
	r := request{method: http.MethodGet, route: "/api/schedule/recommend", path: "/api/schedule/recommend", query: req}
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	return out.Times, nil
}

func (c *Client) UpdateSettings(ctx context.Context, req SettingsRequest) error {
	if err := c.check(req); err != nil {
		return err
	}
	r, err := jsonRequest(http.MethodPut, "/api/users/settings", "/api/users/settings", req)
	if err != nil {
		return err
	}
	return c.do(ctx, r, nil)
}
