// Package api is the HTTP client for the scheduling backend. It injects the
// current bearer token into every request and forces a logout on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-querystring/query"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"tweetsched/internal/logging"
	"tweetsched/internal/metrics"
)

// Session is the auth state the client reads on every request.
type Session interface {
	Token() string
	Logout(ctx context.Context) error
}

// Client talks to the backend. Requests are sent once: there is no retry,
// backoff or deduplication.
type Client struct {
	baseURL    string
	session    Session
	httpClient *http.Client
	limiter    *rate.Limiter
	validate   *validator.Validate
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the client-side throttle.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = newLimiter(rps, burst) }
}

func New(baseURL string, session Session, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    newLimiter(defaultRPS, defaultBurst),
		validate:   newValidator(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

type envelope struct {
	Data json.RawMessage `json:"data"`
}

type errorBody struct {
	Message string `json:"message"`
}

// request describes one call. route is the templated path used as the
// metrics label so ids do not explode cardinality.
type request struct {
	method      string
	route       string
	path        string
	query       any
	body        io.Reader
	contentType string
}

func jsonRequest(method, route, path string, v any) (request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return request{}, fmt.Errorf("encode %s: %w", route, err)
	}
	return request{method: method, route: route, path: path, body: bytes.NewReader(b), contentType: "application/json"}, nil
}

// do sends r and decodes the "data" envelope into out when out is non-nil.
func (c *Client) do(ctx context.Context, r request, out any) error {
	u := c.baseURL + r.path
	if r.query != nil {
		vals, err := query.Values(r.query)
		if err != nil {
			return fmt.Errorf("encode query: %w", err)
		}
		if enc := vals.Encode(); enc != "" {
			u += "?" + enc
		}
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	// The token is read at send time so a logout between requests is honored.
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveAPI(r.method, r.route, "error", start)
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	metrics.ObserveAPI(r.method, r.route, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode >= 400 {
		apiErr := &Error{Method: r.method, Path: r.path, Status: resp.StatusCode}
		var eb errorBody
		if b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); len(b) > 0 && json.Unmarshal(b, &eb) == nil {
			apiErr.Message = eb.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.forceLogout(ctx, r)
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%s %s: decode: %w", r.method, r.path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", r.method, r.path, err)
	}
	return nil
}

func (c *Client) forceLogout(ctx context.Context, r request) {
	metrics.IncForcedLogout()
	// Logout must complete even when the triggering request was cancelled.
	if err := c.session.Logout(context.WithoutCancel(ctx)); err != nil {
		logging.Warn("forced_logout_storage_error", map[string]any{"route": r.route, "error": err})
		return
	}
	logging.Info("forced_logout", map[string]any{"route": r.route})
}
