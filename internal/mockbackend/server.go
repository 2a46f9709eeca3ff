// Package mockbackend is an in-memory implementation of the scheduling
// backend. It serves the REST endpoints, issues HS256 tokens and pushes
// tweet events over a WebSocket hub. Tests and local development use it.
package mockbackend

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"tweetsched/internal/logging"
	"tweetsched/internal/model"
)

const ctxUserID = "user_id"

type account struct {
	user     model.User
	password []byte
	google   bool
}

type record struct {
	owner string
	tweet model.Tweet
}

// Server holds all backend state in memory.
type Server struct {
	secret []byte
	now    func() time.Time

	mu       sync.RWMutex
	accounts map[string]*account // by email
	byID     map[string]*account
	tweets   map[string]*record
	revoked  map[string]bool
	failNext map[string]int

	hub    *hub
	engine *gin.Engine
}

type Option func(*Server)

// WithClock fixes the backend clock for deterministic recommendations.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithAllowedOrigins enables CORS for browser clients.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.engine.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
}

func New(secret string, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		secret:   []byte(secret),
		now:      time.Now,
		accounts: make(map[string]*account),
		byID:     make(map[string]*account),
		tweets:   make(map[string]*record),
		revoked:  make(map[string]bool),
		failNext: make(map[string]int),
		hub:      newHub(),
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLog())
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.engine
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.POST("/auth/login", s.login)
	r.POST("/auth/register", s.register)
	r.GET("/api/auth/google", s.google)
	r.GET("/ws", s.serveWS)

	api := r.Group("/api")
	api.Use(s.auth(), s.injectFailures())
	api.GET("/tweets", s.listTweets)
	api.POST("/tweets", s.createTweet)
	api.GET("/tweets/:id", s.getTweet)
	api.PUT("/tweets/:id", s.updateTweet)
	api.DELETE("/tweets/:id", s.deleteTweet)
	api.POST("/tweets/:id/simulate", s.simulate)
	api.GET("/analytics", s.analytics)
	api.POST("/upload", s.upload)
	api.POST("/ai/suggest", s.suggest)
	api.GET("/schedule/recommend", s.recommend)
	api.PUT("/users/settings", s.settings)
}

// Handler returns the HTTP handler for the whole backend.
func (s *Server) Handler() http.Handler { return s.engine }

// Close disconnects every WebSocket client and waits for their pumps.
func (s *Server) Close() { s.hub.closeAll() }

// FailNext makes the next n requests to route (for example
// "PUT /api/tweets/:id") fail with 500.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[route] = n
}

// Tweets returns a copy of the stored tweets for userID sorted by schedule.
func (s *Server) Tweets(userID string) []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tweetsFor(userID)
}

// tweetsFor expects s.mu to be held.
func (s *Server) tweetsFor(userID string) []model.Tweet {
	out := make([]model.Tweet, 0)
	for _, r := range s.tweets {
		if r.owner == userID {
			out = append(out, r.tweet)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Before(out[j].ScheduledAt)
	})
	return out
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("mock_request", map[string]any{
			"method":   c.Request.Method,
			"route":    c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
	}
}

func (s *Server) injectFailures() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.Request.Method + " " + c.FullPath()
		s.mu.Lock()
		n := s.failNext[route]
		if n > 0 {
			s.failNext[route] = n - 1
		}
		s.mu.Unlock()
		if n > 0 {
			fail(c, http.StatusInternalServerError, "Injected failure")
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
