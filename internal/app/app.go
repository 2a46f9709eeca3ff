// Package app wires the stores, the API client and the view workflows
// into one client instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tweetsched/internal/api"
	"tweetsched/internal/auth"
	"tweetsched/internal/calendar"
	"tweetsched/internal/composer"
	"tweetsched/internal/config"
	"tweetsched/internal/jobs"
	"tweetsched/internal/logging"
	"tweetsched/internal/model"
	"tweetsched/internal/query"
	"tweetsched/internal/realtime"
	"tweetsched/internal/router"
	"tweetsched/internal/store"
	"tweetsched/internal/ui"
)

// App is one client session. Close it to stop background work and release
// storage.
type App struct {
	Config   config.Config
	Storage  store.Storage
	UI       *ui.Store
	Auth     *auth.Store
	API      *api.Client
	Cache    *query.Cache
	Calendar *calendar.Sync
	Composer *composer.Composer

	dial    realtime.DialFunc
	apiOpts []api.Option

	mu     sync.Mutex
	cancel []context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type Option func(*App)

// WithStorage uses s in place of the configured driver.
func WithStorage(s store.Storage) Option { return func(a *App) { a.Storage = s } }

// WithAPIOptions appends client options after the configured ones.
func WithAPIOptions(opts ...api.Option) Option {
	return func(a *App) { a.apiOpts = append(a.apiOpts, opts...) }
}

// WithDialer replaces the realtime dialer.
func WithDialer(d realtime.DialFunc) Option { return func(a *App) { a.dial = d } }

// New opens storage, restores any saved session and builds the workflows.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	a := &App{Config: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.Storage == nil {
		s, err := store.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Storage = s
	}
	a.UI = ui.New(ctx, a.Storage)
	a.Auth = auth.New(a.Storage)
	restored := a.Auth.Restore(ctx)

	apiOpts := append([]api.Option{
		api.WithTimeout(cfg.API.Timeout),
		api.WithRateLimit(cfg.API.RPS, cfg.API.Burst),
	}, a.apiOpts...)
	a.API = api.New(cfg.API.BaseURL, a.Auth, apiOpts...)
	a.Cache = query.New(query.WithStaleTime(cfg.Cache.StaleTime))
	a.Calendar = calendar.New(a.Cache, a.API, calendar.OnOutcome(func(in calendar.Intent) {
		if in.Err != nil {
			logging.Warn("reschedule_failed", map[string]any{"id": in.TweetID, "phase": string(in.Phase), "error": in.Err})
		}
	}))
	a.Composer = composer.New(a.Cache, a.API)
	if a.dial == nil {
		a.dial = realtime.Dialer(cfg.RealtimeURL(), a.Auth.Token)
	}
	logging.Info("app_ready", map[string]any{"api": cfg.API.BaseURL, "storage": cfg.Storage.Driver, "session": restored})
	return a, nil
}

// Guard resolves path against the current session.
func (a *App) Guard(path, from string) (router.Decision, error) {
	return router.Resolve(path, a.Auth.Authenticated(), from)
}

// Login authenticates and stores the session.
func (a *App) Login(ctx context.Context, req api.LoginRequest) (model.Session, error) {
	sess, err := a.API.Login(ctx, req)
	if err != nil {
		return model.Session{}, err
	}
	return sess, a.Auth.SetAuth(ctx, sess.Token, sess.User)
}

func (a *App) Register(ctx context.Context, req api.RegisterRequest) (model.Session, error) {
	sess, err := a.API.Register(ctx, req)
	if err != nil {
		return model.Session{}, err
	}
	return sess, a.Auth.SetAuth(ctx, sess.Token, sess.User)
}

// CompleteOAuth stores the session carried by an OAuth redirect.
func (a *App) CompleteOAuth(ctx context.Context, redirect string) (model.Session, error) {
	token, user, err := auth.ParseCallback(redirect)
	if err != nil {
		return model.Session{}, err
	}
	if err := a.Auth.SetAuth(ctx, token, user); err != nil {
		return model.Session{}, err
	}
	return model.Session{Token: token, User: user}, nil
}

// UpdateTimeZone saves the preference and mirrors it into the session.
func (a *App) UpdateTimeZone(ctx context.Context, tz string) error {
	if err := a.API.UpdateSettings(ctx, api.SettingsRequest{TimeZone: tz}); err != nil {
		return err
	}
	sess, ok := a.Auth.Session()
	if !ok {
		return nil
	}
	sess.User.TimeZone = tz
	return a.Auth.SetAuth(ctx, sess.Token, sess.User)
}

func (a *App) Tweets(ctx context.Context) ([]model.Tweet, error) {
	return query.Fetch(ctx, a.Cache, query.KeyTweets, a.API.ListTweets)
}

func (a *App) Analytics(ctx context.Context) (model.Analytics, error) {
	return query.Fetch(ctx, a.Cache, query.KeyAnalytics, a.API.Analytics)
}

// DeleteTweet removes a tweet and invalidates every view of it.
func (a *App) DeleteTweet(ctx context.Context, id string) error {
	_, err := query.Mutate(ctx, a.Cache, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.API.DeleteTweet(ctx, id)
	}, query.KeyTweets, query.KeyAnalytics)
	return err
}

// SimulatePost marks a tweet posted with generated engagement.
func (a *App) SimulatePost(ctx context.Context, id string) (model.Tweet, error) {
	return query.Mutate(ctx, a.Cache, func(ctx context.Context) (model.Tweet, error) {
		return a.API.SimulatePost(ctx, id)
	}, query.KeyTweets, query.KeyAnalytics)
}

// StartAnalyticsRefresh refetches analytics on the configured interval
// until ctx ends or the app is closed.
func (a *App) StartAnalyticsRefresh(ctx context.Context) {
	interval := a.Config.Cache.AnalyticsRefresh
	a.background(ctx, func(ctx context.Context) {
		_ = jobs.RunRefreshLoop(ctx, a.Cache, query.KeyAnalytics, interval, func(ctx context.Context) error {
			_, err := a.Analytics(ctx)
			return err
		})
	})
}

func (a *App) background(ctx context.Context, fn func(context.Context)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = append(a.cancel, cancel)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(ctx)
	}()
	return true
}

// Close stops background loops and closes storage. It is safe to call
// more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	cancels := a.cancel
	a.cancel = nil
	a.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	a.wg.Wait()
	return a.Storage.Close()
}

var errClosed = errors.New("app is closed")

// TweetsView is a mounted tweets list: it holds the realtime subscription
// and refetches whenever the tweets key is invalidated.
type TweetsView struct {
	sub     *realtime.Subscription
	unsub   func()
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	refetch chan struct{}
}

// MountTweets fetches the list, connects the realtime channel and calls
// onChange with every refetched list until the view is closed. onChange
// runs on the view's goroutine.
func (a *App) MountTweets(ctx context.Context, onChange func([]model.Tweet, error)) (*TweetsView, []model.Tweet, error) {
	tweets, err := a.Tweets(ctx)
	if err != nil {
		return nil, nil, err
	}
	vctx, cancel := context.WithCancel(ctx)
	sub, err := realtime.Mount(vctx, a.dial, a.Cache)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("realtime: %w", err)
	}
	v := &TweetsView{sub: sub, cancel: cancel, done: make(chan struct{}), refetch: make(chan struct{}, 1)}
	v.unsub = a.Cache.Subscribe(query.KeyTweets, func(ev query.Event) {
		if ev.Reason == "fetch" {
			return
		}
		select {
		case v.refetch <- struct{}{}:
		default:
		}
	})
	ok := a.background(vctx, func(ctx context.Context) {
		defer close(v.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-v.refetch:
				list, err := a.Tweets(ctx)
				if ctx.Err() != nil {
					return
				}
				if onChange != nil {
					onChange(list, err)
				}
			}
		}
	})
	if !ok {
		v.unsub()
		_ = sub.Close()
		cancel()
		return nil, nil, errClosed
	}
	return v, tweets, nil
}

// Realtime exposes the subscription so callers can watch for disconnects.
func (v *TweetsView) Realtime() *realtime.Subscription { return v.sub }

// Close unmounts the view. No onChange call starts after it returns.
func (v *TweetsView) Close() error {
	var err error
	v.once.Do(func() {
		v.unsub()
		err = v.sub.Close()
		v.cancel()
		<-v.done
	})
	return err
}
