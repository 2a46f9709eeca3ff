package realtime

import (
	"context"
	"sync"

	"tweetsched/internal/query"
)

// Invalidator is the part of the query cache realtime needs.
type Invalidator interface {
	Invalidate(key, reason string)
}

// DialFunc opens a connection for one mounted view.
type DialFunc func(ctx context.Context) (*Conn, error)

// Dialer returns a DialFunc that reads the token at dial time.
func Dialer(url string, token func() string) DialFunc {
	return func(ctx context.Context) (*Conn, error) {
		tok := ""
		if token != nil {
			tok = token()
		}
		return Dial(ctx, url, tok)
	}
}

// Subscription is the realtime lifetime of one view.
type Subscription struct {
	conn    *Conn
	stopped chan struct{}
	once    sync.Once
	quit    chan struct{}
}

// Mount connects and invalidates the tweets key on every tweet event. The
// connection is torn down when ctx is cancelled or Close is called,
// whichever happens first.
func Mount(ctx context.Context, dial DialFunc, inv Invalidator) (*Subscription, error) {
	conn, err := dial(ctx)
	if err != nil {
		return nil, err
	}
	for _, ev := range TweetEvents {
		reason := "realtime:" + ev
		conn.On(ev, func(Message) { inv.Invalidate(query.KeyTweets, reason) })
	}
	s := &Subscription{conn: conn, stopped: make(chan struct{}), quit: make(chan struct{})}
	go func() {
		defer close(s.stopped)
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-s.quit:
		case <-conn.Done():
		}
	}()
	return s, nil
}

// Done is closed when the underlying connection has stopped reading.
func (s *Subscription) Done() <-chan struct{} { return s.conn.Done() }

// Err reports why the connection stopped, if it failed.
func (s *Subscription) Err() error { return s.conn.Err() }

// Close unsubscribes. After it returns no handler runs and no goroutine
// started by Mount is alive.
func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.quit)
		err = s.conn.Close()
		<-s.stopped
	})
	return err
}
