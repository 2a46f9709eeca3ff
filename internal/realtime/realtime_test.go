package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tweetsched/internal/api"
	"tweetsched/internal/mockbackend"
	"tweetsched/internal/query"
)

type holder struct{ token string }

func (h *holder) Token() string                { return h.token }
func (h *holder) Logout(context.Context) error { h.token = ""; return nil }

type recorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recorder) Invalidate(key, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, key+" "+reason)
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

type env struct {
	srv    *mockbackend.Server
	ts     *httptest.Server
	client *api.Client
	userID string
	token  string
	wsURL  string
	close  func()
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := mockbackend.New("secret")
	ts := httptest.NewServer(srv.Handler())
	h := &holder{}
	c := api.New(ts.URL, h, api.WithHTTPClient(ts.Client()), api.WithRateLimit(0, 0))
	sess, err := c.Register(context.Background(), api.RegisterRequest{Email: "rt@example.com", Password: "secret1", Name: "RT"})
	require.NoError(t, err)
	h.token = sess.Token
	return &env{srv: srv, ts: ts, client: c, userID: sess.User.ID, token: sess.Token,
		wsURL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		close: func() {
			srv.Close()
			ts.Close()
		}}
}

func TestMountInvalidatesTweetsOnEvents(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t)
	defer e.close()
	rec := &recorder{}
	sub, err := Mount(context.Background(), Dialer(e.wsURL, func() string { return e.token }), rec)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return e.srv.Connections(e.userID) == 1 }, 2*time.Second, 5*time.Millisecond)

	e.srv.Broadcast(e.userID, EventTweetDeleted, map[string]string{"_id": "t1"})
	e.srv.Broadcast(e.userID, "chat:message", nil)
	e.srv.Broadcast(e.userID, EventTweetPosted, map[string]string{"_id": "t2"})
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{
		query.KeyTweets + " realtime:" + EventTweetDeleted,
		query.KeyTweets + " realtime:" + EventTweetPosted,
	}, rec.snapshot())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Eventually(t, func() bool { return e.srv.Connections(e.userID) == 0 }, 2*time.Second, 5*time.Millisecond)

	e.srv.Broadcast(e.userID, EventTweetCreated, nil)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 2, "no handler may run after Close")
}

func TestMountTearsDownOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	e := newEnv(t)
	defer e.close()
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := Mount(ctx, Dialer(e.wsURL, func() string { return e.token }), &recorder{})
	require.NoError(t, err)
	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection survived cancellation")
	}
	require.NoError(t, sub.Close())
}

func TestServerCreatedEventsArriveFromRESTMutations(t *testing.T) {
	e := newEnv(t)
	t.Cleanup(e.close)
	c := query.New()
	var mu sync.Mutex
	var reasons []string
	c.Subscribe(query.KeyTweets, func(ev query.Event) {
		mu.Lock()
		reasons = append(reasons, ev.Reason)
		mu.Unlock()
	})
	sub, err := Mount(context.Background(), Dialer(e.wsURL, func() string { return e.token }), c)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return e.srv.Connections(e.userID) == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err = e.client.CreateTweet(context.Background(), api.CreateTweetRequest{Content: "pushed", ScheduledAt: time.Now(), Status: "draft"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reasons) == 1 && reasons[0] == "realtime:"+EventTweetCreated
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDialRejectsBadToken(t *testing.T) {
	e := newEnv(t)
	t.Cleanup(e.close)
	_, err := Dial(context.Background(), e.wsURL, "garbage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestConnIgnoresMalformedFrames(t *testing.T) {
	e := newEnv(t)
	t.Cleanup(e.close)
	conn, err := Dial(context.Background(), e.wsURL, e.token)
	require.NoError(t, err)
	defer conn.Close()
	got := make(chan Message, 1)
	conn.On(EventTweetUpdated, func(m Message) { got <- m })
	require.Eventually(t, func() bool { return e.srv.Connections(e.userID) == 1 }, 2*time.Second, 5*time.Millisecond)
	e.srv.Broadcast(e.userID, "", "no event name")
	e.srv.Broadcast(e.userID, EventTweetUpdated, map[string]string{"_id": "x"})
	select {
	case m := <-got:
		assert.JSONEq(t, `{"_id":"x"}`, string(m.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	assert.NoError(t, conn.Err())
}
