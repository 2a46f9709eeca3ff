package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	cases := []struct {
		name          string
		path          string
		authenticated bool
		from          string
		want          Decision
	}{
		{"guest to dashboard", "/", false, "", Decision{Path: Login, Redirect: true, From: Dashboard}},
		{"guest to scheduler", "/scheduler", false, "", Decision{Path: Login, Redirect: true, From: Scheduler}},
		{"user to tweets", "/tweets/", true, "", Decision{Path: Tweets}},
		{"guest login", "/login", false, "", Decision{Path: Login}},
		{"user login default", "/login", true, "", Decision{Path: Dashboard, Redirect: true}},
		{"user login back to from", "/login", true, "/settings", Decision{Path: Settings, Redirect: true}},
		{"user login ignores public from", "/login", true, "/oauth/callback", Decision{Path: Dashboard, Redirect: true}},
		{"user register ignores from", "/register", true, "/settings", Decision{Path: Dashboard, Redirect: true}},
		{"callback is public", "/oauth/callback#token=x", false, "", Decision{Path: Callback}},
		{"callback while signed in", "/oauth/callback", true, "", Decision{Path: Callback}},
		{"relative path", "settings", true, "", Decision{Path: Settings}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Resolve(tc.path, tc.authenticated, tc.from)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("/docs", true, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsProtected(t *testing.T) {
	assert.True(t, IsProtected("/scheduler"))
	assert.False(t, IsProtected(""))
	assert.False(t, IsProtected("/login"))
	assert.False(t, IsProtected("/nope"))
}
