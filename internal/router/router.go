// Package router decides which view a path resolves to for the current
// session. The CLI maps every command onto one of these paths.
package router

import (
	"errors"
	"strings"
)

const (
	Dashboard = "/"
	Tweets    = "/tweets"
	Scheduler = "/scheduler"
	Settings  = "/settings"
	Login     = "/login"
	Register  = "/register"
	Callback  = "/oauth/callback"
)

// ErrNotFound is returned for paths no view is registered for.
var ErrNotFound = errors.New("no such route")

type access int

const (
	public access = iota
	protected
	guestOnly
)

var routes = map[string]access{
	Dashboard: protected,
	Tweets:    protected,
	Scheduler: protected,
	Settings:  protected,
	Login:     guestOnly,
	Register:  guestOnly,
	Callback:  public,
}

// Decision is the outcome of resolving a path. When Redirect is set the
// caller navigates to Path in place of the requested one.
type Decision struct {
	Path     string
	Redirect bool
	// From is the originally requested path carried to the login view.
	From string
}

// Resolve applies the route guards. Protected paths send guests to login
// with the requested path in From. Login sends a signed in user back to
// from when it names a protected view, else to the dashboard; register
// always goes to the dashboard.
func Resolve(path string, authenticated bool, from string) (Decision, error) {
	p := clean(path)
	a, ok := routes[p]
	if !ok {
		return Decision{}, ErrNotFound
	}
	switch {
	case a == protected && !authenticated:
		return Decision{Path: Login, Redirect: true, From: p}, nil
	case a == guestOnly && authenticated:
		target := Dashboard
		if p == Login && IsProtected(from) {
			target = clean(from)
		}
		return Decision{Path: target, Redirect: true}, nil
	}
	return Decision{Path: p}, nil
}

// IsProtected reports whether path needs a session.
func IsProtected(path string) bool {
	return routes[clean(path)] == protected && path != ""
}

func clean(path string) string {
	p := strings.TrimSpace(path)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return Dashboard
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = Dashboard
		}
	}
	return p
}
