package auth

import (
	"errors"
	"net/url"
	"strings"

	"tweetsched/internal/model"
)

// ErrCallbackIncomplete means the OAuth redirect lacked token, _id or email.
var ErrCallbackIncomplete = errors.New("oauth callback missing token, _id or email")

// ParseCallback reads the fragment parameters the backend attaches to the
// OAuth redirect. It accepts a full URL, a "#..." fragment or the bare
// parameter string.
func ParseCallback(raw string) (string, model.User, error) {
	frag := raw
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		frag = raw[i+1:]
	}
	params, err := url.ParseQuery(frag)
	if err != nil {
		return "", model.User{}, ErrCallbackIncomplete
	}
	token, id, email := params.Get("token"), params.Get("_id"), params.Get("email")
	if token == "" || id == "" || email == "" {
		return "", model.User{}, ErrCallbackIncomplete
	}
	return token, model.User{
		ID:     id,
		Email:  email,
		Name:   params.Get("name"),
		Avatar: params.Get("avatar"),
	}, nil
}
