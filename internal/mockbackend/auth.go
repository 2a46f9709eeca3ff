package mockbackend

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tweetsched/internal/model"
)

const (
	tokenTTL = 7 * 24 * time.Hour
	issuer   = "tweetsched-mock"
)

type credentials struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
}

type authData struct {
	Token  string `json:"token"`
	ID     string `json:"_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (s *Server) issue(userID string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify returns the user id carried by a valid, unrevoked token.
func (s *Server) verify(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("missing token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.revoked[raw] {
		return "", errors.New("token revoked")
	}
	if _, ok := s.byID[claims.Subject]; !ok {
		return "", errors.New("unknown user")
	}
	return claims.Subject, nil
}

// Revoke makes token fail authentication from now on.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := s.verify(bearer(c))
		if err != nil {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Set(ctxUserID, id)
		c.Next()
	}
}

func (s *Server) respondAuth(c *gin.Context, status int, a *account) {
	token, err := s.issue(a.user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	respond(c, status, authData{Token: token, ID: a.user.ID, Email: a.user.Email, Name: a.user.Name, Avatar: a.user.Avatar})
}

func (s *Server) register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid registration details")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, "Name is required")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.MinCost)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not store password")
		return
	}
	email := strings.ToLower(req.Email)
	s.mu.Lock()
	if _, exists := s.accounts[email]; exists {
		s.mu.Unlock()
		fail(c, http.StatusConflict, "User already exists")
		return
	}
	a := &account{user: model.User{ID: uuid.NewString(), Email: email, Name: req.Name}, password: hash}
	s.accounts[email] = a
	s.byID[a.user.ID] = a
	s.mu.Unlock()
	s.respondAuth(c, http.StatusCreated, a)
}

func (s *Server) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid credentials")
		return
	}
	s.mu.RLock()
	a, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.RUnlock()
	if !ok || a.google || bcrypt.CompareHashAndPassword(a.password, []byte(req.Password)) != nil {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	s.respondAuth(c, http.StatusOK, a)
}

// google stands in for the OAuth round trip: it signs in a fixed demo
// account and redirects with the session in the URL fragment.
func (s *Server) google(c *gin.Context) {
	redirect := c.Query("redirect")
	target, err := url.Parse(redirect)
	if redirect == "" || err != nil || !target.IsAbs() {
		fail(c, http.StatusBadRequest, "A redirect URL is required")
		return
	}
	const email = "demo.google@example.com"
	s.mu.Lock()
	a, ok := s.accounts[email]
	if !ok {
		a = &account{user: model.User{ID: uuid.NewString(), Email: email, Name: "Google Demo", Avatar: "https://example.com/avatar.png"}, google: true}
		s.accounts[email] = a
		s.byID[a.user.ID] = a
	}
	s.mu.Unlock()
	token, err := s.issue(a.user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not issue token")
		return
	}
	frag := url.Values{}
	frag.Set("token", token)
	frag.Set("_id", a.user.ID)
	frag.Set("email", a.user.Email)
	frag.Set("name", a.user.Name)
	frag.Set("avatar", a.user.Avatar)
	target.Fragment = ""
	c.Redirect(http.StatusFound, target.String()+"#"+frag.Encode())
}

func (s *Server) settings(c *gin.Context) {
	var req struct {
		TimeZone string `json:"timeZone" binding:"required,timezone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid time zone")
		return
	}
	s.mu.Lock()
	a := s.byID[c.GetString(ctxUserID)]
	a.user.TimeZone = req.TimeZone
	user := a.user
	s.mu.Unlock()
	respond(c, http.StatusOK, user)
}
