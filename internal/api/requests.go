package api

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"tweetsched/internal/model"
)

// MaxContent and MaxMedia bound a tweet on the client.
const (
	MaxContent = 280
	MaxMedia   = 4
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"notblank"`
}

// CreateTweetRequest is the body of POST /api/tweets. New tweets are either
// drafts or scheduled; posting happens server side.
type CreateTweetRequest struct {
	Content     string       `json:"content" validate:"notblank,max=280"`
	ScheduledAt time.Time    `json:"scheduledAt" validate:"required"`
	Status      model.Status `json:"status" validate:"required,oneof=draft scheduled"`
	Media       []string     `json:"media,omitempty" validate:"max=4,dive,required"`
}

// UpdateTweetRequest is a partial update; nil fields are left alone.
type UpdateTweetRequest struct {
	Content     *string       `json:"content,omitempty" validate:"omitempty,notblank,max=280"`
	ScheduledAt *time.Time    `json:"scheduledAt,omitempty"`
	Status      *model.Status `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled posted"`
}

func (r UpdateTweetRequest) empty() bool {
	return r.Content == nil && r.ScheduledAt == nil && r.Status == nil
}

type SuggestRequest struct {
	Topic string `json:"topic" validate:"notblank,max=100"`
}

// RecommendTimesRequest is sent as the query string of
// GET /api/schedule/recommend.
type RecommendTimesRequest struct {
	Count    int    `url:"count,omitempty" validate:"omitempty,min=1,max=24"`
	TimeZone string `url:"timeZone,omitempty" validate:"omitempty,timezone"`
}

type SettingsRequest struct {
	TimeZone string `json:"timeZone" validate:"required,timezone"`
}

type googleAuthQuery struct {
	Redirect string `url:"redirect"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "url"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// check validates req and converts failures into a *ValidationError.
func (c *Client) check(req any) error {
	err := c.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fieldName(fe)] = describe(fe)
	}
	return out
}

// fieldName strips the struct prefix and slice index from the namespace.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	if i := strings.IndexByte(ns, '['); i >= 0 {
		ns = ns[:i]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + unit(fe.Kind())
	case "max":
		return "must be at most " + fe.Param() + unit(fe.Kind())
	case "oneof":
		return "must be one of " + fe.Param()
	case "timezone":
		return "must be an IANA time zone"
	}
	return "is invalid"
}

func unit(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	}
	return ""
}
