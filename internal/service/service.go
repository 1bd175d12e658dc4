// Package service contains the rider-side services: authentication, the cached
// rider profile and the cached emergency-contact list.
package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// Sessions is the session store as seen by the services.
type Sessions interface {
	SaveSession(ctx context.Context, sess model.Session) error
	GetToken(ctx context.Context) (string, bool)
	GetUser(ctx context.Context) (*model.User, bool)
	ClearSession(ctx context.Context) error
}

var (
	reMobile = regexp.MustCompile(`^\d{10}$`)
	reOTP    = regexp.MustCompile(`^\d{4,6}$`)
)

// rejected converts a success:false envelope into a ValidationError carrying the server text.
func rejected(env *transport.Envelope, fallback string) error {
	if env.OK() {
		return nil
	}
	msg := strings.TrimSpace(env.Text())
	if msg == "" {
		msg = fallback
	}
	return &errs.ValidationError{Message: msg}
}

// textOr returns the server message or fallback.
func textOr(env *transport.Envelope, fallback string) string {
	if msg := strings.TrimSpace(env.Text()); msg != "" {
		return msg
	}
	return fallback
}
