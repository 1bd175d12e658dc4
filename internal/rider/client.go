// Package rider is the entry point screens call into: one method per user-facing operation,
// wired from a single configuration value.
package rider

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/config"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/service"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/session"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// Client bundles the session store, transport and caches.
type Client struct {
	Sessions  *session.Store
	Transport transport.Transport
	Auth      service.AuthService
	Profile   service.ProfileCache
	Contacts  service.ContactsCache
}

// Options tweak construction; the zero value is fine.
type Options struct {
	Logger *zap.Logger
	// Transport replaces the HTTP transport, e.g. in tests.
	Transport transport.Transport
	// OnRetry is passed to the HTTP transport.
	OnRetry func(attempt int, delay time.Duration, cause error)
}

// New wires a Client over kv.
func New(cfg *config.Config, kv repository.KV, opts Options) *Client {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sessions := session.New(kv, log.Named("session"))

	tr := opts.Transport
	if tr == nil {
		var lim *rate.Limiter
		if cfg.RateLimit > 0 {
			burst := cfg.RateBurst
			if burst < 1 {
				burst = 1
			}
			lim = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
		}
		tr = transport.NewHTTP(transport.Options{
			BaseURL:     cfg.APIBaseURL,
			Timeout:     cfg.RequestTimeout,
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Limiter:     lim,
			Logger:      log.Named("http"),
			OnRetry:     opts.OnRetry,
		}, sessions)
	}

	return &Client{
		Sessions:  sessions,
		Transport: tr,
		Auth:      service.NewAuthService(tr, sessions, log.Named("auth")),
		Profile:   service.NewProfileCache(tr, kv, sessions, log.Named("profile")),
		Contacts:  service.NewContactsCache(tr, kv, sessions, log.Named("contacts")),
	}
}

// Login requests an OTP.
func (c *Client) Login(ctx context.Context, mobile string) (string, error) {
	return c.Auth.Login(ctx, mobile)
}

// VerifyOTP completes login and persists the session.
func (c *Client) VerifyOTP(ctx context.Context, mobile, otp string) (model.Session, error) {
	return c.Auth.VerifyOTP(ctx, mobile, otp)
}

// Logout clears all local state.
func (c *Client) Logout(ctx context.Context) error {
	return c.Auth.Logout(ctx)
}

// GetCachedUser returns the logged-in user without a network call.
func (c *Client) GetCachedUser(ctx context.Context) (*model.User, bool) {
	return c.Sessions.GetUser(ctx)
}

// IsLoggedIn reports whether a usable token is stored.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	_, ok := c.Sessions.GetToken(ctx)
	return ok
}

// GetCachedProfile returns the persisted profile; (nil, nil) when none is stored.
func (c *Client) GetCachedProfile(ctx context.Context) (*model.RiderProfile, error) {
	p, err := c.Profile.Load(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// RefreshProfile fetches the profile of userID, or of the session user when userID is 0.
func (c *Client) RefreshProfile(ctx context.Context, userID int64) (*model.RiderProfile, error) {
	if userID == 0 {
		u, ok := c.Sessions.GetUser(ctx)
		if !ok {
			return nil, errs.ErrUnauthenticated
		}
		userID = u.ID
	}
	return c.Profile.Refresh(ctx, userID)
}

// SaveProfile updates the profile when one is cached and creates it otherwise.
func (c *Client) SaveProfile(ctx context.Context, userID int64, form service.ProfileForm) (*model.RiderProfile, error) {
	if userID == 0 {
		if u, ok := c.Sessions.GetUser(ctx); ok {
			userID = u.ID
		}
	}
	form.UserID = userID
	if cached, err := c.Profile.Load(ctx); err == nil && cached.ProfileID != 0 {
		return c.Profile.Update(ctx, userID, form)
	}
	return c.Profile.Create(ctx, form)
}

// ListContacts returns the remote list, or the cached one when offline.
func (c *Client) ListContacts(ctx context.Context) ([]model.EmergencyContact, error) {
	return c.Contacts.List(ctx)
}

// AddContact creates an emergency contact.
func (c *Client) AddContact(ctx context.Context, in service.ContactInput) (*model.EmergencyContact, error) {
	return c.Contacts.Add(ctx, in)
}

// SetPrimaryContact makes id the only primary contact.
func (c *Client) SetPrimaryContact(ctx context.Context, id int64) ([]model.EmergencyContact, error) {
	return c.Contacts.SetPrimary(ctx, id)
}

// DeleteContact removes a contact and returns the text to show.
func (c *Client) DeleteContact(ctx context.Context, id int64) (string, error) {
	return c.Contacts.Remove(ctx, id)
}

// SyncContacts forces a remote reload of the contact list.
func (c *Client) SyncContacts(ctx context.Context) ([]model.EmergencyContact, error) {
	return c.Contacts.Sync(ctx)
}
