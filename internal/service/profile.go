package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/session"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// ProfileCache is the single source of truth for the current rider's profile.
type ProfileCache interface {
	// Load returns the locally persisted profile or errs.ErrNotFound; no network.
	Load(ctx context.Context) (*model.RiderProfile, error)
	// Refresh fetches the profile, persists it and returns it; transient failures fall back to Load.
	Refresh(ctx context.Context, userID int64) (*model.RiderProfile, error)
	// Create submits a new profile.
	Create(ctx context.Context, form ProfileForm) (*model.RiderProfile, error)
	// Update submits changes and never returns a nil profile on success.
	Update(ctx context.Context, userID int64, form ProfileForm) (*model.RiderProfile, error)
	// Remove deletes the profile remotely and locally, returning the server message.
	Remove(ctx context.Context, profileID int64) (string, error)
}

// ProfileForm holds the editable profile fields; empty strings are not sent.
type ProfileForm struct {
	UserID   int64
	FullName string
	Gender   string
	DOB      string
	City     string
	Email    string
	Image    *transport.File
}

func (f ProfileForm) multipart() *transport.Form {
	fields := map[string]string{}
	if f.UserID != 0 {
		fields["user_id"] = strconv.FormatInt(f.UserID, 10)
	}
	for k, v := range map[string]string{
		"fullName": f.FullName,
		"gender":   f.Gender,
		"dob":      f.DOB,
		"city":     f.City,
		"email":    f.Email,
	} {
		if v = strings.TrimSpace(v); v != "" {
			fields[k] = v
		}
	}
	form := &transport.Form{Fields: fields}
	if f.Image != nil {
		img := *f.Image
		if img.Field == "" {
			img.Field = "image"
		}
		form.File = &img
	}
	return form
}

// overlay writes the non-empty form fields onto p.
func (f ProfileForm) overlay(p *model.RiderProfile) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&p.FullName, f.FullName)
	set(&p.Gender, f.Gender)
	set(&p.DOB, f.DOB)
	set(&p.City, f.City)
	set(&p.Email, f.Email)
	if f.UserID != 0 {
		p.UserID = f.UserID
	}
}

// remoteProfile is the server's joined profile/user record.
type remoteProfile struct {
	ID           transport.Int64 `json:"id"`
	UserID       transport.Int64 `json:"user_id"`
	FullName     string          `json:"fullName"`
	Gender       string          `json:"gender"`
	DOB          string          `json:"dob"`
	City         string          `json:"city"`
	ProfileImage string          `json:"profileImage"`
	CreatedAt    string          `json:"createdAt"`
	Email        string          `json:"email"`
	Mobile       string          `json:"mobile"`
	UserType     string          `json:"userType"`
	Status       string          `json:"status"`
	User         *struct {
		Email    string `json:"email"`
		Mobile   string `json:"mobile"`
		UserType string `json:"userType"`
		Status   string `json:"status"`
	} `json:"User"`
}

func (r remoteProfile) flatten() *model.RiderProfile {
	p := &model.RiderProfile{
		ProfileID:    int64(r.ID),
		UserID:       int64(r.UserID),
		FullName:     r.FullName,
		Gender:       r.Gender,
		DOB:          r.DOB,
		City:         r.City,
		ProfileImage: r.ProfileImage,
		CreatedAt:    r.CreatedAt,
		Email:        r.Email,
		Mobile:       r.Mobile,
		UserType:     r.UserType,
		Status:       r.Status,
	}
	if u := r.User; u != nil {
		pick := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		pick(&p.Email, u.Email)
		pick(&p.Mobile, u.Mobile)
		pick(&p.UserType, u.UserType)
		pick(&p.Status, u.Status)
	}
	return p
}

type ProfileCacheImpl struct {
	tr       transport.Transport
	kv       repository.KV
	sessions Sessions
	log      *zap.Logger
}

// NewProfileCache constructs ProfileCache with required dependencies.
func NewProfileCache(tr transport.Transport, kv repository.KV, sessions Sessions, log *zap.Logger) *ProfileCacheImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileCacheImpl{tr: tr, kv: kv, sessions: sessions, log: log}
}

// Load returns the cached profile.
func (c *ProfileCacheImpl) Load(ctx context.Context) (*model.RiderProfile, error) {
	var p model.RiderProfile
	found, err := repository.GetJSON(ctx, c.kv, session.KeyProfile, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

// Refresh fetches the canonical profile for userID.
func (c *ProfileCacheImpl) Refresh(ctx context.Context, userID int64) (*model.RiderProfile, error) {
	p, err := c.fetch(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrTransient) {
			if cached, lerr := c.Load(ctx); lerr == nil {
				c.log.Info("profile refresh failed, serving cached copy", zap.Error(err))
				return cached, nil
			}
		}
		return nil, err
	}
	c.persist(ctx, p)
	return p, nil
}

func (c *ProfileCacheImpl) fetch(ctx context.Context, userID int64) (*model.RiderProfile, error) {
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/rider-profiles/user/%d", userID),
		Auth:   true,
	})
	if err != nil {
		var re *errs.RequestError
		if errors.As(err, &re) && re.Status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		}
		return nil, err
	}
	if !env.OK() {
		return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, textOr(env, "profile not found"))
	}
	rp, ok, err := transport.DecodeOne[remoteProfile](env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}
	p := rp.flatten()
	if p.UserID == 0 {
		p.UserID = userID
	}
	c.fillMobile(ctx, p)
	return p, nil
}

// Create submits form as a new profile.
func (c *ProfileCacheImpl) Create(ctx context.Context, form ProfileForm) (*model.RiderProfile, error) {
	if form.UserID == 0 {
		if u, ok := c.sessions.GetUser(ctx); ok {
			form.UserID = u.ID
		}
	}
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/rider-profiles",
		Form:   form.multipart(),
		Auth:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := rejected(env, "Could not create profile"); err != nil {
		return nil, err
	}
	p := c.echoed(env)
	if p == nil {
		p = &model.RiderProfile{}
		form.overlay(p)
	}
	c.fillMobile(ctx, p)
	c.persist(ctx, p)
	return p, nil
}

// Update submits form for userID. The result comes from the response, else a re-fetch,
// else the cached profile with the form applied.
func (c *ProfileCacheImpl) Update(ctx context.Context, userID int64, form ProfileForm) (*model.RiderProfile, error) {
	if form.UserID == 0 {
		form.UserID = userID
	}
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/rider-profiles/user/%d", userID),
		Form:   form.multipart(),
		Auth:   true,
	})
	if err != nil {
		return nil, err
	}
	if err := rejected(env, "Could not update profile"); err != nil {
		return nil, err
	}

	p := c.echoed(env)
	if p == nil {
		fetched, ferr := c.fetch(ctx, userID)
		switch {
		case errors.Is(ferr, errs.ErrUnauthenticated):
			return nil, fmt.Errorf("profile updated but not reloaded: %w", ferr)
		case ferr != nil:
			c.log.Debug("profile re-fetch after update failed", zap.Error(ferr))
		default:
			p = fetched
		}
	}
	if p == nil {
		p = c.synthesize(ctx, userID, form)
	}
	c.fillMobile(ctx, p)
	c.persist(ctx, p)
	return p, nil
}

// Remove deletes the profile and the cached copy.
func (c *ProfileCacheImpl) Remove(ctx context.Context, profileID int64) (string, error) {
	env, err := c.tr.Do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/rider-profiles/%d", profileID),
		Auth:   true,
	})
	if err != nil {
		return "", err
	}
	if err := rejected(env, "Could not delete profile"); err != nil {
		return "", err
	}
	if err := c.kv.Remove(ctx, session.KeyProfile); err != nil {
		c.log.Warn("drop cached profile failed", zap.Error(err))
	}
	return textOr(env, "Profile deleted successfully"), nil
}

// echoed returns the profile carried in data, if the server sent one.
func (c *ProfileCacheImpl) echoed(env *transport.Envelope) *model.RiderProfile {
	rp, ok, err := transport.DecodeOne[remoteProfile](env)
	if err != nil {
		// e.g. data:[1] from an update that only reports affected rows
		c.log.Debug("response data is not a profile", zap.Error(err))
		return nil
	}
	if !ok || strings.TrimSpace(rp.FullName) == "" {
		return nil
	}
	return rp.flatten()
}

func (c *ProfileCacheImpl) synthesize(ctx context.Context, userID int64, form ProfileForm) *model.RiderProfile {
	p := &model.RiderProfile{UserID: userID}
	if cached, err := c.Load(ctx); err == nil {
		p = cached
	}
	form.overlay(p)
	return p
}

func (c *ProfileCacheImpl) fillMobile(ctx context.Context, p *model.RiderProfile) {
	if p.Mobile != "" {
		return
	}
	if u, ok := c.sessions.GetUser(ctx); ok {
		p.Mobile = u.Mobile
		if p.UserType == "" {
			p.UserType = u.UserType
		}
	}
}

// persist is best effort: a failed write never fails a completed remote call.
// Without a session nothing is written.
func (c *ProfileCacheImpl) persist(ctx context.Context, p *model.RiderProfile) {
	if _, ok := c.sessions.GetToken(ctx); !ok {
		c.log.Debug("no session, profile not persisted")
		return
	}
	if err := repository.SetJSON(ctx, c.kv, session.KeyProfile, p); err != nil {
		c.log.Warn("persist profile failed", zap.Error(err))
	}
}
