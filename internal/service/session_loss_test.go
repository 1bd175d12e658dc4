package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/model"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/session"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/transport"
)

// unauthorized answers like the HTTP transport does on a 401: the session is cleared first.
func unauthorized(t *testing.T, s *session.Store) (*transport.Envelope, error) {
	t.Helper()
	if err := s.ClearSession(context.Background()); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	return nil, errs.ErrUnauthenticated
}

func requireNoCache(t *testing.T, kv repository.KV, key string) {
	t.Helper()
	var v any
	found, err := repository.GetJSON(context.Background(), kv, key, &v)
	require.NoError(t, err)
	if found {
		t.Fatalf("%s still cached after the session ended: %v", key, v)
	}
}

func TestContacts_SetPrimaryUnauthorizedLeavesNoCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newContactsBackend()
	sessions, kv := newSessions(t)
	api := &fakeAPI{handle: be.handle}
	c := NewContactsCache(api, kv, sessions, zaptest.NewLogger(t))

	a, err := c.Add(ctx, input("A", "9000000001", false))
	require.NoError(t, err)
	b, err := c.Add(ctx, input("B", "9000000002", false))
	require.NoError(t, err)

	api.handle = func(req transport.Request) (*transport.Envelope, error) {
		if req.Method == http.MethodPut && req.Path == fmt.Sprintf("/emergency-contacts/%d", a.ID) {
			return unauthorized(t, sessions)
		}
		return be.handle(req)
	}
	_, err = c.SetPrimary(ctx, b.ID)
	require.ErrorIs(t, err, errs.ErrUnauthenticated)

	_, ok := sessions.GetToken(ctx)
	require.False(t, ok)
	requireNoCache(t, kv, session.KeyContacts)
	assert.Equal(t, 1, api.count(http.MethodGet, "/emergency-contacts"), "no reload after the session ended")
}

func TestContacts_AddUnauthorizedReloadLeavesNoCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newContactsBackend()
	sessions, kv := newSessions(t)
	api := &fakeAPI{handle: be.handle}
	c := NewContactsCache(api, kv, sessions, zaptest.NewLogger(t))

	_, err := c.Add(ctx, input("A", "9000000001", false))
	require.NoError(t, err)

	be.noEcho = true
	api.handle = func(req transport.Request) (*transport.Envelope, error) {
		if req.Method == http.MethodGet {
			return unauthorized(t, sessions)
		}
		return be.handle(req)
	}
	got, err := c.Add(ctx, input("B", "9000000002", false))
	require.ErrorIs(t, err, errs.ErrUnauthenticated)
	require.NotNil(t, got)
	assert.Equal(t, "B", got.Name)
	requireNoCache(t, kv, session.KeyContacts)
}

func TestContacts_AddWithoutServerIDIsNotCached(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c, be, _, kv := newContacts(t)

	_, err := c.Add(ctx, input("A", "9000000001", false))
	require.NoError(t, err)

	be.noEcho = true
	be.failList = transientErr
	got, err := c.Add(ctx, input("B", "9000000002", false))
	require.NoError(t, err)
	assert.Zero(t, got.ID)
	requireNoCache(t, kv, session.KeyContacts)

	be.failList = nil
	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, ct := range list {
		assert.NotZero(t, ct.ID)
	}
}

func TestProfile_UpdateUnauthorizedReloadFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sessions, kv := newSessions(t)
	api := &fakeAPI{}
	api.handle = func(req transport.Request) (*transport.Envelope, error) {
		if req.Method == http.MethodPut {
			return envelope(`{"success":true,"data":[1]}`), nil
		}
		return unauthorized(t, sessions)
	}
	c := NewProfileCache(api, kv, sessions, zaptest.NewLogger(t))

	p, err := c.Update(ctx, 7, ProfileForm{FullName: "Asha"})
	if !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("want unauthenticated, got %+v, %v", p, err)
	}
	requireNoCache(t, kv, session.KeyProfile)
}

func TestVerifyOTP_OtherUserStartsWithEmptyCaches(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	be := newContactsBackend()
	sessions, kv := newSessions(t)

	var previous []model.EmergencyContact
	for i := 0; i < MaxContacts; i++ {
		previous = append(previous, model.EmergencyContact{ID: int64(i + 1), UserID: 7, Name: "C", Number: "9000000001"})
	}
	require.NoError(t, repository.SetJSON(ctx, kv, session.KeyContacts, previous))
	require.NoError(t, repository.SetJSON(ctx, kv, session.KeyProfile, model.RiderProfile{UserID: 7, FullName: "Seven"}))

	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		if strings.HasPrefix(req.Path, "/rider/") {
			return envelope(`{"success":true,"token":"t8","user":{"id":8,"mobile":"9123456780"}}`), nil
		}
		return be.handle(req)
	}}
	auth := NewAuthService(api, sessions, zaptest.NewLogger(t))
	_, err := auth.VerifyOTP(ctx, "9123456780", "1234")
	require.NoError(t, err)

	requireNoCache(t, kv, session.KeyProfile)
	contacts := NewContactsCache(api, kv, sessions, zaptest.NewLogger(t))
	got, err := contacts.Add(ctx, input("Mine", "9000000009", false))
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.UserID)
	assert.True(t, bool(got.IsPrimary), "first contact of the new user")
}
