package service

import (
	"context"
	"errors"
	"net/http"
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

const remoteProfileBody = `{"success":true,"data":{"id":11,"user_id":7,"fullName":"Asha Rao","gender":"female",
"dob":"1994-03-02","city":"Pune","profileImage":"uploads/a.jpg","createdAt":"2025-01-01T00:00:00Z",
"User":{"email":"asha@example.com","mobile":"9876543210","userType":"Rider","status":"Active"}}}`

func newProfileCache(t *testing.T, api *fakeAPI) (*ProfileCacheImpl, repository.KV) {
	t.Helper()
	sessions, kv := newSessions(t)
	return NewProfileCache(api, kv, sessions, zaptest.NewLogger(t)), kv
}

func TestProfile_RefreshFlattensAndPersists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		assert.Equal(t, "/rider-profiles/user/7", req.Path)
		assert.True(t, req.Auth)
		return envelope(remoteProfileBody), nil
	}}
	c, _ := newProfileCache(t, api)

	_, err := c.Load(ctx)
	require.ErrorIs(t, err, errs.ErrNotFound)

	p, err := c.Refresh(ctx, 7)
	require.NoError(t, err)
	want := model.RiderProfile{
		ProfileID: 11, UserID: 7, FullName: "Asha Rao", Gender: "female", DOB: "1994-03-02", City: "Pune",
		ProfileImage: "uploads/a.jpg", Email: "asha@example.com", Mobile: "9876543210",
		UserType: "Rider", Status: model.StatusActive, CreatedAt: "2025-01-01T00:00:00Z",
	}
	assert.Equal(t, want, *p)
	assert.True(t, p.IsComplete())

	cached, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, *cached)
}

func TestProfile_RefreshFallsBackOffline(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{handle: func(transport.Request) (*transport.Envelope, error) { return envelope(remoteProfileBody), nil }}
	c, _ := newProfileCache(t, api)

	first, err := c.Refresh(ctx, 7)
	require.NoError(t, err)

	api.handle = func(transport.Request) (*transport.Envelope, error) { return nil, transientErr }
	second, err := c.Refresh(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// with nothing cached the transient error surfaces
	empty, _ := newProfileCache(t, api)
	_, err = empty.Refresh(ctx, 7)
	require.ErrorIs(t, err, errs.ErrTransient)
}

func TestProfile_RefreshNotFound(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{handle: func(transport.Request) (*transport.Envelope, error) {
		return nil, &errs.RequestError{Status: http.StatusNotFound, Message: "Profile not found"}
	}}
	c, _ := newProfileCache(t, api)

	_, err := c.Refresh(context.Background(), 7)
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.ErrorIs(t, err, errs.ErrRequest)

	api.handle = func(transport.Request) (*transport.Envelope, error) { return envelope(`{"success":true,"data":null}`), nil }
	_, err = c.Refresh(context.Background(), 7)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProfile_CreateRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		require.NotNil(t, req.Form)
		assert.Equal(t, "7", req.Form.Fields["user_id"])
		return envelope(`{"success":false,"message":"Profile already exists"}`), nil
	}}
	c, _ := newProfileCache(t, api)

	_, err := c.Create(ctx, ProfileForm{FullName: "Asha", Gender: "female", City: "Pune"})
	require.ErrorIs(t, err, errs.ErrValidation)
	assert.Equal(t, "Profile already exists", errs.Message(err, ""))
	_, err = c.Load(ctx)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestProfile_CreateWithImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/rider-profiles", req.Path)
		require.NotNil(t, req.Form.File)
		assert.Equal(t, "image", req.Form.File.Field)
		assert.NotContains(t, req.Form.Fields, "email")
		return envelope(`{"success":true,"data":{"id":12,"user_id":7,"fullName":"Asha","gender":"female","city":"Pune"}}`), nil
	}}
	c, _ := newProfileCache(t, api)

	p, err := c.Create(ctx, ProfileForm{FullName: "Asha", Gender: "female", City: "Pune",
		Image: &transport.File{Name: "a.jpg", ContentType: "image/jpeg", Data: []byte{1}}})
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.ProfileID)
	// mobile comes from the session when the server omits it
	assert.Equal(t, "9876543210", p.Mobile)
	assert.True(t, p.IsComplete())
}

func TestProfile_UpdateUsesEcho(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		assert.Equal(t, http.MethodPut, req.Method)
		return envelope(remoteProfileBody), nil
	}}
	c, _ := newProfileCache(t, api)

	p, err := c.Update(context.Background(), 7, ProfileForm{City: "Pune"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.ProfileID)
	assert.Equal(t, 1, api.count(http.MethodPut, "/rider-profiles/user/7"))
	assert.Equal(t, 0, api.count(http.MethodGet, "/rider-profiles"))
}

func TestProfile_UpdateRefetchesWithoutEcho(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		if req.Method == http.MethodPut {
			return envelope(`{"success":true,"message":"Profile updated","data":[1]}`), nil
		}
		return envelope(remoteProfileBody), nil
	}}
	c, _ := newProfileCache(t, api)

	p, err := c.Update(context.Background(), 7, ProfileForm{FullName: "Asha Rao"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", p.Email)
	assert.Equal(t, 1, api.count(http.MethodGet, "/rider-profiles/user/7"))
}

func TestProfile_UpdateSynthesizesWhenRefetchFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		if req.Method == http.MethodPut {
			return envelope(""), nil
		}
		return nil, transientErr
	}}
	c, kv := newProfileCache(t, api)
	require.NoError(t, repository.SetJSON(ctx, kv, session.KeyProfile, model.RiderProfile{
		ProfileID: 11, UserID: 7, FullName: "Old Name", Gender: "female", City: "Mumbai",
	}))

	p, err := c.Update(ctx, 7, ProfileForm{FullName: "New Name", City: "Pune"})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, int64(11), p.ProfileID)
	assert.Equal(t, "New Name", p.FullName)
	assert.Equal(t, "Pune", p.City)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "9876543210", p.Mobile)

	cached, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, *p, *cached)
}

func TestProfile_UpdateServerFailure(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{handle: func(transport.Request) (*transport.Envelope, error) {
		return nil, &errs.RequestError{Status: http.StatusUnprocessableEntity, Message: "Invalid date of birth"}
	}}
	c, _ := newProfileCache(t, api)

	_, err := c.Update(context.Background(), 7, ProfileForm{DOB: "tomorrow"})
	require.ErrorIs(t, err, errs.ErrRequest)
	assert.Equal(t, "Invalid date of birth", errs.Message(err, "Could not save profile"))
}

func TestProfile_RemoveDropsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	api := &fakeAPI{handle: func(req transport.Request) (*transport.Envelope, error) {
		if req.Method == http.MethodDelete {
			assert.Equal(t, "/rider-profiles/11", req.Path)
			return envelope(`{"success":true}`), nil
		}
		return envelope(remoteProfileBody), nil
	}}
	c, _ := newProfileCache(t, api)
	_, err := c.Refresh(ctx, 7)
	require.NoError(t, err)

	msg, err := c.Remove(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "Profile deleted successfully", msg)
	_, err = c.Load(ctx)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}
