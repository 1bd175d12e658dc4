package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository/memory"
)

type brokenKV struct{ *memory.Store }

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (brokenKV) Set(context.Context, string, string) error    { return errors.New("disk full") }

func TestJSONHelpers_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.New()

	type rec struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	require.NoError(t, repository.SetJSON(ctx, kv, "k", rec{A: 1, B: "x"}))

	var got rec
	found, err := repository.GetJSON(ctx, kv, "k", &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec{A: 1, B: "x"}, got)
}

func TestGetJSON_MissingAndMalformedAreAbsent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.New()

	var v map[string]any
	found, err := repository.GetJSON(ctx, kv, "nope", &v)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, kv.Set(ctx, "bad", "{not json"))
	found, err = repository.GetJSON(ctx, kv, "bad", &v)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, kv.Set(ctx, "empty", ""))
	found, err = repository.GetJSON(ctx, kv, "empty", &v)
	require.NoError(t, err)
	require.False(t, found)
}

func TestJSONHelpers_BackendErrorsAreStorageErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := brokenKV{memory.New()}

	var v any
	_, err := repository.GetJSON(ctx, kv, "k", &v)
	require.ErrorIs(t, err, errs.ErrStorage)

	err = repository.SetJSON(ctx, kv, "k", 1)
	require.ErrorIs(t, err, errs.ErrStorage)

	err = repository.SetJSON(ctx, memory.New(), "k", make(chan int))
	require.ErrorIs(t, err, errs.ErrStorage)
}

func TestEncodePairs(t *testing.T) {
	t.Parallel()

	out, err := repository.EncodePairs(map[string]any{"a": "x", "b": 2})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": `"x"`, "b": "2"}, out)

	_, err = repository.EncodePairs(map[string]any{"c": func() {}})
	require.ErrorIs(t, err, errs.ErrStorage)
}

func TestMemoryStore_MultiOps(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := memory.New()

	require.NoError(t, kv.MultiSet(ctx, map[string]string{"a": "1", "b": "2", "c": "3"}))
	got, err := kv.MultiGet(ctx, "a", "c", "zz")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "c": "3"}, got)

	require.NoError(t, kv.MultiRemove(ctx, "a", "b", "missing"))
	require.Equal(t, 1, kv.Len())
	_, err = kv.Get(ctx, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, kv.Remove(ctx, "c"))
	require.NoError(t, kv.Remove(ctx, "c"))
	require.Equal(t, 0, kv.Len())
}
