package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/require"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
)

func TestStore_Get(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	s := New(db, "bonjoy:")
	ctx := context.Background()

	mock.ExpectGet("bonjoy:auth.token").SetVal("abc")
	v, err := s.Get(ctx, "auth.token")
	require.NoError(t, err)
	require.Equal(t, "abc", v)

	mock.ExpectGet("bonjoy:missing").RedisNil()
	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectGet("bonjoy:k").SetErr(errors.New("conn refused"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, errs.ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetAndRemove(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	s := New(db, "p:")
	ctx := context.Background()

	mock.ExpectSet("p:k", "v", 0).SetVal("OK")
	require.NoError(t, s.Set(ctx, "k", "v"))

	mock.ExpectDel("p:k").SetVal(1)
	require.NoError(t, s.Remove(ctx, "k"))

	mock.ExpectSet("p:k", "v", 0).SetErr(errors.New("readonly"))
	require.ErrorIs(t, s.Set(ctx, "k", "v"), errs.ErrStorage)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MultiGet_SkipsMissing(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	s := New(db, "p:")

	mock.ExpectMGet("p:a", "p:b", "p:c").SetVal([]any{"1", nil, "3"})
	got, err := s.MultiGet(context.Background(), "a", "b", "c")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1", "c": "3"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MultiSetAndMultiRemove(t *testing.T) {
	t.Parallel()
	db, mock := redismock.NewClientMock()
	s := New(db, "p:")
	ctx := context.Background()

	mock.ExpectMSet("p:a", "1", "p:b", "2").SetVal("OK")
	require.NoError(t, s.MultiSet(ctx, map[string]string{"b": "2", "a": "1"}))

	mock.ExpectDel("p:a", "p:b").SetVal(2)
	require.NoError(t, s.MultiRemove(ctx, "a", "b"))

	// empty input never reaches redis
	require.NoError(t, s.MultiSet(ctx, nil))
	require.NoError(t, s.MultiRemove(ctx))
	got, err := s.MultiGet(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.NoError(t, mock.ExpectationsWereMet())
}
