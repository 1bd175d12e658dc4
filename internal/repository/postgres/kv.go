package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/repository"
)

// KVStore implements repository.KV on the kv_store table, scoped by namespace.
type KVStore struct {
	db *DB
	ns string
}

var _ repository.KV = (*KVStore)(nil)

// NewKVStore constructs a store; ns separates devices or users sharing one database.
func NewKVStore(db *DB, ns string) *KVStore {
	if ns == "" {
		ns = "default"
	}
	return &KVStore{db: db, ns: ns}
}

const (
	qGet    = `SELECT value FROM kv_store WHERE ns=$1 AND key=$2`
	qMGet   = `SELECT key, value FROM kv_store WHERE ns=$1 AND key = ANY($2)`
	qUpsert = `
INSERT INTO kv_store (ns, key, value, updated_at) VALUES ($1,$2,$3,now())
ON CONFLICT (ns, key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	qDel  = `DELETE FROM kv_store WHERE ns=$1 AND key=$2`
	qMDel = `DELETE FROM kv_store WHERE ns=$1 AND key = ANY($2)`
)

// Get returns the value for key or errs.ErrNotFound.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	if err := s.db.Pool.QueryRow(ctx, qGet, s.ns, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", errs.ErrNotFound
		}
		return "", &errs.StorageError{Op: "get", Key: key, Cause: err}
	}
	return v, nil
}

// Set upserts a single key.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.db.Pool.Exec(ctx, qUpsert, s.ns, key, value); err != nil {
		return &errs.StorageError{Op: "set", Key: key, Cause: err}
	}
	return nil
}

// Remove deletes a single key.
func (s *KVStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.Pool.Exec(ctx, qDel, s.ns, key); err != nil {
		return &errs.StorageError{Op: "remove", Key: key, Cause: err}
	}
	return nil
}

// MultiGet loads all present keys in one query.
func (s *KVStore) MultiGet(ctx context.Context, keys ...string) (map[string]string, error) {
	rows, err := s.db.Pool.Query(ctx, qMGet, s.ns, keys)
	if err != nil {
		return nil, &errs.StorageError{Op: "multiget", Cause: err}
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, &errs.StorageError{Op: "multiget", Cause: err}
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.StorageError{Op: "multiget", Cause: err}
	}
	return out, nil
}

// MultiSet upserts all pairs inside one transaction, in key order.
func (s *KVStore) MultiSet(ctx context.Context, pairs map[string]string) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return &errs.StorageError{Op: "multiset", Cause: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = &errs.StorageError{Op: "multiset", Cause: e}
		}
	}()

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err = tx.Exec(ctx, qUpsert, s.ns, k, pairs[k]); err != nil {
			return &errs.StorageError{Op: "multiset", Key: k, Cause: err}
		}
	}
	return nil
}

// MultiRemove deletes all keys in one statement.
func (s *KVStore) MultiRemove(ctx context.Context, keys ...string) error {
	if _, err := s.db.Pool.Exec(ctx, qMDel, s.ns, keys); err != nil {
		return &errs.StorageError{Op: "multiremove", Cause: err}
	}
	return nil
}
