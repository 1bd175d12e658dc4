// Package repository defines the local key-value store interface implemented by concrete backends.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcsindia/BonJoyRiderApp-sub000/internal/errs"
)

// KV is a string key-value store with multi-key operations.
// Multi operations are applied as a single logical unit by every backend.
type KV interface {
	// Get returns the stored value or errs.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, overwriting any prior value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// MultiGet returns the present keys only.
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)
	// MultiSet stores all pairs at once.
	MultiSet(ctx context.Context, pairs map[string]string) error
	// MultiRemove deletes all keys at once.
	MultiRemove(ctx context.Context, keys ...string) error
}

// GetJSON loads key into dst. Missing or malformed values report found=false with a nil error;
// only backend failures are returned, as *errs.StorageError.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (found bool, err error) {
	raw, err := kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, wrapStorage("get", key, err)
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON stores v serialized as JSON under key.
func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return wrapStorage("encode", key, err)
	}
	if err := kv.Set(ctx, key, string(b)); err != nil {
		return wrapStorage("set", key, err)
	}
	return nil
}

// EncodePairs serializes each value as JSON for a MultiSet call.
func EncodePairs(values map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for k, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, wrapStorage("encode", k, fmt.Errorf("marshal: %w", err))
		}
		out[k] = string(b)
	}
	return out, nil
}

func wrapStorage(op, key string, err error) error {
	var se *errs.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &errs.StorageError{Op: op, Key: key, Cause: err}
}
