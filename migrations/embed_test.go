package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFS_ContainsKVStore(t *testing.T) {
	names, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Contains(t, names, "00001_kv_store.sql")

	b, err := fs.ReadFile(FS, "00001_kv_store.sql")
	require.NoError(t, err)
	require.Contains(t, string(b), "-- +goose Up")
	require.Contains(t, string(b), "PRIMARY KEY (ns, key)")
}
