package engine

import (
	"context"
	"testing"

	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func openTestSQLiteEngine(t *testing.T) SQLiteEngine {
	t.Helper()
	dir := t.TempDir()
	e, err := OpenSQLite(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSQLiteEngineScenarios(t *testing.T) {
	e := openTestSQLiteEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Set(ctx, "a", "1"))
	v, ok, err := e.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	require.NoError(t, e.Set(ctx, "a", "2"))
	v, ok, err = e.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok, err = e.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.Remove(ctx, "a"))
	_, ok, err = e.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	err = e.Remove(ctx, "missing")
	require.Error(t, err)
	assert.True(t, kvserr.Is(err, kvserr.KeyNotFound))

	assert.Equal(t, "sqlite", e.Name())
}
