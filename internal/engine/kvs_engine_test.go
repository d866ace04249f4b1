package engine

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func itoa(i int) string { return strconv.Itoa(i) }

func openTestEngine(t *testing.T) KvsEngine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(dir, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestSetThenGet(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "a", "1"))
	v, ok, err := e.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestOverwriteKey(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "a", "1"))
	require.NoError(t, e.Set(ctx, "a", "2"))
	v, ok, err := e.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2", v)
}

func TestGetMissing(t *testing.T) {
	e := openTestEngine(t)
	_, ok, err := e.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetRemoveGet(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "a", "1"))
	require.NoError(t, e.Remove(ctx, "a"))
	_, ok, err := e.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveMissingIsKeyNotFound(t *testing.T) {
	e := openTestEngine(t)
	err := e.Remove(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, kvserr.Is(err, kvserr.KeyNotFound))
}

func TestReopenPersistsKeys(t *testing.T) {
	dir := t.TempDir()
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	e1, err := Open(dir, logger, nil)
	require.NoError(t, err)
	const n = 300
	for i := 0; i < n; i++ {
		key := "k" + itoa(i)
		require.NoError(t, e1.Set(ctx, key, key+"-v"))
	}
	require.NoError(t, e1.Close())

	e2, err := Open(dir, logger, nil)
	require.NoError(t, err)
	defer e2.Close()
	for i := 0; i < n; i++ {
		key := "k" + itoa(i)
		v, ok, err := e2.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, "key %s should survive reopen", key)
		assert.Equal(t, key+"-v", v)
	}
}

func TestCompactionPreservesValues(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		key := "k" + itoa(i)
		require.NoError(t, e.Set(ctx, key, key+"-v"))
	}
	require.NoError(t, e.Remove(ctx, "k0"))

	require.NoError(t, e.core.compact())

	_, ok, err := e.Get(ctx, "k0")
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 1; i < 50; i++ {
		key := "k" + itoa(i)
		v, ok, err := e.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, key+"-v", v)
	}
}

func TestConcurrentClonesShareState(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int, clone KvsEngine) {
			defer wg.Done()
			key := "k" + itoa(i)
			require.NoError(t, clone.Set(ctx, key, key+"-v"))
		}(i, e)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		key := "k" + itoa(i)
		v, ok, err := e.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, key+"-v", v)
	}
}

func TestConcurrentReadersDuringWrites(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.Set(ctx, "shared", "seed"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, e.Set(ctx, "w"+itoa(i), "v"))
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.Get(ctx, "shared")
			require.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestEngineName(t *testing.T) {
	e := openTestEngine(t)
	assert.Equal(t, "kvs", e.Name())
}

