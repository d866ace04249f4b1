package kvclient_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/kvclient"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/kvserver"
	"github.com/kvsdb/kvs/internal/pool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startServerForClientTest(t *testing.T) string {
	t.Helper()
	logger := zaptest.NewLogger(t)

	eng, err := engine.Open(t.TempDir(), logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	workers, err := pool.NewNaivePool(4)
	require.NoError(t, err)
	t.Cleanup(workers.Close)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	srv := kvserver.New(kvserver.Config{Addr: addr, LockDir: t.TempDir()}, eng, workers, logger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return addr
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never started on %s", addr)
	return ""
}

func TestClientSetGetRemove(t *testing.T) {
	addr := startServerForClientTest(t)
	c, err := kvclient.Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("a", "1"))
	v, ok, err := c.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, c.Remove("a"))
	_, ok, err = c.Get("a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClientRemoveMissingIsKeyNotFound(t *testing.T) {
	addr := startServerForClientTest(t)
	c, err := kvclient.Connect(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Remove("missing")
	require.Error(t, err)
	require.True(t, kvserr.Is(err, kvserr.KeyNotFound))
}

func TestConnectRejectsAddressWithoutPort(t *testing.T) {
	_, err := kvclient.Connect("localhost")
	require.Error(t, err)
	require.True(t, kvserr.Is(err, kvserr.InvalidAddress))
}
