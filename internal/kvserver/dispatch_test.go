package kvserver

import (
	"context"
	"testing"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newDispatchEngine(t *testing.T) engine.KvsEngine {
	t.Helper()
	e, err := engine.Open(t.TempDir(), zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDispatchSetGetRm(t *testing.T) {
	eng := newDispatchEngine(t)
	ctx := context.Background()

	resp := dispatch(ctx, eng, protocol.BuildBulkArray("set", "k", "v"))
	assert.Equal(t, protocol.BulkNone(), resp)

	resp = dispatch(ctx, eng, protocol.BuildBulkArray("get", "k"))
	assert.Equal(t, protocol.BulkSome("v"), resp)

	resp = dispatch(ctx, eng, protocol.BuildBulkArray("rm", "k"))
	assert.Equal(t, protocol.BulkNone(), resp)

	resp = dispatch(ctx, eng, protocol.BuildBulkArray("get", "k"))
	assert.Equal(t, protocol.BulkNone(), resp)
}

func TestDispatchGetMiss(t *testing.T) {
	eng := newDispatchEngine(t)
	resp := dispatch(context.Background(), eng, protocol.BuildBulkArray("get", "missing"))
	assert.Equal(t, protocol.BulkNone(), resp)
}

func TestDispatchRemoveMissingIsError(t *testing.T) {
	eng := newDispatchEngine(t)
	resp := dispatch(context.Background(), eng, protocol.BuildBulkArray("rm", "missing"))
	require.Equal(t, protocol.KindError, resp.Kind)
}

func TestDispatchUnknownVerb(t *testing.T) {
	eng := newDispatchEngine(t)
	resp := dispatch(context.Background(), eng, protocol.BuildBulkArray("frobnicate", "k"))
	require.Equal(t, protocol.KindError, resp.Kind)
}

func TestDispatchWrongArity(t *testing.T) {
	eng := newDispatchEngine(t)
	resp := dispatch(context.Background(), eng, protocol.BuildBulkArray("set", "k"))
	require.Equal(t, protocol.KindError, resp.Kind)
}

func TestDispatchNonArrayMessage(t *testing.T) {
	eng := newDispatchEngine(t)
	resp := dispatch(context.Background(), eng, protocol.Line("not a command"))
	require.Equal(t, protocol.KindError, resp.Kind)
}
