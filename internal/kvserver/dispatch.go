package kvserver

import (
	"bufio"
	"context"
	"fmt"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/protocol"
)

func decodeRequest(reader *bufio.Reader) (protocol.Msg, error) {
	return protocol.Decode(reader)
}

func encodeResponse(m protocol.Msg) []byte {
	return protocol.Encode(m)
}

// dispatch interprets a decoded request as [verb, args...] and invokes
// the matching engine operation, per the client command grammar: get/set
// return Bulk messages, rm/set also return Bulk(None) on success, and any
// failure becomes an Error message. The connection itself is never
// closed on an engine-level failure — only on a protocol-level decode
// error, handled by the caller.
func dispatch(ctx context.Context, eng engine.Engine, msg protocol.Msg) protocol.Msg {
	args, err := protocol.ToStringSlice(msg)
	if err != nil {
		return protocol.ErrorMsg(kvserr.WireMessage(kvserr.New(kvserr.InvalidArguments, "command must be an array of bulk strings")))
	}
	if len(args) == 0 {
		return protocol.ErrorMsg(kvserr.WireMessage(kvserr.New(kvserr.InvalidArguments, "empty command")))
	}

	switch args[0] {
	case "get":
		if len(args) != 2 {
			return invalidArity("get", 1, len(args)-1)
		}
		value, ok, err := eng.Get(ctx, args[1])
		if err != nil {
			return protocol.ErrorMsg(kvserr.WireMessage(err))
		}
		if !ok {
			return protocol.BulkNone()
		}
		return protocol.BulkSome(value)

	case "set":
		if len(args) != 3 {
			return invalidArity("set", 2, len(args)-1)
		}
		if err := eng.Set(ctx, args[1], args[2]); err != nil {
			return protocol.ErrorMsg(kvserr.WireMessage(err))
		}
		return protocol.BulkNone()

	case "rm":
		if len(args) != 2 {
			return invalidArity("rm", 1, len(args)-1)
		}
		if err := eng.Remove(ctx, args[1]); err != nil {
			return protocol.ErrorMsg(kvserr.WireMessage(err))
		}
		return protocol.BulkNone()

	default:
		return protocol.ErrorMsg(kvserr.WireMessage(kvserr.New(kvserr.InvalidArguments, fmt.Sprintf("unknown verb %q", args[0]))))
	}
}

func invalidArity(verb string, want, got int) protocol.Msg {
	return protocol.ErrorMsg(kvserr.WireMessage(kvserr.New(kvserr.InvalidArguments,
		fmt.Sprintf("%s expects %d argument(s), got %d", verb, want, got))))
}
