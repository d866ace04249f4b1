// Package kvclient implements the thin client wrapper: connect, send one
// framed request, block for one framed response.
package kvclient

import (
	"bufio"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/protocol"
)

// Client holds one TCP connection to a kvs server.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
}

// Connect dials addr, which must include a port (e.g. "127.0.0.1:4000").
func Connect(addr string) (*Client, error) {
	if !strings.Contains(addr, ":") {
		return nil, kvserr.New(kvserr.InvalidAddress, "address must include a port")
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, kvserr.Wrap(kvserr.Io, "dialing server", err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// ConnectWithRetry dials addr with exponential backoff, retrying up to
// maxElapsed before giving up. Grounded on the same
// backoff.NewExponentialBackOff + backoff.Retry pattern used elsewhere in
// this codebase's RPC dial paths.
func ConnectWithRetry(addr string, maxElapsed time.Duration) (*Client, error) {
	var client *Client
	operation := func() error {
		c, err := Connect(addr)
		if err != nil {
			return err
		}
		client = c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return client, nil
}

// RequestMsg writes the encoded request and blocks for exactly one
// framed response.
func (c *Client) RequestMsg(req protocol.Msg) (protocol.Msg, error) {
	if _, err := c.conn.Write(protocol.Encode(req)); err != nil {
		return protocol.Msg{}, kvserr.Wrap(kvserr.Io, "writing request", err)
	}
	resp, err := protocol.Decode(c.reader)
	if err != nil {
		return protocol.Msg{}, err
	}
	return resp, nil
}

// Get issues a get command.
func (c *Client) Get(key string) (value string, ok bool, err error) {
	resp, err := c.RequestMsg(protocol.BuildBulkArray("get", key))
	if err != nil {
		return "", false, err
	}
	return interpretBulkResponse(resp)
}

// Set issues a set command.
func (c *Client) Set(key, value string) error {
	resp, err := c.RequestMsg(protocol.BuildBulkArray("set", key, value))
	if err != nil {
		return err
	}
	_, _, err = interpretBulkResponse(resp)
	return err
}

// Remove issues an rm command.
func (c *Client) Remove(key string) error {
	resp, err := c.RequestMsg(protocol.BuildBulkArray("rm", key))
	if err != nil {
		return err
	}
	_, _, err = interpretBulkResponse(resp)
	return err
}

func interpretBulkResponse(resp protocol.Msg) (string, bool, error) {
	switch resp.Kind {
	case protocol.KindBulk:
		if resp.Bulk == nil {
			return "", false, nil
		}
		return *resp.Bulk, true, nil
	case protocol.KindError:
		if resp.Line == kvserr.ErrKeyNotFound.Message {
			return "", false, kvserr.New(kvserr.KeyNotFound, resp.Line)
		}
		return "", false, kvserr.New(kvserr.Internal, resp.Line)
	default:
		return "", false, kvserr.New(kvserr.Protocol, "unexpected response shape")
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
