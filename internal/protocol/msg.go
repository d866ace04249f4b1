// Package protocol implements the RESP-like framing used between kvs
// clients and servers: a small tagged union of five message shapes,
// encoded and decoded over a byte stream.
package protocol

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/kvsdb/kvs/internal/kvserr"
)

// Kind discriminates the five Msg shapes.
type Kind int

const (
	KindLine Kind = iota
	KindError
	KindInteger
	KindBulk
	KindArray
)

// Msg is a tagged union mirroring RESP: exactly one of its fields is
// meaningful, selected by Kind.
type Msg struct {
	Kind    Kind
	Line    string  // KindLine, KindError
	Integer int64   // KindInteger
	Bulk    *string // KindBulk; nil means Bulk(None) i.e. "$-1\r\n"
	Array   []Msg   // KindArray
}

// Line constructs a "+" simple-string message.
func Line(s string) Msg { return Msg{Kind: KindLine, Line: s} }

// ErrorMsg constructs a "-" error message.
func ErrorMsg(s string) Msg { return Msg{Kind: KindError, Line: s} }

// Integer constructs a ":" integer message.
func Integer(n int64) Msg { return Msg{Kind: KindInteger, Integer: n} }

// BulkSome constructs a "$" bulk-string message carrying a value.
func BulkSome(s string) Msg { v := s; return Msg{Kind: KindBulk, Bulk: &v} }

// BulkNone constructs a "$-1\r\n" null bulk-string message.
func BulkNone() Msg { return Msg{Kind: KindBulk, Bulk: nil} }

// Array constructs a "*" array message.
func Array(items ...Msg) Msg { return Msg{Kind: KindArray, Array: items} }

// Encode is total: it never fails, and returns the wire bytes for m.
func Encode(m Msg) []byte {
	var b strings.Builder
	encodeInto(&b, m)
	return []byte(b.String())
}

func encodeInto(b *strings.Builder, m Msg) {
	switch m.Kind {
	case KindLine:
		b.WriteByte('+')
		b.WriteString(m.Line)
		b.WriteString("\r\n")
	case KindError:
		b.WriteByte('-')
		b.WriteString(m.Line)
		b.WriteString("\r\n")
	case KindInteger:
		b.WriteByte(':')
		b.WriteString(strconv.FormatInt(m.Integer, 10))
		b.WriteString("\r\n")
	case KindBulk:
		b.WriteByte('$')
		if m.Bulk == nil {
			b.WriteString("-1\r\n")
			return
		}
		b.WriteString(strconv.Itoa(len(*m.Bulk)))
		b.WriteString("\r\n")
		b.WriteString(*m.Bulk)
		b.WriteString("\r\n")
	case KindArray:
		b.WriteByte('*')
		b.WriteString(strconv.Itoa(len(m.Array)))
		b.WriteString("\r\n")
		for _, item := range m.Array {
			encodeInto(b, item)
		}
	}
}

// Decode reads exactly one framed Msg from r.
func Decode(r *bufio.Reader) (Msg, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return Msg{}, kvserr.Wrap(kvserr.Protocol, "reading frame prefix", err)
	}
	switch prefix {
	case '+':
		line, err := readLine(r)
		if err != nil {
			return Msg{}, err
		}
		return Line(line), nil
	case '-':
		line, err := readLine(r)
		if err != nil {
			return Msg{}, err
		}
		return ErrorMsg(line), nil
	case ':':
		line, err := readLine(r)
		if err != nil {
			return Msg{}, err
		}
		n, perr := strconv.ParseInt(line, 10, 64)
		if perr != nil {
			return Msg{}, kvserr.Wrap(kvserr.Protocol, "malformed integer frame", perr)
		}
		return Integer(n), nil
	case '$':
		line, err := readLine(r)
		if err != nil {
			return Msg{}, err
		}
		n, perr := strconv.Atoi(line)
		if perr != nil {
			return Msg{}, kvserr.Wrap(kvserr.Protocol, "malformed bulk length", perr)
		}
		if n == -1 {
			return BulkNone(), nil
		}
		if n < 0 {
			return Msg{}, kvserr.New(kvserr.Protocol, "negative bulk length")
		}
		buf := make([]byte, n)
		if _, err := readFull(r, buf); err != nil {
			return Msg{}, kvserr.Wrap(kvserr.Protocol, "reading bulk payload", err)
		}
		if _, err := readCRLF(r); err != nil {
			return Msg{}, err
		}
		return BulkSome(string(buf)), nil
	case '*':
		line, err := readLine(r)
		if err != nil {
			return Msg{}, err
		}
		n, perr := strconv.Atoi(line)
		if perr != nil {
			return Msg{}, kvserr.Wrap(kvserr.Protocol, "malformed array count", perr)
		}
		if n < 0 {
			return Msg{}, kvserr.New(kvserr.Protocol, "negative array count")
		}
		items := make([]Msg, n)
		for i := 0; i < n; i++ {
			item, err := Decode(r)
			if err != nil {
				return Msg{}, err
			}
			items[i] = item
		}
		return Array(items...), nil
	default:
		return Msg{}, kvserr.New(kvserr.Protocol, fmt.Sprintf("unknown frame prefix %q", prefix))
	}
}

// readLine reads up to and including a terminating "\r\n", returning the
// content without the terminator.
func readLine(r *bufio.Reader) (string, error) {
	s, err := r.ReadString('\n')
	if err != nil {
		return "", kvserr.Wrap(kvserr.Protocol, "reading frame line", err)
	}
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readCRLF(r *bufio.Reader) (struct{}, error) {
	buf := make([]byte, 2)
	if _, err := readFull(r, buf); err != nil {
		return struct{}{}, kvserr.Wrap(kvserr.Protocol, "reading frame terminator", err)
	}
	if buf[0] != '\r' || buf[1] != '\n' {
		return struct{}{}, kvserr.New(kvserr.Protocol, "malformed frame terminator")
	}
	return struct{}{}, nil
}

// ToStringSlice unwraps an Array(Bulk(Some(_))...) message to a list of
// strings, rejecting any other shape.
func ToStringSlice(m Msg) ([]string, error) {
	if m.Kind != KindArray {
		return nil, kvserr.New(kvserr.Protocol, "expected array message")
	}
	out := make([]string, len(m.Array))
	for i, item := range m.Array {
		if item.Kind != KindBulk || item.Bulk == nil {
			return nil, kvserr.New(kvserr.Protocol, "expected bulk-string array element")
		}
		out[i] = *item.Bulk
	}
	return out, nil
}

// BuildBulkArray is the inverse of ToStringSlice: it wraps strs as an
// Array of Bulk(Some(_)) messages.
func BuildBulkArray(strs ...string) Msg {
	items := make([]Msg, len(strs))
	for i, s := range strs {
		items[i] = BulkSome(s)
	}
	return Array(items...)
}
