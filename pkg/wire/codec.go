// Package wire provides the protocol-connection contract rpcconn
// consumes (pkg/wire.ProtocolConn) and a default implementation built
// on top of a reactor.RawConn: a length-prefixed framing codec ported
// from the reference fabric's flow codecs, plus request/response
// pairing for a single multiplexed byte stream.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
)

// Codec frames a []byte payload on the wire. Implementations must be
// safe for Encode and Decode to be called concurrently with each other
// (but not with themselves) since a DefaultConn decodes on its own read
// goroutine while callers encode, one at a time, under a write lock.
type Codec interface {
	Encode(w io.Writer, payload []byte) error
	Decode(r io.Reader) ([]byte, error)
}

// BytesCodec frames payloads with a protobuf varint length prefix, the
// same scheme grinta's pkg/flow.BytesCodec uses for its quic streams.
type BytesCodec struct{}

func (BytesCodec) Encode(w io.Writer, payload []byte) error {
	prefix := protowire.AppendVarint(nil, uint64(len(payload)))
	buf := make([]byte, len(prefix)+len(payload))
	copy(buf, prefix)
	copy(buf[len(prefix):], payload)
	_, err := w.Write(buf)
	return err
}

func (BytesCodec) Decode(r io.Reader) ([]byte, error) {
	prefixBuf := make([]byte, binary.MaxVarintLen64)
	n := 0
	for n < len(prefixBuf) {
		m, err := r.Read(prefixBuf[n : n+1])
		if err != nil {
			return nil, err
		}
		if m == 0 {
			continue
		}
		b := prefixBuf[n]
		n++
		if b < 0x80 {
			break
		}
	}

	size, sizeLen := protowire.ConsumeVarint(prefixBuf[:n])
	if err := protowire.ParseError(sizeLen); err != nil {
		return nil, fmt.Errorf("wire: malformed length prefix: %w", err)
	}

	buf := make([]byte, size)
	read := 0
	for read < len(buf) {
		m, err := r.Read(buf[read:])
		if err != nil {
			return nil, err
		}
		read += m
	}
	return buf, nil
}

// ProtoCodec marshals/unmarshals a proto.Message on top of BytesCodec's
// framing, for callers whose ConnectionFactory wants typed requests
// instead of raw bytes; ported from grinta's pkg/flow.ProtoCodec.
type ProtoCodec[Msg proto.Message] struct {
	inner  BytesCodec
	newMsg func() Msg
}

func NewProtoCodec[Msg proto.Message](newMsg func() Msg) ProtoCodec[Msg] {
	return ProtoCodec[Msg]{newMsg: newMsg}
}

func (c ProtoCodec[Msg]) EncodeMsg(w io.Writer, msg Msg) error {
	buf, err := proto.Marshal(msg)
	if err != nil {
		return err
	}
	return c.inner.Encode(w, buf)
}

func (c ProtoCodec[Msg]) DecodeMsg(r io.Reader) (Msg, error) {
	buf, err := c.inner.Decode(r)
	if err != nil {
		var zero Msg
		return zero, err
	}
	msg := c.newMsg()
	if err := proto.Unmarshal(buf, msg); err != nil {
		var zero Msg
		return zero, err
	}
	return msg, nil
}
