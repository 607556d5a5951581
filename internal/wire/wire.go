// Package wire defines the BSON-encoded, length-prefixed framing
// shared by the on-disk log (internal/logio) and the network protocol
// (internal/server, cmd/kvs-client): a 4-byte big-endian length
// followed by exactly that many bytes of a BSON document.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"
)

// maxFrameLen bounds a single frame to guard against a corrupt length
// prefix turning a short read into a multi-gigabyte allocation.
const maxFrameLen = 512 * 1024 * 1024

// LogEntry is the tagged on-disk record: Set{key,value} or
// Remove{key}. Cmd carries the tag, Val is absent for Remove.
type LogEntry struct {
	Cmd string `bson:"cmd"`
	Key string `bson:"key"`
	Val string `bson:"val,omitempty"`
}

// SetEntry builds a Set{key,value} LogEntry.
func SetEntry(key, val string) LogEntry { return LogEntry{Cmd: "Set", Key: key, Val: val} }

// RemoveEntry builds a Remove{key} LogEntry.
func RemoveEntry(key string) LogEntry { return LogEntry{Cmd: "Remove", Key: key} }

// IsSet reports whether e is a Set record.
func (e LogEntry) IsSet() bool { return e.Cmd == "Set" }

// IsRemove reports whether e is a Remove record.
func (e LogEntry) IsRemove() bool { return e.Cmd == "Remove" }

// Request is one client->server command, tag field "cmd".
type Request struct {
	Cmd string `bson:"cmd"`
	Key string `bson:"key"`
	Val string `bson:"val,omitempty"`
}

// GetRequest builds a Get{key} request.
func GetRequest(key string) Request { return Request{Cmd: "Get", Key: key} }

// SetRequest builds a Set{key,val} request.
func SetRequest(key, val string) Request { return Request{Cmd: "Set", Key: key, Val: val} }

// RemoveRequest builds a Remove{key} request.
func RemoveRequest(key string) Request { return Request{Cmd: "Remove", Key: key} }

// Response is one server->client reply, tag field "t":
// Ok, OkVal(value), or Err(message).
type Response struct {
	T   string `bson:"t"`
	Val string `bson:"val,omitempty"`
	Err string `bson:"err,omitempty"`
}

// OkResponse builds a bare Ok response (successful Set/Remove, or a Get
// of an absent key).
func OkResponse() Response { return Response{T: "Ok"} }

// OkValResponse builds an OkVal(value) response (successful Get).
func OkValResponse(val string) Response { return Response{T: "OkVal", Val: val} }

// ErrResponse builds an Err(message) response.
func ErrResponse(msg string) Response { return Response{T: "Err", Err: msg} }

// Marshal encodes v (a LogEntry, Request, or Response) as BSON.
func Marshal(v interface{}) ([]byte, error) {
	return bson.Marshal(v)
}

// Unmarshal decodes a BSON payload into v.
func Unmarshal(data []byte, v interface{}) error {
	return bson.Unmarshal(data, v)
}

// ReadFrame reads one u32be-length-prefixed payload from r. It returns
// io.EOF (unwrapped, checkable with ==) exactly when EOF is observed
// at a frame boundary, i.e. before any byte of the length prefix is
// read. A short read while reading the length or the payload is a
// hard error (io.ErrUnexpectedEOF wrapped), never silent truncation.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("wire: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLen {
		return nil, fmt.Errorf("wire: frame length %d exceeds maximum %d", n, maxFrameLen)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}
	return payload, nil
}

// WriteFrame writes payload to w prefixed by its u32be length.
func WriteFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("wire: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}
