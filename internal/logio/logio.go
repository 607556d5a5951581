// Package logio implements the framed log reader and writer:
// length-prefixed, BSON-serialized LogEntry frames appended to or read
// back from a single log file.
package logio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kvsdb/kvs/internal/kvserr"
	"github.com/kvsdb/kvs/internal/wire"
)

// Frame is one decoded LogEntry together with the byte offset of its
// length header and the on-disk length of its payload.
type Frame struct {
	Entry  wire.LogEntry
	Offset int64
	Len    uint32
}

// Reader performs random-access and sequential reads of a log file.
// It is not safe for concurrent use from multiple goroutines; callers
// needing concurrent readers should open independent Readers over the
// same file (see internal/readercache).
type Reader struct {
	f   *os.File
	br  *bufio.Reader
	pos int64
}

// NewReader wraps f with its sequential cursor set to 0. It does not
// seek: ReadNext reads from f's current file offset, so f should be
// positioned at the start of the file.
func NewReader(f *os.File) *Reader {
	return &Reader{f: f, br: bufio.NewReader(f)}
}

// Pos returns the reader's current sequential cursor.
func (r *Reader) Pos() int64 { return r.pos }

// ReadNext reads one frame starting at the current cursor. It returns
// (nil, nil) iff EOF is observed exactly at a frame boundary. A
// partial frame (EOF mid-payload) is a hard error, never silent
// truncation.
func (r *Reader) ReadNext() (*Frame, error) {
	start := r.pos
	payload, err := wire.ReadFrame(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &kvserr.IoError{Err: err}
	}
	var entry wire.LogEntry
	if err := wire.Unmarshal(payload, &entry); err != nil {
		return nil, &kvserr.DeserializeEntryError{Pos: start, Err: err}
	}
	frameLen := uint32(len(payload))
	r.pos = start + 4 + int64(frameLen)
	return &Frame{Entry: entry, Offset: start, Len: frameLen}, nil
}

// ReadAt seeks to offset, reads one frame's length and payload, and
// deserializes it. The reader's sequential cursor is updated to
// offset+4+len(payload) so a subsequent ReadNext continues from there.
func (r *Reader) ReadAt(offset int64) (wire.LogEntry, error) {
	if _, err := r.f.Seek(offset, io.SeekStart); err != nil {
		return wire.LogEntry{}, &kvserr.IoError{Err: err}
	}
	r.br.Reset(r.f)
	payload, err := wire.ReadFrame(r.br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return wire.LogEntry{}, &kvserr.IoError{Err: fmt.Errorf("read_pos %d: %w", offset, io.ErrUnexpectedEOF)}
		}
		return wire.LogEntry{}, &kvserr.IoError{Err: err}
	}
	var entry wire.LogEntry
	if err := wire.Unmarshal(payload, &entry); err != nil {
		return wire.LogEntry{}, &kvserr.DeserializeEntryError{Pos: offset, Err: err}
	}
	r.pos = offset + 4 + int64(len(payload))
	return entry, nil
}

// Writer appends framed LogEntry records to a single sink, tracking
// the byte offset of the next append.
type Writer struct {
	f   *os.File
	bw  *bufio.Writer
	pos int64
}

// NewWriter wraps f for appending, with pos initialized to f's current
// size (the caller is expected to have opened f in append mode).
func NewWriter(f *os.File) (*Writer, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, &kvserr.IoError{Err: err}
	}
	return &Writer{f: f, bw: bufio.NewWriter(f), pos: info.Size()}, nil
}

// Pos returns the offset the next Write will land at.
func (w *Writer) Pos() int64 { return w.pos }

// Write serializes entry, appends its length-prefixed frame, flushes
// to the underlying file and fsyncs it, then advances pos by
// 4+len(payload). It returns the pre-write offset. On any failure pos
// is left unchanged and no torn frame is observable by a reader opened
// after a prior successful flush.
func (w *Writer) Write(entry wire.LogEntry) (int64, error) {
	payload, err := wire.Marshal(entry)
	if err != nil {
		return 0, &kvserr.SerializeEntryError{Err: err}
	}
	var buf bytes.Buffer
	if err := wire.WriteFrame(&buf, payload); err != nil {
		return 0, &kvserr.SerializeEntryError{Err: err}
	}

	offset := w.pos
	if _, err := w.bw.Write(buf.Bytes()); err != nil {
		return 0, &kvserr.IoError{Err: err}
	}
	if err := w.bw.Flush(); err != nil {
		return 0, &kvserr.IoError{Err: err}
	}
	if err := w.f.Sync(); err != nil {
		return 0, &kvserr.IoError{Err: err}
	}
	w.pos = offset + int64(buf.Len())
	return offset, nil
}
