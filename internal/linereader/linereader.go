// Package linereader turns a raw byte stream into discrete text lines.
//
// Chunks are pushed in as they arrive from the stream; every complete line is
// delivered to the subscribers in order, without its line terminator. A
// partial trailing line is held until the rest of it arrives or Flush is
// called at end of stream.
package linereader

import (
	"bytes"
	"errors"
	"io"

	"github.com/wagiedev/kernelhost-go/internal/observer"
)

// DefaultMaxLineSize is the largest line the reader buffers before giving up.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// ErrLineTooLong is returned by Push when a line exceeds the configured limit.
var ErrLineTooLong = errors.New("line too long")

// Reader accumulates pushed bytes and emits complete lines.
//
// Push, Flush and Pump must not be called concurrently with each other;
// Subscribe and disposal are safe from any goroutine.
type Reader struct {
	maxLineSize int
	buf         bytes.Buffer
	subscribers observer.Set[string]

	// discarding is set while the rest of an oversized line is skipped.
	discarding bool
}

// New creates a reader. maxLineSize <= 0 selects DefaultMaxLineSize.
func New(maxLineSize int) *Reader {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	return &Reader{maxLineSize: maxLineSize}
}

// Subscribe registers fn to receive every complete line.
func (r *Reader) Subscribe(fn func(line string)) *observer.Subscription {
	return r.subscribers.Subscribe(fn)
}

// Push appends a chunk and emits every line it completes.
//
// A line longer than the limit is dropped whole, up to and including its
// terminator, and ErrLineTooLong is returned once for it.
func (r *Reader) Push(chunk []byte) error {
	var overflow bool

	if r.discarding {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			return nil
		}

		chunk = chunk[idx+1:]
		r.discarding = false
	}

	r.buf.Write(chunk)

	for {
		data := r.buf.Bytes()

		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}

		line := bytes.TrimSuffix(data[:idx], []byte{'\r'})
		if len(line) > r.maxLineSize {
			r.buf.Next(idx + 1)

			overflow = true

			continue
		}

		text := string(line)
		r.buf.Next(idx + 1)

		r.subscribers.Notify(text)
	}

	if r.buf.Len() > r.maxLineSize {
		r.buf.Reset()
		r.discarding = true

		overflow = true
	}

	if overflow {
		return ErrLineTooLong
	}

	return nil
}

// Flush emits any buffered partial line. Called at end of stream.
func (r *Reader) Flush() {
	r.discarding = false

	if r.buf.Len() == 0 {
		return
	}

	line := string(bytes.TrimSuffix(r.buf.Bytes(), []byte{'\r'}))
	r.buf.Reset()

	r.subscribers.Notify(line)
}

// Pump copies src into the reader until EOF or a read error, then flushes.
// It returns the number of bytes read and any error other than io.EOF.
// ErrLineTooLong from Push is reported through onOverflow, when set, and does
// not stop the pump.
func (r *Reader) Pump(src io.Reader, onOverflow func(error)) (int64, error) {
	chunk := make([]byte, 32*1024)

	var total int64

	for {
		n, err := src.Read(chunk)
		if n > 0 {
			total += int64(n)

			if pushErr := r.Push(chunk[:n]); pushErr != nil && onOverflow != nil {
				onOverflow(pushErr)
			}
		}

		if err != nil {
			r.Flush()

			if errors.Is(err, io.EOF) {
				return total, nil
			}

			return total, err
		}
	}
}
