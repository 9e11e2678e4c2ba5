// Package store defines the read contract of an append-only stream store and
// implements it over the Redis streams protocol.
package store

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/moontrade/streams/streamid"
)

const (
	// NoBlock makes a read return immediately with whatever is available.
	NoBlock time.Duration = -1
	// Forever makes a read block until at least one entry is available.
	Forever time.Duration = 1<<63 - 1
)

// ErrNoData is returned by a read that found no entries, either immediately
// or within its block timeout.
var ErrNoData = errors.New("no data")

// Client reads batches of entries from several streams at once.
type Client interface {
	// Read returns, per stream, up to count entries strictly after the given
	// position in ascending ID order. Streams without new entries may be
	// absent from the result. When no stream has entries, Read returns
	// ErrNoData after waiting according to block (NoBlock, Forever or a
	// bounded duration).
	Read(positions map[string]Position, count int, block time.Duration) (map[string][]Entry, error)
}

// Tailer is implemented by clients that can report the last ID of a stream.
type Tailer interface {
	// Tail returns the ID of the last entry of a stream, or streamid.Min when
	// the stream is empty or does not exist.
	Tail(stream string) (streamid.ID, error)
}

// ConnectionError reports that the store could not be reached.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return "store: " + e.Op + ": connection failure: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionFailure reports whether err means the store was unreachable,
// as opposed to a timeout, a rejected command or bad data.
func IsConnectionFailure(err error) bool {
	if err == nil {
		return false
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}

// BlockMillis converts a block duration to the XREAD BLOCK argument. The
// second result is false for NoBlock. Bounded waits are rounded up to a whole
// millisecond.
func BlockMillis(block time.Duration) (int64, bool) {
	switch {
	case block < 0:
		return 0, false
	case block == Forever:
		return 0, true
	}
	ms := int64((block + time.Millisecond - 1) / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	return ms, true
}
