package stream

import (
	"errors"
	"fmt"
	"time"

	"github.com/moontrade/streams/store"
)

const (
	// DefaultCount is the number of entries fetched per stream per read.
	DefaultCount = 100
	// DefaultBlock is the wait of a blocking read when none is configured.
	DefaultBlock = time.Millisecond
)

// ErrInvalidArgument is returned by New for a configuration it cannot use.
var ErrInvalidArgument = errors.New("invalid argument")

// Config controls how an Iterator reads and when it stops.
type Config struct {
	// Streams maps every stream to merge to its start position. The set is
	// fixed for the lifetime of the iterator.
	Streams map[string]store.Position

	// Count is the maximum number of entries fetched per stream by one read.
	// Default 100.
	Count int

	// Block is how long a read waits for new entries when every buffer is
	// empty. Zero means DefaultBlock, store.NoBlock returns immediately and
	// store.Forever waits until something is appended.
	Block time.Duration

	// TimeoutResponse is returned as Result.Timeout when a blocking read
	// times out and StopOnTimeout is false. Default nil.
	TimeoutResponse interface{}

	// StopOnTimeout ends the iteration the first time a blocking read times
	// out. Default false.
	StopOnTimeout bool

	// ReturnConnectionErrors makes Next report an unreachable store as a
	// KindFailure result instead of an error. Default false.
	ReturnConnectionErrors bool
}

func (conf *Config) def() {
	if conf.Count == 0 {
		conf.Count = DefaultCount
	}
	if conf.Block == 0 {
		conf.Block = DefaultBlock
	}
}

func (conf *Config) validate() error {
	if len(conf.Streams) == 0 {
		return fmt.Errorf("%w: no streams", ErrInvalidArgument)
	}
	for name := range conf.Streams {
		if name == "" {
			return fmt.Errorf("%w: empty stream name", ErrInvalidArgument)
		}
	}
	if conf.Count < 0 {
		return fmt.Errorf("%w: count %d", ErrInvalidArgument, conf.Count)
	}
	return nil
}

// FromNow returns start positions that skip every entry already present in
// the named streams.
func FromNow(names ...string) map[string]store.Position {
	return positions(names, store.FromNow())
}

// FromStart returns start positions that include every entry of the named
// streams.
func FromStart(names ...string) map[string]store.Position {
	return positions(names, store.FromStart())
}

func positions(names []string, pos store.Position) map[string]store.Position {
	m := make(map[string]store.Position, len(names))
	for _, name := range names {
		m[name] = pos
	}
	return m
}

// ParsePositions parses a map of stream name to wire position ("$", "0",
// "<ms>" or "<ms>-<seq>").
func ParsePositions(raw map[string]string) (map[string]store.Position, error) {
	m := make(map[string]store.Position, len(raw))
	for name, s := range raw {
		pos, err := store.ParsePosition(s)
		if err != nil {
			return nil, fmt.Errorf("%w: stream %s: %v", ErrInvalidArgument, name, err)
		}
		m[name] = pos
	}
	return m, nil
}
