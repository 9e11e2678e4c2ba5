package stream

import (
	"errors"

	"github.com/moontrade/streams/store"
)

// ErrDone is returned by Next once the iteration has ended.
var ErrDone = errors.New("stream: no more entries")

// Kind tells which field of a Result is set.
type Kind uint8

const (
	// KindNone is the kind of the zero Result returned alongside an error.
	KindNone Kind = iota
	// KindEntry carries the next entry in Result.Entry.
	KindEntry
	// KindTimeout reports a blocking read that timed out. Result.Timeout
	// holds Config.TimeoutResponse.
	KindTimeout
	// KindFailure reports an unreachable store in Result.Err. Only returned
	// with Config.ReturnConnectionErrors.
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEntry:
		return "entry"
	case KindTimeout:
		return "timeout"
	case KindFailure:
		return "failure"
	}
	return "unknown"
}

// Result is one step of an Iterator.
type Result struct {
	Kind    Kind
	Entry   store.Entry
	Timeout interface{}
	Err     error
}
