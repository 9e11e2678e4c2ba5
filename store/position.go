package store

import (
	"errors"
	"fmt"

	"github.com/moontrade/streams/streamid"
)

// ErrInvalidPosition is returned when a start position cannot be parsed.
var ErrInvalidPosition = errors.New("invalid position")

type positionKind uint8

const (
	explicit positionKind = iota
	fromStart
	fromNow
)

// Position is a place to start reading a stream from. Reads return entries
// strictly after the position.
type Position struct {
	kind positionKind
	id   streamid.ID
}

// At returns the position of id. Reads return entries after id.
func At(id streamid.ID) Position {
	if id.IsZero() {
		return FromStart()
	}
	return Position{kind: explicit, id: id}
}

// FromStart returns the position before the first entry of a stream.
func FromStart() Position {
	return Position{kind: fromStart}
}

// FromNow returns the position after the last entry of a stream at the time
// it is resolved.
func FromNow() Position {
	return Position{kind: fromNow}
}

// ParsePosition parses "$" (now), "0" or "0-0" (start), "<ms>" or
// "<ms>-<seq>".
func ParsePosition(s string) (Position, error) {
	if s == "$" {
		return FromNow(), nil
	}
	id, err := streamid.ParseIncomplete(s)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}
	return At(id), nil
}

// ID returns the explicit ID of the position. FromStart reports streamid.Min
// and FromNow reports false.
func (p Position) ID() (streamid.ID, bool) {
	switch p.kind {
	case explicit:
		return p.id, true
	case fromStart:
		return streamid.Min, true
	}
	return streamid.ID{}, false
}

func (p Position) IsNow() bool {
	return p.kind == fromNow
}

// After reports whether id lies after the position. Everything is after
// FromNow since its tail is unknown to the caller.
func (p Position) After(id streamid.ID) bool {
	switch p.kind {
	case explicit:
		return p.id.Less(id)
	case fromStart:
		return !id.IsZero()
	}
	return true
}

// String returns the wire form used by XREAD.
func (p Position) String() string {
	switch p.kind {
	case explicit:
		return p.id.String()
	case fromStart:
		return "0-0"
	}
	return "$"
}
