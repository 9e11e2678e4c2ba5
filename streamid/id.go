// Package streamid implements the composite identifier of a stream entry.
//
// An ID is the pair (milliseconds, sequence) rendered on the wire as
// "<ms>-<seq>". IDs are ordered numerically, first by the millisecond part and
// then by the sequence, so ordering never depends on how many digits either
// part happens to have.
package streamid

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformed is returned when a string is not a valid stream entry ID.
var ErrMalformed = errors.New("malformed stream id")

// ID identifies an entry within a stream.
type ID struct {
	Ms  uint64
	Seq uint64
}

var (
	// Min is the smallest possible ID, "0-0".
	Min = ID{}
	// Max is the largest possible ID.
	Max = ID{Ms: math.MaxUint64, Seq: math.MaxUint64}
)

// New returns the ID ms-seq.
func New(ms, seq uint64) ID {
	return ID{Ms: ms, Seq: seq}
}

// Parse parses the strict wire form "<ms>-<seq>".
func Parse(s string) (ID, error) {
	dash := strings.IndexByte(s, '-')
	if dash == -1 {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return parse(s, s[:dash], s[dash+1:])
}

// ParseIncomplete is like Parse but also accepts a bare "<ms>", which is
// read as "<ms>-0".
func ParseIncomplete(s string) (ID, error) {
	if strings.IndexByte(s, '-') == -1 {
		return parse(s, s, "0")
	}
	return Parse(s)
}

func parse(s, ms, seq string) (ID, error) {
	if ms == "" || seq == "" || ms[0] == '+' || seq[0] == '+' {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	m, err := strconv.ParseUint(ms, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	q, err := strconv.ParseUint(seq, 10, 64)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	return ID{Ms: m, Seq: q}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ID) String() string {
	b := make([]byte, 0, 41)
	b = strconv.AppendUint(b, id.Ms, 10)
	b = append(b, '-')
	b = strconv.AppendUint(b, id.Seq, 10)
	return string(b)
}

// Compare returns -1, 0 or +1 depending on whether a is less than, equal to
// or greater than b.
func Compare(a, b ID) int {
	switch {
	case a.Ms < b.Ms:
		return -1
	case a.Ms > b.Ms:
		return 1
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	}
	return 0
}

func (id ID) Compare(other ID) int {
	return Compare(id, other)
}

func (id ID) Less(other ID) bool {
	return Compare(id, other) < 0
}

func (id ID) IsZero() bool {
	return id.Ms == 0 && id.Seq == 0
}

// Next returns the smallest ID greater than id. The second result is false
// when id is Max.
func (id ID) Next() (ID, bool) {
	switch {
	case id.Seq < math.MaxUint64:
		return ID{Ms: id.Ms, Seq: id.Seq + 1}, true
	case id.Ms < math.MaxUint64:
		return ID{Ms: id.Ms + 1}, true
	}
	return id, false
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
