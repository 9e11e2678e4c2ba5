package streamid

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	id, err := Parse("1526919030474-55")
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 1526919030474, Seq: 55}, id)
	assert.Equal(t, "1526919030474-55", id.String())

	for _, s := range []string{"", "-", "12", "12-", "-3", "a-1", "1-b", "1-2-3", "+1-2", "1--2", "18446744073709551616-0"} {
		_, err := Parse(s)
		assert.Truef(t, errors.Is(err, ErrMalformed), "expected ErrMalformed for %q, got %v", s, err)
	}
}

func TestParseIncomplete(t *testing.T) {
	id, err := ParseIncomplete("1526919030474")
	require.NoError(t, err)
	assert.Equal(t, ID{Ms: 1526919030474}, id)

	id, err = ParseIncomplete("0")
	require.NoError(t, err)
	assert.True(t, id.IsZero())

	id, err = ParseIncomplete("7-3")
	require.NoError(t, err)
	assert.Equal(t, New(7, 3), id)

	_, err = ParseIncomplete("now")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b ID
		want int
	}{
		{"equal", New(5, 5), New(5, 5), 0},
		{"ms wins over seq", New(4, 100), New(5, 0), -1},
		{"seq on tie", New(5, 2), New(5, 1), 1},
		{"numeric sequence", New(5, 9), New(5, 10), -1},
		// a raw string compare would order "999-0" after "1000-0"
		{"digit width change", New(999, 0), New(1000, 0), -1},
		{"min max", Min, Max, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, Compare(tt.b, tt.a))
			assert.Equal(t, tt.want < 0, tt.a.Less(tt.b))
		})
	}
}

func TestNext(t *testing.T) {
	n, ok := New(3, 4).Next()
	assert.True(t, ok)
	assert.Equal(t, New(3, 5), n)

	n, ok = New(3, math.MaxUint64).Next()
	assert.True(t, ok)
	assert.Equal(t, New(4, 0), n)

	_, ok = Max.Next()
	assert.False(t, ok)
}

func TestText(t *testing.T) {
	var id ID
	require.NoError(t, id.UnmarshalText([]byte("10-2")))
	b, err := id.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "10-2", string(b))
	assert.Error(t, id.UnmarshalText([]byte("10")))
}
