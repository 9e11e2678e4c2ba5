package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/moontrade/streams/streamid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosition(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Position
		wire string
	}{
		{"$", FromNow(), "$"},
		{"0", FromStart(), "0-0"},
		{"0-0", FromStart(), "0-0"},
		{"1526919030474", At(streamid.New(1526919030474, 0)), "1526919030474-0"},
		{"1526919030474-55", At(streamid.New(1526919030474, 55)), "1526919030474-55"},
	} {
		pos, err := ParsePosition(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, pos, tc.in)
		assert.Equal(t, tc.wire, pos.String(), tc.in)
	}
	for _, in := range []string{"", "-", "now", "1-", "-1", "1-2-3"} {
		_, err := ParsePosition(in)
		assert.ErrorIs(t, err, ErrInvalidPosition, in)
	}
}

func TestPositionAfter(t *testing.T) {
	at := At(streamid.New(5, 1))
	assert.False(t, at.After(streamid.New(5, 1)))
	assert.False(t, at.After(streamid.New(4, 9)))
	assert.True(t, at.After(streamid.New(5, 2)))

	assert.True(t, FromStart().After(streamid.New(0, 1)))
	assert.False(t, FromStart().After(streamid.Min))
	assert.True(t, FromNow().After(streamid.Min))

	id, ok := at.ID()
	assert.True(t, ok)
	assert.Equal(t, streamid.New(5, 1), id)
	id, ok = FromStart().ID()
	assert.True(t, ok)
	assert.Equal(t, streamid.Min, id)
	_, ok = FromNow().ID()
	assert.False(t, ok)
}

func TestBlockMillis(t *testing.T) {
	ms, ok := BlockMillis(NoBlock)
	assert.False(t, ok)
	assert.Zero(t, ms)

	ms, ok = BlockMillis(Forever)
	assert.True(t, ok)
	assert.Zero(t, ms)

	for _, tc := range []struct {
		in   time.Duration
		want int64
	}{
		{0, 1},
		{time.Microsecond, 1},
		{time.Millisecond, 1},
		{1500 * time.Microsecond, 2},
		{10 * time.Second, 10000},
	} {
		ms, ok := BlockMillis(tc.in)
		assert.True(t, ok)
		assert.Equal(t, tc.want, ms, tc.in.String())
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsConnectionFailure(t *testing.T) {
	assert.False(t, IsConnectionFailure(nil))
	assert.False(t, IsConnectionFailure(ErrNoData))
	assert.False(t, IsConnectionFailure(fmt.Errorf("store: x: %w", streamid.ErrMalformed)))
	assert.False(t, IsConnectionFailure(errors.New("ERR unknown command")))

	assert.True(t, IsConnectionFailure(&ConnectionError{Op: "xread", Err: errors.New("refused")}))
	assert.True(t, IsConnectionFailure(fmt.Errorf("seed: %w", &ConnectionError{Op: "xread", Err: io.EOF})))
	assert.True(t, IsConnectionFailure(io.EOF))
	assert.True(t, IsConnectionFailure(io.ErrUnexpectedEOF))
	assert.True(t, IsConnectionFailure(net.ErrClosed))
	assert.True(t, IsConnectionFailure(&net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}}))

	err := &ConnectionError{Op: "xread", Err: io.EOF}
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "store: xread: connection failure: EOF", err.Error())
}

func TestEntryJSON(t *testing.T) {
	e := Entry{
		Stream: "orders",
		ID:     streamid.New(1526919030474, 3),
		Fields: map[string]string{"side": "buy", "price": "10.5", "note": `say "hi"`},
	}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, `{"stream":"orders","id":"1526919030474-3","fields":{"note":"say \"hi\"","price":"10.5","side":"buy"}}`, string(data))

	var back Entry
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, e, back)

	v, ok := back.Field("side")
	assert.True(t, ok)
	assert.Equal(t, "buy", v)

	require.Error(t, json.Unmarshal([]byte(`{"stream":"a","id":"nope"}`), &back))
}
