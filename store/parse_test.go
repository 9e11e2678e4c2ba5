package store

import (
	"errors"
	"testing"

	"github.com/moontrade/streams/streamid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryReply(id string, fields ...string) interface{} {
	var kv interface{}
	if fields != nil {
		values := make([]interface{}, len(fields))
		for i, f := range fields {
			values[i] = []byte(f)
		}
		kv = values
	}
	return []interface{}{[]byte(id), kv}
}

func streamReply(name string, entries ...interface{}) interface{} {
	return []interface{}{[]byte(name), entries}
}

func TestParseRead(t *testing.T) {
	reply := []interface{}{
		streamReply("a", entryReply("1-0", "k", "v"), entryReply("2-0")),
		streamReply("b"),
	}
	batches, err := parseRead(reply)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches["a"], 2)
	assert.Equal(t, Entry{Stream: "a", ID: streamid.New(1, 0), Fields: map[string]string{"k": "v"}}, batches["a"][0])
	assert.Equal(t, map[string]string{}, batches["a"][1].Fields)

	_, err = parseRead([]interface{}{streamReply("b")})
	assert.ErrorIs(t, err, ErrNoData)
}

func TestParseMalformedID(t *testing.T) {
	for _, bad := range []string{"1526919030474", "abc-1", "1-2-3", ""} {
		reply := []interface{}{streamReply("a", entryReply("1-0", "k", "v"), entryReply(bad, "k", "v"))}
		_, err := parseRead(reply)
		require.Error(t, err, bad)
		assert.True(t, errors.Is(err, streamid.ErrMalformed), "%q: %v", bad, err)
		assert.False(t, IsConnectionFailure(err))
	}

	_, err := parseEntries("a", []interface{}{entryReply("x-y")})
	assert.ErrorIs(t, err, streamid.ErrMalformed)
}

func TestParseProtocolErrors(t *testing.T) {
	_, err := parseRead([]byte("OK"))
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = parseRead([]interface{}{[]interface{}{[]byte("a")}})
	assert.ErrorIs(t, err, ErrProtocol)

	_, err = parseEntries("a", []interface{}{[]interface{}{[]byte("1-0"), []interface{}{[]byte("odd")}}})
	assert.ErrorIs(t, err, ErrProtocol)
}
