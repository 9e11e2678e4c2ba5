package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetJSONWriter(&buf)
	level := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		SetConsoleWriter(os.Stderr)
	})
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]interface{}{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestKeyValues(t *testing.T) {
	buf := capture(t)
	Info("stream", "S0", "count", 3, "block", 10*time.Millisecond, "ok", true, "reading")
	WarnErr(errors.New("refused"), "addr", "127.0.0.1:1", "store unreachable")

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "info", got[0]["severity"])
	assert.Equal(t, "reading", got[0]["message"])
	assert.Equal(t, "S0", got[0]["stream"])
	assert.Equal(t, float64(3), got[0]["count"])
	assert.Equal(t, "10ms", got[0]["block"])
	assert.Equal(t, true, got[0]["ok"])
	assert.Contains(t, got[0]["caller"], "logger_test.go")

	assert.Equal(t, "warn", got[1]["severity"])
	assert.Equal(t, "refused", got[1]["error"])
	assert.Equal(t, "store unreachable", got[1]["message"])
}

func TestLeadingError(t *testing.T) {
	buf := capture(t)
	require.NoError(t, SetLevel("debug"))
	Debug(errors.New("boom"), "command", "xread", "command failed")

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "boom", got[0]["error"])
	assert.Equal(t, "xread", got[0]["command"])
}

func TestSetLevel(t *testing.T) {
	buf := capture(t)

	require.NoError(t, SetLevel("warn"))
	assert.False(t, DebugEnabled())
	Info("dropped")
	Warn("kept")

	require.NoError(t, SetLevel("TRACE"))
	assert.True(t, DebugEnabled())
	Trace("traced")

	require.NoError(t, SetLevel("silent"))
	Error(errors.New("x"), "dropped too")

	assert.Error(t, SetLevel("loud"))

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "kept", got[0]["message"])
	assert.Equal(t, "traced", got[1]["message"])
}

func TestParseLine(t *testing.T) {
	assert.Equal(t, []interface{}{"plain message"}, parseLine("plain message"))
	assert.Equal(t, []interface{}{"http: no fields"}, parseLine("http: no fields"))
	assert.Equal(t,
		[]interface{}{"remote", "127.0.0.1:5000", "error", "read tcp: reset", "accept failed"},
		parseLine(`accept failed: remote=127.0.0.1:5000 error="read tcp: reset"`))
	assert.Equal(t, []interface{}{"a", "", "msg"}, parseLine("msg: a="))
}

func TestWriter(t *testing.T) {
	buf := capture(t)
	w := Writer(zerolog.WarnLevel, "metrics")
	n, err := w.Write([]byte("http: TLS handshake error from 1.2.3.4: EOF\n\nsecond line\n"))
	require.NoError(t, err)
	assert.Equal(t, 57, n)

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "warn", got[0]["severity"])
	assert.Equal(t, "metrics", got[0]["source"])
	assert.Equal(t, "http: TLS handshake error from 1.2.3.4: EOF", got[0]["message"])
	assert.Equal(t, "second line", got[1]["message"])
}
