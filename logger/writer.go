package logger

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

type lineWriter struct {
	level  zerolog.Level
	source string
}

// Writer returns an io.Writer that logs every written line at level. It is
// meant for libraries that only accept a *log.Logger or an io.Writer. Lines of
// the form "msg: k=v k2=\"v 2\"" are split into a message and fields.
func Writer(level zerolog.Level, source string) io.Writer {
	return &lineWriter{level: level, source: source}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args := parseLine(line)
		if w.source != "" {
			args = append([]interface{}{"source", w.source}, args...)
		}
		doLog(3, log.WithLevel(w.level), args)
	}
	return len(p), nil
}

// parseLine returns key, value pairs followed by the message.
func parseLine(line string) []interface{} {
	idx := strings.IndexByte(line, ':')
	if idx == -1 || !strings.Contains(line[idx+1:], "=") {
		return []interface{}{line}
	}
	msg := strings.TrimSpace(line[:idx])
	fields := strings.TrimSpace(line[idx+1:])
	var args []interface{}
	for len(fields) > 0 {
		idx = strings.IndexByte(fields, '=')
		if idx == -1 {
			args = append(args, fields, "")
			break
		}
		name := strings.TrimSpace(fields[:idx])
		fields = strings.TrimSpace(fields[idx+1:])
		if len(fields) == 0 {
			args = append(args, name, "")
			break
		}
		var value string
		if fields[0] == '"' {
			fields = fields[1:]
			idx = strings.IndexByte(fields, '"')
			if idx == -1 {
				value, fields = fields, ""
			} else {
				value, fields = fields[:idx], strings.TrimSpace(fields[idx+1:])
			}
		} else {
			idx = strings.IndexByte(fields, ' ')
			if idx == -1 {
				value, fields = fields, ""
			} else {
				value, fields = fields[:idx], strings.TrimSpace(fields[idx+1:])
			}
		}
		args = append(args, name, value)
	}
	return append(args, msg)
}
