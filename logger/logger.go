package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	setCallerFormatter()

	zerolog.LevelFieldName = "severity"
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetConsoleWriter(os.Stderr)
}

func setCallerFormatter() {
	_, file, _, _ := runtime.Caller(0)
	prefix := path.Dir(path.Dir(file))
	if len(prefix) > 0 && prefix[len(prefix)-1] != os.PathSeparator {
		prefix += "/"
	}

	zerolog.CallerMarshalFunc = func(file string, line int) string {
		if index := strings.Index(file, prefix); prefix != "" && index > -1 {
			file = file[index+len(prefix):]
		}
		return fmt.Sprintf("%s:%d", file, line)
	}
}

// SetLevel sets the global level by name. Accepted names are trace, debug,
// info, warn, error and silent.
func SetLevel(name string) error {
	switch strings.ToLower(name) {
	case "trace", "verbose", "verb":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info", "notice", "":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "silent", "quiet":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		return fmt.Errorf("invalid log level: %s", name)
	}
	return nil
}

// doLog treats args as alternating key, value pairs. A trailing unpaired
// string becomes the message and a leading error is attached as the error
// field.
func doLog(skip int, event *zerolog.Event, args []interface{}) {
	if event == nil {
		// level disabled
		return
	}
	event.Timestamp()
	event.Caller(skip)

	if len(args) > 0 {
		if err, ok := args[0].(error); ok {
			event.Err(err)
			args = args[1:]
		}
	}

	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 == len(args) {
			event.Msg(key)
			return
		}
		appendField(event, key, args[i+1])
	}

	event.Msg("")
}

func appendField(event *zerolog.Event, key string, value interface{}) {
	switch v := value.(type) {
	case string:
		event.Str(key, v)
	case time.Time:
		event.Time(key, v)
	case int:
		event.Int(key, v)
	case int64:
		event.Int64(key, v)
	case uint64:
		event.Uint64(key, v)
	case bool:
		event.Bool(key, v)
	case error:
		event.AnErr(key, v)
	case []error:
		event.Errs(key, v)
	case []string:
		event.Strs(key, v)
	case time.Duration:
		event.Str(key, v.String())
	case fmt.Stringer:
		event.Str(key, v.String())
	case json.Marshaler:
		bytes, err := v.MarshalJSON()
		if err != nil {
			event.AnErr(key, err)
		} else {
			event.RawJSON(key, bytes)
		}
	default:
		event.Interface(key, v)
	}
}

// Trace logs a message at level Trace on the standard logger.
func Trace(args ...interface{}) {
	doLog(2, log.Trace(), args)
}

// Debug logs a message at level Debug on the standard logger.
func Debug(args ...interface{}) {
	doLog(2, log.Debug(), args)
}

func DebugEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.DebugLevel
}

// Info logs a message at level Info on the standard logger.
func Info(args ...interface{}) {
	doLog(2, log.Info(), args)
}

// Warn logs a message at level Warn on the standard logger.
func Warn(args ...interface{}) {
	doLog(2, log.Warn(), args)
}

// WarnErr logs a message with an error at level Warn on the standard logger.
func WarnErr(err error, args ...interface{}) {
	doLog(2, log.Warn().Err(err), args)
}

// Error logs a message at level Error on the standard logger.
func Error(err error, args ...interface{}) {
	doLog(2, log.Error().Err(err), args)
}

// Fatal logs a message at level Fatal on the standard logger then the process will exit with status set to 1.
func Fatal(err error, args ...interface{}) {
	doLog(2, log.Fatal().Err(err), args)
}
