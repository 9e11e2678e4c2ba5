package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/moontrade/streams/streamid"
	"github.com/tidwall/redcon"
)

// ErrSyntax is returned where there was a syntax error
var ErrSyntax = errors.New("syntax error")

// ErrWrongNumArgs is returned when the arg count is wrong
var ErrWrongNumArgs = errors.New("wrong number of arguments")

// ErrUnauthorized is returned when a client connection has not been authorized
var ErrUnauthorized = errors.New("NOAUTH Authentication required.")

// ErrUnknownCommand is returned when a command is not known
var ErrUnknownCommand = errors.New("unknown command")

// ErrInvalidID is returned when a stream ID argument cannot be parsed
var ErrInvalidID = errors.New("Invalid stream ID specified as stream command argument")

var errNotInteger = errors.New("value is not an integer or out of range")

type command func(s *Server, args []string) (interface{}, error)

var commands = map[string]command{
	"ping":      cmdPING,
	"echo":      cmdECHO,
	"xadd":      cmdXADD,
	"xread":     cmdXREAD,
	"xrange":    cmdXRANGE,
	"xrevrange": cmdXREVRANGE,
	"xlen":      cmdXLEN,
	"del":       cmdDEL,
	"keys":      cmdKEYS,
	"flushall":  cmdFLUSHALL,
}

// PING [message]
func cmdPING(s *Server, args []string) (interface{}, error) {
	switch len(args) {
	case 1:
		return redcon.SimpleString("PONG"), nil
	case 2:
		return args[1], nil
	}
	return nil, ErrWrongNumArgs
}

// ECHO message
func cmdECHO(s *Server, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, ErrWrongNumArgs
	}
	return args[1], nil
}

// XADD key [MAXLEN [~|=] n] *|id field value [field value ...]
// help: appends an entry and returns its ID; string
func cmdXADD(s *Server, args []string) (interface{}, error) {
	if len(args) < 5 {
		return nil, ErrWrongNumArgs
	}
	key := args[1]
	i := 2
	maxLen := -1
	if strings.EqualFold(args[i], "maxlen") {
		i++
		if i < len(args) && (args[i] == "~" || args[i] == "=") {
			i++
		}
		if i >= len(args) {
			return nil, ErrSyntax
		}
		n, err := strconv.Atoi(args[i])
		if err != nil || n < 0 {
			return nil, errNotInteger
		}
		maxLen = n
		i++
	}
	if i >= len(args) {
		return nil, ErrSyntax
	}
	var id *streamid.ID
	if args[i] != "*" {
		v, err := streamid.ParseIncomplete(args[i])
		if err != nil {
			return nil, ErrInvalidID
		}
		id = &v
	}
	fields := args[i+1:]
	if len(fields) == 0 || len(fields)%2 != 0 {
		return nil, ErrWrongNumArgs
	}
	added, err := s.db.add(key, id, append([]string(nil), fields...), maxLen)
	if err != nil {
		return nil, err
	}
	return added.String(), nil
}

// XREAD [COUNT n] [BLOCK ms] STREAMS key [key ...] id [id ...]
// help: reads entries after the given IDs; "$" is the current tail. With
//       BLOCK the call waits for an append, forever when ms is 0. Returns nil
//       when nothing arrived.
func cmdXREAD(s *Server, args []string) (interface{}, error) {
	var (
		count   int
		block   = time.Duration(-1)
		streams = -1
	)
	for i := 1; i < len(args) && streams == -1; i++ {
		switch strings.ToLower(args[i]) {
		case "count":
			i++
			if i == len(args) {
				return nil, ErrSyntax
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return nil, errNotInteger
			}
			count = n
		case "block":
			i++
			if i == len(args) {
				return nil, ErrSyntax
			}
			ms, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil || ms < 0 {
				return nil, errors.New("timeout is not an integer or out of range")
			}
			block = time.Duration(ms) * time.Millisecond
		case "streams":
			streams = i + 1
		default:
			return nil, ErrSyntax
		}
	}
	if streams == -1 {
		return nil, ErrSyntax
	}
	rest := args[streams:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return nil, errors.New("Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	keys := rest[:len(rest)/2]
	ids := make([]streamid.ID, len(keys))
	for i, raw := range rest[len(rest)/2:] {
		if raw == "$" {
			ids[i] = s.db.tail(keys[i])
			continue
		}
		id, err := streamid.ParseIncomplete(raw)
		if err != nil {
			return nil, ErrInvalidID
		}
		ids[i] = id
	}

	var timer <-chan time.Time
	if block > 0 {
		t := time.NewTimer(block)
		defer t.Stop()
		timer = t.C
	}
	for {
		res, notify := s.db.read(keys, ids, count)
		if len(res) > 0 {
			return res, nil
		}
		if block < 0 {
			return nil, nil
		}
		select {
		case <-notify:
		case <-timer:
			return nil, nil
		case <-s.done:
			return nil, nil
		}
	}
}

type rangeQuery struct {
	start, end streamid.ID
	count      int
}

// parseRange reads "key start end [COUNT n]", with start and end swapped
// for reverse ranges. An incomplete end ID covers its whole millisecond.
func parseRange(args []string, reverse bool) (rangeQuery, error) {
	var q rangeQuery
	if len(args) != 4 && len(args) != 6 {
		return q, ErrWrongNumArgs
	}
	first, second := args[2], args[3]
	if reverse {
		first, second = second, first
	}
	var err error
	if q.start, err = parseRangeID(first); err != nil {
		return q, err
	}
	if q.end, err = parseRangeID(second); err != nil {
		return q, err
	}
	if second != "+" && second != "-" && strings.IndexByte(second, '-') == -1 {
		q.end.Seq = streamid.Max.Seq
	}
	if len(args) == 6 {
		if !strings.EqualFold(args[4], "count") {
			return q, ErrSyntax
		}
		if q.count, err = strconv.Atoi(args[5]); err != nil {
			return q, errNotInteger
		}
	}
	return q, nil
}

func parseRangeID(raw string) (streamid.ID, error) {
	switch raw {
	case "-":
		return streamid.Min, nil
	case "+":
		return streamid.Max, nil
	}
	id, err := streamid.ParseIncomplete(raw)
	if err != nil {
		return streamid.ID{}, ErrInvalidID
	}
	return id, nil
}

// XRANGE key start end [COUNT n]
func cmdXRANGE(s *Server, args []string) (interface{}, error) {
	q, err := parseRange(args, false)
	if err != nil {
		return nil, err
	}
	return s.db.span(args[1], q.start, q.end, q.count, false), nil
}

// XREVRANGE key end start [COUNT n]
func cmdXREVRANGE(s *Server, args []string) (interface{}, error) {
	q, err := parseRange(args, true)
	if err != nil {
		return nil, err
	}
	return s.db.span(args[1], q.start, q.end, q.count, true), nil
}

// XLEN key
func cmdXLEN(s *Server, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, ErrWrongNumArgs
	}
	return s.db.length(args[1]), nil
}

// DEL key [key ...]
func cmdDEL(s *Server, args []string) (interface{}, error) {
	if len(args) < 2 {
		return nil, ErrWrongNumArgs
	}
	return s.db.del(args[1:]), nil
}

// KEYS pattern
func cmdKEYS(s *Server, args []string) (interface{}, error) {
	if len(args) != 2 {
		return nil, ErrWrongNumArgs
	}
	return s.db.keys(args[1]), nil
}

// FLUSHALL
func cmdFLUSHALL(s *Server, args []string) (interface{}, error) {
	if len(args) != 1 {
		return nil, ErrWrongNumArgs
	}
	s.db.flush()
	return redcon.SimpleString("OK"), nil
}

func errUnknownCommand(name string) error {
	return fmt.Errorf("%s '%s'", ErrUnknownCommand, name)
}
