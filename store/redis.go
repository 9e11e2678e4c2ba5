package store

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/moontrade/streams/streamid"
)

// ErrProtocol is returned when the server sends a reply of an unexpected
// shape.
var ErrProtocol = errors.New("unexpected reply")

// Options for connecting to a Redis-protocol stream server.
type Options struct {
	Auth           string        // default ""
	TLS            *tls.Config   // default nil (plain tcp)
	ConnectTimeout time.Duration // default 5s
	ReadTimeout    time.Duration // default 5s, added on top of any BLOCK
	MaxIdle        int           // default 4
	IdleTimeout    time.Duration // default 4m
}

func (opts *Options) def() {
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.MaxIdle == 0 {
		opts.MaxIdle = 4
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 4 * time.Minute
	}
}

// Dial connects to addr and authenticates with opts.Auth when it is set.
func Dial(addr string, opts Options) (redis.Conn, error) {
	opts.def()
	dialOpts := []redis.DialOption{
		redis.DialConnectTimeout(opts.ConnectTimeout),
		redis.DialReadTimeout(opts.ReadTimeout),
	}
	if opts.TLS != nil {
		dialOpts = append(dialOpts, redis.DialUseTLS(true), redis.DialTLSConfig(opts.TLS))
	}
	conn, err := redis.Dial("tcp", addr, dialOpts...)
	if err != nil {
		return nil, err
	}
	if opts.Auth != "" {
		res, err := redis.String(conn.Do("auth", opts.Auth))
		if err != nil {
			conn.Close()
			return nil, err
		}
		if res != "OK" {
			conn.Close()
			return nil, fmt.Errorf("'OK', got '%s'", res)
		}
	}
	return conn, nil
}

// NewPool returns a connection pool that dials addr on demand. A broken
// connection is discarded and the next call dials again.
func NewPool(addr string, opts Options) *redis.Pool {
	opts.def()
	return &redis.Pool{
		MaxIdle:     opts.MaxIdle,
		IdleTimeout: opts.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			return Dial(addr, opts)
		},
	}
}

// Redis is a Client for servers speaking the Redis streams commands.
type Redis struct {
	pool        *redis.Pool
	readTimeout time.Duration
}

// Open returns a Redis client for addr.
func Open(addr string, opts Options) *Redis {
	opts.def()
	return NewRedis(NewPool(addr, opts), opts.ReadTimeout)
}

// NewRedis returns a client using pool. readTimeout bounds every reply wait
// beyond the requested BLOCK time.
func NewRedis(pool *redis.Pool, readTimeout time.Duration) *Redis {
	if readTimeout <= 0 {
		readTimeout = 5 * time.Second
	}
	return &Redis{pool: pool, readTimeout: readTimeout}
}

func (r *Redis) Close() error {
	return r.pool.Close()
}

func (r *Redis) do(op string, timeout time.Duration, cmd string, args ...interface{}) (interface{}, error) {
	conn := r.pool.Get()
	defer conn.Close()
	reply, err := redis.DoWithTimeout(conn, timeout, cmd, args...)
	if err != nil {
		var rerr redis.Error
		if errors.As(err, &rerr) {
			return nil, fmt.Errorf("store: %s: %w", op, err)
		}
		return nil, &ConnectionError{Op: op, Err: err}
	}
	return reply, nil
}

// Read issues a single XREAD over every stream in positions.
func (r *Redis) Read(positions map[string]Position, count int, block time.Duration) (map[string][]Entry, error) {
	if len(positions) == 0 {
		return nil, ErrNoData
	}
	names := make([]string, 0, len(positions))
	for name := range positions {
		names = append(names, name)
	}
	sort.Strings(names)

	args := redis.Args{}
	if count > 0 {
		args = args.Add("COUNT", count)
	}
	timeout := r.readTimeout
	if ms, ok := BlockMillis(block); ok {
		args = args.Add("BLOCK", ms)
		if block == Forever {
			timeout = 0
		} else {
			timeout += time.Duration(ms) * time.Millisecond
		}
	}
	args = args.Add("STREAMS").AddFlat(names)
	for _, name := range names {
		args = args.Add(positions[name].String())
	}

	reply, err := r.do("xread", timeout, "XREAD", args...)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, ErrNoData
	}
	return parseRead(reply)
}

// Tail returns the last ID of stream using XREVRANGE.
func (r *Redis) Tail(stream string) (streamid.ID, error) {
	reply, err := r.do("xrevrange", r.readTimeout, "XREVRANGE", stream, "+", "-", "COUNT", 1)
	if err != nil {
		return streamid.ID{}, err
	}
	entries, err := parseEntries(stream, reply)
	if err != nil {
		return streamid.ID{}, err
	}
	if len(entries) == 0 {
		return streamid.Min, nil
	}
	return entries[0].ID, nil
}

// Append adds an entry with an auto-generated ID to stream. fields is a
// flat list of name, value pairs.
func (r *Redis) Append(stream string, fields ...string) (streamid.ID, error) {
	if len(fields) == 0 || len(fields)%2 != 0 {
		return streamid.ID{}, errors.New("store: append: fields must be name value pairs")
	}
	reply, err := r.do("xadd", r.readTimeout, "XADD", redis.Args{stream, "*"}.AddFlat(fields)...)
	if err != nil {
		return streamid.ID{}, err
	}
	raw, err := redis.String(reply, nil)
	if err != nil {
		return streamid.ID{}, fmt.Errorf("%w: xadd: %v", ErrProtocol, err)
	}
	return streamid.Parse(raw)
}

// Keys returns the names of keys matching a glob pattern.
func (r *Redis) Keys(pattern string) ([]string, error) {
	reply, err := r.do("keys", r.readTimeout, "KEYS", pattern)
	if err != nil {
		return nil, err
	}
	keys, err := redis.Strings(reply, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: keys: %v", ErrProtocol, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes streams and returns how many existed.
func (r *Redis) Delete(streams ...string) (int, error) {
	if len(streams) == 0 {
		return 0, nil
	}
	reply, err := r.do("del", r.readTimeout, "DEL", redis.Args{}.AddFlat(streams)...)
	if err != nil {
		return 0, err
	}
	return redis.Int(reply, nil)
}

func parseRead(reply interface{}) (map[string][]Entry, error) {
	streams, err := redis.Values(reply, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: xread: %v", ErrProtocol, err)
	}
	out := make(map[string][]Entry, len(streams))
	for _, s := range streams {
		pair, err := redis.Values(s, nil)
		if err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("%w: xread: stream reply", ErrProtocol)
		}
		name, err := redis.String(pair[0], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: xread: stream name: %v", ErrProtocol, err)
		}
		entries, err := parseEntries(name, pair[1])
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			out[name] = entries
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func parseEntries(stream string, reply interface{}) ([]Entry, error) {
	items, err := redis.Values(reply, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: entries of %s: %v", ErrProtocol, stream, err)
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		parts, err := redis.Values(item, nil)
		if err != nil || len(parts) != 2 {
			return nil, fmt.Errorf("%w: entry of %s", ErrProtocol, stream)
		}
		raw, err := redis.String(parts[0], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: entry id of %s: %v", ErrProtocol, stream, err)
		}
		id, err := streamid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("store: %s: %w", stream, err)
		}
		fields := map[string]string{}
		if parts[1] != nil {
			fields, err = redis.StringMap(parts[1], nil)
			if err != nil {
				return nil, fmt.Errorf("%w: fields of %s %s: %v", ErrProtocol, stream, raw, err)
			}
		}
		entries = append(entries, Entry{Stream: stream, ID: id, Fields: fields})
	}
	return entries, nil
}
