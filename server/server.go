// Package server is an in-memory stream store that speaks the Redis
// protocol. It implements the subset of the streams commands needed to
// produce and consume entries (XADD, XREAD, XRANGE, XREVRANGE, XLEN, DEL,
// KEYS) and is meant for tests and local development. Nothing is persisted.
package server

import (
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/moontrade/streams/logger"
	"github.com/tidwall/redcon"
)

// Config is the configuration of a Server.
type Config struct {
	Addr string // default "127.0.0.1:6379"
	Auth string // default "" (no AUTH required)
}

func (conf *Config) def() {
	if conf.Addr == "" {
		conf.Addr = "127.0.0.1:6379"
	}
}

// Server serves a set of in-memory streams.
type Server struct {
	conf Config
	db   *db

	mu     sync.Mutex
	ln     net.Listener
	conns  map[redcon.Conn]struct{}
	done   chan struct{}
	closed bool
}

func New(conf Config) *Server {
	conf.def()
	return &Server{
		conf:  conf,
		db:    newDB(),
		conns: make(map[redcon.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

type client struct {
	authorized bool
}

// Addr returns the bound address once the server is listening, otherwise
// the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.conf.Addr
}

// Listen binds the configured address and serves it in the background.
// Use "127.0.0.1:0" to pick a free port, then Addr to find it.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := s.Serve(ln); err != nil {
			logger.Error(err, "addr", ln.Addr().String(), "stream server stopped")
		}
	}()
	return nil
}

// ListenAndServe binds the configured address and serves it until Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server closed")
	}
	s.ln = ln
	s.mu.Unlock()
	logger.Info("addr", ln.Addr().String(), "stream server listening")

	err := redcon.Serve(ln, s.handle, s.opened, s.closedConn)
	select {
	case <-s.done:
		return nil
	default:
		return err
	}
}

// Close stops accepting connections, wakes blocked readers and closes every
// open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = nil
	return err
}

func (s *Server) opened(conn redcon.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	conn.SetContext(&client{authorized: s.conf.Auth == ""})
	logger.Debug("remote", conn.RemoteAddr(), "connection opened")
	return true
}

func (s *Server) closedConn(conn redcon.Conn, err error) {
	s.mu.Lock()
	if s.conns != nil {
		delete(s.conns, conn)
	}
	s.mu.Unlock()
	logger.Debug("remote", conn.RemoteAddr(), "connection closed")
}

func commandArgs(cmd redcon.Command) []string {
	args := make([]string, len(cmd.Args))
	args[0] = strings.ToLower(string(cmd.Args[0]))
	for i := 1; i < len(cmd.Args); i++ {
		args[i] = string(cmd.Args[i])
	}
	return args
}

func (s *Server) handle(conn redcon.Conn, cmd redcon.Command) {
	c, _ := conn.Context().(*client)
	if c == nil {
		c = &client{}
	}
	args := commandArgs(cmd)
	switch args[0] {
	case "quit":
		conn.WriteString("OK")
		conn.Close()
		return
	case "auth":
		if len(args) != 2 {
			conn.WriteAny(ErrWrongNumArgs)
		} else if s.conf.Auth != "" && args[1] != s.conf.Auth {
			c.authorized = false
			conn.WriteError("WRONGPASS invalid password")
		} else {
			c.authorized = true
			conn.WriteString("OK")
		}
		return
	}
	if !c.authorized {
		conn.WriteError(ErrUnauthorized.Error())
		return
	}
	fn, ok := commands[args[0]]
	if !ok {
		conn.WriteAny(errUnknownCommand(args[0]))
		return
	}
	res, err := fn(s, args)
	if err != nil {
		if logger.DebugEnabled() {
			logger.Debug(err, "command", args[0], "remote", conn.RemoteAddr(), "command failed")
		}
		conn.WriteAny(err)
		return
	}
	if res == nil {
		conn.WriteNull()
		return
	}
	conn.WriteAny(res)
}
