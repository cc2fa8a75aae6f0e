package socket

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	liberr "github.com/mythologiq/gg-core/errors"
)

const defaultMaxConnections = 256

// Server listens on a Unix domain socket, handing each accepted connection
// to the handler and capping how many can be live at once. Framing is left
// to the handler (see ReadFrame and WriteFrame).
type Server struct {
	cfg        Config
	handler    HandlerFunc
	updateConn func(net.Conn)
	pool       *pool
	onError    ErrorFunc
	onInfo     InfoFunc
	onServer   func(string)

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	running atomic.Bool
	gone    atomic.Bool
	wg      sync.WaitGroup
}

// New builds a Server bound to cfg. handler must not be nil; updateConn, if
// non-nil, is invoked on every accepted connection before the handler runs,
// for per-connection tuning (setting deadlines, wrapping in TLS, and so
// on).
func New(updateConn func(net.Conn), handler HandlerFunc, cfg Config) (*Server, error) {
	if handler == nil {
		return nil, ErrInvalidHandler
	}
	if cfg.SocketPath == "" {
		return nil, ErrInvalidConfig
	}
	if cfg.GroupID > MaxGID {
		return nil, ErrInvalidGroup
	}

	max := cfg.MaxConnections
	if max <= 0 {
		max = defaultMaxConnections
	}

	s := &Server{
		cfg:        cfg,
		handler:    handler,
		updateConn: updateConn,
		pool:       newPool(max),
		conns:      make(map[net.Conn]struct{}),
	}
	s.gone.Store(true)
	return s, nil
}

// RegisterFuncError sets the callback invoked for non-fatal transport
// errors (see ErrorFunc for which ones are reported).
func (s *Server) RegisterFuncError(fn ErrorFunc) { s.onError = fn }

// RegisterFuncInfo sets the callback invoked on every connection-state
// transition.
func (s *Server) RegisterFuncInfo(fn InfoFunc) { s.onInfo = fn }

// RegisterFuncInfoServer sets the callback invoked with free-form
// server-lifecycle messages (listening, shutting down).
func (s *Server) RegisterFuncInfoServer(fn func(string)) { s.onServer = fn }

// IsRunning reports whether the accept loop is currently active.
func (s *Server) IsRunning() bool { return s.running.Load() }

// IsGone reports whether the server has fully wound down (or never
// started).
func (s *Server) IsGone() bool { return s.gone.Load() }

// OpenConnections reports the number of connections currently held by the
// pool.
func (s *Server) OpenConnections() int64 { return s.pool.count() }

// Listen binds the socket and runs the accept loop until ctx is cancelled
// or Close/Shutdown is called. It blocks for the server's lifetime.
func (s *Server) Listen(ctx context.Context) error {
	_ = os.Remove(s.cfg.SocketPath)

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return liberr.New(liberr.MinPkgTransport+6, liberr.KindInternal, "failed to bind socket", err)
	}

	if s.cfg.PermFile != 0 {
		_ = os.Chmod(s.cfg.SocketPath, os.FileMode(s.cfg.PermFile))
	}
	if s.cfg.GroupID >= 0 {
		_ = os.Chown(s.cfg.SocketPath, -1, s.cfg.GroupID)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.running.Store(true)
	s.gone.Store(false)
	s.info("listening on " + s.cfg.SocketPath)

	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-watchDone:
		}
	}()

	for {
		conn, acceptErr := ln.Accept()
		if acceptErr != nil {
			break
		}

		if !s.pool.tryAcquire() {
			_ = conn.Close()
			continue
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}

	s.wg.Wait()
	_ = os.Remove(s.cfg.SocketPath)
	s.running.Store(false)
	s.gone.Store(true)
	s.info("stopped listening on " + s.cfg.SocketPath)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer s.pool.release()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	if s.updateConn != nil {
		s.updateConn(conn)
	}

	s.emitState(conn, StateNew)
	s.emitState(conn, StateActive)
	defer s.emitState(conn, StateClosed)

	s.handler(conn)
}

func (s *Server) emitState(conn net.Conn, state ConnState) {
	if s.onInfo == nil {
		return
	}
	s.onInfo(conn.LocalAddr(), conn.RemoteAddr(), state)
}

func (s *Server) reportError(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

func (s *Server) info(msg string) {
	if s.onServer != nil {
		s.onServer(msg)
	}
}

// Close stops accepting new connections and forcibly closes every
// currently-open connection. It returns without waiting for the accept
// loop to exit.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.reportError(err)
		}
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish on their own; if ctx expires first, remaining
// connections are force-closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.reportError(err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return s.Close()
	}
}

// pool bounds concurrent connections with a non-blocking semaphore: a
// connection beyond capacity is refused rather than queued, matching the
// transport's drop-on-overload policy.
type pool struct {
	sem    *semaphore.Weighted
	active atomic.Int64
}

func newPool(max int) *pool {
	return &pool{sem: semaphore.NewWeighted(int64(max))}
}

func (p *pool) tryAcquire() bool {
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.active.Add(1)
	return true
}

func (p *pool) release() {
	p.sem.Release(1)
	p.active.Add(-1)
}

func (p *pool) count() int64 { return p.active.Load() }
