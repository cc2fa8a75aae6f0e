// Package socket implements the framed local-IPC transport: a Unix domain
// socket listener that caps concurrent connections with a fixed-size pool,
// plus ReadFrame/WriteFrame for the length-prefixed frames.
package socket

import (
	"net"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
)

// Context is what a Handler is given for one accepted connection.
type Context interface {
	net.Conn
}

// HandlerFunc processes a single accepted connection. It owns the
// connection's lifecycle and must close it before returning.
type HandlerFunc func(Context)

// ConnState is reported to an InfoFunc as a connection moves through its
// lifecycle.
type ConnState int

const (
	StateNew ConnState = iota
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrorFunc receives transport-level errors that do not abort the server
// itself. Server reports only failures to close the listener in Close or
// Shutdown; accept errors and per-connection I/O errors are not reported.
type ErrorFunc func(errs ...error)

// InfoFunc receives a connection-state transition.
type InfoFunc func(local, remote net.Addr, state ConnState)

// Config tunes a Server.
type Config struct {
	// SocketPath is the filesystem path of the Unix domain socket. Any
	// stale file at this path is removed before binding.
	SocketPath string
	// PermFile is the file mode applied to the socket after binding.
	PermFile uint32
	// GroupID chowns the socket to this group after binding; -1 leaves it
	// unchanged.
	GroupID int
	// MaxConnections caps concurrent live connections. A connection beyond
	// this cap is accepted and immediately closed; the server keeps
	// accepting.
	MaxConnections int
	// IdleTimeout is not applied by Server: an accepted connection has no
	// read or write deadline unless updateConn or the handler sets one.
	IdleTimeout time.Duration
}

const (
	// MaxGID is the largest Config.GroupID that New will accept,
	// mirroring the 32-bit unsigned range chown(2) takes on Linux.
	MaxGID = 1<<32 - 1
)

var (
	// ErrInvalidHandler is returned by New when handler is nil.
	ErrInvalidHandler = liberr.New(liberr.MinPkgTransport+1, liberr.KindInvalidInput, "handler must not be nil")
	// ErrInvalidGroup is returned by New when cfg.GroupID exceeds MaxGID.
	ErrInvalidGroup = liberr.New(liberr.MinPkgTransport+2, liberr.KindInvalidInput, "group id out of range")
	// ErrInvalidConfig is returned by New when cfg.SocketPath is empty.
	ErrInvalidConfig = liberr.New(liberr.MinPkgTransport+3, liberr.KindInvalidInput, "socket path must not be empty")
)
