package main

import (
	"fmt"
	"net"
	"time"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/session"
	"github.com/mythologiq/gg-core/socket"
	"github.com/mythologiq/gg-core/wire"
)

// dialTimeout bounds every client-side subcommand's connection attempt; a
// daemon that is not listening should fail fast rather than hang a script.
const dialTimeout = 3 * time.Second

// client is a thin hand-rolled socket client: every client-facing
// subcommand dials the same Unix domain socket and speaks the same framed
// codec the server does, per the CLI surface's "also a client of component
// A/C" requirement.
type client struct {
	conn net.Conn
	sess session.Token
}

// dial connects to socketPath and completes the handshake with token,
// returning a client ready to exchange further frames.
func dial(socketPath, token string) (*client, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, liberr.New(liberr.MinPkgCLI+1, liberr.KindInternal, "failed to connect to socket", err)
	}

	c := &client{conn: conn}
	ack, err := c.roundTrip(wire.TypeHandshake, wire.Handshake{Token: token, RequestedVersion: wire.V1})
	if err != nil {
		conn.Close()
		return nil, err
	}
	var hsAck wire.HandshakeAck
	if err := wire.DecodePayload(ack, &hsAck); err != nil {
		conn.Close()
		return nil, err
	}
	c.sess = session.Token(hsAck.SessionToken)
	return c, nil
}

func (c *client) Close() error { return c.conn.Close() }

// roundTrip sends one request envelope and reads back exactly one response
// envelope, surfacing a TypeError payload as a Go error.
func (c *client) roundTrip(typ wire.Type, payload interface{}) (wire.Envelope, error) {
	frame, err := wire.Encode(wire.V1, typ, payload)
	if err != nil {
		return wire.Envelope{}, err
	}
	if err := socket.WriteFrame(c.conn, frame); err != nil {
		return wire.Envelope{}, liberr.New(liberr.MinPkgCLI+2, liberr.KindInternal, "failed to write frame", err)
	}

	return c.readEnvelope()
}

// readEnvelope reads one response envelope off the connection, surfacing a
// TypeError payload as a Go error. Streaming responses call it repeatedly
// after the initial roundTrip.
func (c *client) readEnvelope() (wire.Envelope, error) {
	respFrame, err := socket.ReadFrame(c.conn)
	if err != nil {
		return wire.Envelope{}, liberr.New(liberr.MinPkgCLI+3, liberr.KindInternal, "failed to read frame", err)
	}
	env, err := wire.Decode(respFrame)
	if err != nil {
		return wire.Envelope{}, err
	}
	if env.Type == wire.TypeError {
		var e wire.ErrorPayload
		if derr := wire.DecodePayload(env, &e); derr != nil {
			return wire.Envelope{}, derr
		}
		return wire.Envelope{}, fmt.Errorf("server error %d: %s", e.Code, e.Message)
	}
	return env, nil
}
