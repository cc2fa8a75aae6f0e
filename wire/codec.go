package wire

import (
	"encoding/json"

	liberr "github.com/mythologiq/gg-core/errors"
)

// MaxFrameSize is the hard cap enforced on both encode and decode. It
// matches the framed transport's own frame-length ceiling so a message
// accepted by the codec always fits a single frame.
const MaxFrameSize = 16 * 1024 * 1024

// Encode marshals v into an Envelope of the given type and version. A
// result that would exceed MaxFrameSize is discarded in favor of an
// Envelope carrying an ErrorPayload with code 413, so callers never hand an
// oversize frame to the transport.
func Encode(version Version, typ Type, v interface{}) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, liberr.New(liberr.MinPkgWire+1, liberr.KindInternal, "failed to marshal payload", err)
	}

	env := Envelope{Version: version, Type: typ, Payload: payload}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, liberr.New(liberr.MinPkgWire+2, liberr.KindInternal, "failed to marshal envelope", err)
	}

	if len(out) > MaxFrameSize {
		return encodeOversizeError(version)
	}
	return out, nil
}

func encodeOversizeError(version Version) ([]byte, error) {
	payload, err := json.Marshal(ErrorPayload{Code: 413, Message: "response exceeds maximum frame size"})
	if err != nil {
		return nil, liberr.New(liberr.MinPkgWire+3, liberr.KindInternal, "failed to marshal oversize error", err)
	}
	out, err := json.Marshal(Envelope{Version: version, Type: TypeError, Payload: payload})
	if err != nil {
		return nil, liberr.New(liberr.MinPkgWire+4, liberr.KindInternal, "failed to marshal oversize envelope", err)
	}
	return out, nil
}

// Decode unmarshals a frame into its Envelope and checks its protocol
// version, leaving the payload raw for DecodePayload. A frame larger than
// MaxFrameSize is rejected outright rather than parsed.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope

	if len(frame) > MaxFrameSize {
		return env, liberr.New(liberr.MinPkgWire+5, liberr.KindInvalidInput, "frame exceeds maximum size")
	}

	if err := json.Unmarshal(frame, &env); err != nil {
		return env, liberr.New(liberr.MinPkgWire+6, liberr.KindInvalidInput, "malformed envelope", err)
	}

	if env.Version != V1 && env.Version != V2 {
		return env, liberr.New(liberr.MinPkgWire+7, liberr.KindInvalidInput, "unsupported protocol version")
	}

	return env, nil
}

// DecodePayload unmarshals env's payload into dst, a pointer to one of the
// concrete payload types matching env.Type.
func DecodePayload(env Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return liberr.New(liberr.MinPkgWire+8, liberr.KindInvalidInput, "malformed payload", err)
	}
	return nil
}
