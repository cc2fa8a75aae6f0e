package socket

import (
	"encoding/binary"
	"io"

	liberr "github.com/mythologiq/gg-core/errors"
	"github.com/mythologiq/gg-core/wire"
)

// ReadFrame reads one length-prefixed frame from r: a little-endian u32
// byte count followed by that many payload bytes. A declared length over
// wire.MaxFrameSize is rejected without reading the payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > wire.MaxFrameSize {
		return nil, liberr.New(liberr.MinPkgTransport+4, liberr.KindInvalidInput, "frame exceeds maximum size")
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteFrame writes payload to w as a length-prefixed frame, rejecting a
// payload over wire.MaxFrameSize before writing anything.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > wire.MaxFrameSize {
		return liberr.New(liberr.MinPkgTransport+5, liberr.KindInvalidInput, "frame exceeds maximum size")
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
