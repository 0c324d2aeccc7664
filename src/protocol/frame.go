package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/RAIL-Suite/RAIL-sub001/src/json"
)

// DefaultMaxFrameSize bounds a single frame payload.
const DefaultMaxFrameSize = 1 << 20

const headerSize = 4

// WriteFrame writes payload prefixed with its 4-byte little-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return Errorf(KindProtocolParseError, "refusing to write empty frame")
	}
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return Errorf(KindProtocolParseError, "frame of %d bytes exceeds length prefix", len(payload))
	}
	buf := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame. The length is checked against
// maxSize before any payload buffer is allocated. io.EOF is returned untouched
// when the peer closes cleanly between frames.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, Wrap(KindProtocolParseError, err, "truncated length prefix")
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint32(header[:])
	if n == 0 {
		return nil, Errorf(KindProtocolParseError, "zero-length frame")
	}
	if uint64(n) > uint64(maxSize) {
		return nil, Errorf(KindProtocolParseError, "frame of %d bytes exceeds limit of %d", n, maxSize)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, Wrap(KindProtocolParseError, err, "truncated frame body (want %d bytes)", n)
	}
	return payload, nil
}

// WriteMessage encodes v as JSON and writes it as one frame.
func WriteMessage(w io.Writer, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return WriteFrame(w, payload)
}

// ReadMessage reads one frame and decodes it into v.
func ReadMessage(r io.Reader, maxSize int, v any) error {
	payload, err := ReadFrame(r, maxSize)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return Wrap(KindProtocolParseError, err, "malformed JSON payload")
	}
	return nil
}
