package attr

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrShortBuffer is returned when a read runs past the end of the blob.
	ErrShortBuffer = errors.New("attr: not enough data")
	// ErrInvalidString is returned for string payloads that are not valid UTF-8.
	ErrInvalidString = errors.New("attr: string is not valid utf-8")
)

// Reader reads primitive values from an attribute blob.
type Reader struct {
	data []byte
	pos  int
}

// NewReader creates a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("ReadByte: %w (pos=%d, len=%d)", ErrShortBuffer, r.pos, len(r.data))
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadVarint reads a base-128 unsigned varint.
func (r *Reader) ReadVarint() (uint64, error) {
	v, n := protowire.ConsumeVarint(r.data[r.pos:])
	if n < 0 {
		return 0, fmt.Errorf("ReadVarint at pos=%d: %w", r.pos, protowire.ParseError(n))
	}
	r.pos += n
	return v, nil
}

// ReadBytes reads n bytes. The result aliases the underlying blob.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("ReadBytes(%d): %w (pos=%d, len=%d)", n, ErrShortBuffer, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadString reads a varint length prefix followed by that many UTF-8 bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return "", fmt.Errorf("ReadString length: %w", err)
	}
	if n > uint64(r.Remaining()) {
		return "", fmt.Errorf("ReadString(%d): %w (pos=%d, len=%d)", n, ErrShortBuffer, r.pos, len(r.data))
	}
	b, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidString
	}
	return string(b), nil
}
