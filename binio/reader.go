// Package binio reads the fixed-width and length-prefixed primitives shared by the game's save formats.
package binio

import (
	"encoding/binary"
	"errors"
	"math"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
)

var ErrUnexpectedEOF = errors.New("binio: unexpected end of input")
var ErrInvalidEncoding = errors.New("binio: string is not valid utf-8")
var ErrInvalidLength = errors.New("binio: invalid length prefix")
var ErrUnsupportedMagicNumber = errors.New("binio: unsupported magic number")
var ErrUnsupportedVersion = errors.New("binio: unsupported version")

// Reader is a cursor over an in-memory save payload. All multi-byte values are big-endian unless the method name
// says otherwise. The reader is not safe for concurrent access.
type Reader struct {
	buf []byte
	off int
}

func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Next consumes exactly n bytes. The returned slice aliases the input and must not be modified. On failure the
// cursor does not move.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 {
		return nil, pkgerrors.Wrapf(ErrInvalidLength, "read of %d bytes at offset %d", n, r.off)
	}
	if n > r.Remaining() {
		return nil, pkgerrors.Wrapf(ErrUnexpectedEOF, "need %d bytes at offset %d, have %d", n, r.off, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadUint32LE reads a little-endian uint32. Only the pixel scene color keys are stored this way.
func (r *Reader) ReadUint32LE() (uint32, error) {
	b, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadFloat64 reads the raw bits of a big-endian IEEE 754 double.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadBool reads one byte; any nonzero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.Next(1)
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// ReadString reads an int32 byte length followed by that many bytes of UTF-8.
func (r *Reader) ReadString() (string, error) {
	start := r.off
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	return r.readStringBody(start, int64(n))
}

// ReadUint32String reads a uint32 byte length followed by that many bytes of UTF-8.
func (r *Reader) ReadUint32String() (string, error) {
	start := r.off
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	return r.readStringBody(start, int64(n))
}

func (r *Reader) readStringBody(start int, n int64) (string, error) {
	if n < 0 || n > math.MaxInt32 {
		r.off = start
		return "", pkgerrors.Wrapf(ErrInvalidLength, "string length %d at offset %d", n, start)
	}
	b, err := r.Next(int(n))
	if err != nil {
		r.off = start
		return "", err
	}
	if !utf8.Valid(b) {
		r.off = start
		return "", pkgerrors.Wrapf(ErrInvalidEncoding, "string of %d bytes at offset %d", n, start)
	}
	return string(b), nil
}

// ReadCount reads an int32 element count. Negative counts are rejected.
func (r *Reader) ReadCount() (int, error) {
	start := r.off
	n, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		r.off = start
		return 0, pkgerrors.Wrapf(ErrInvalidLength, "count %d at offset %d", n, start)
	}
	return int(n), nil
}

// ReadUint32Count reads a uint32 element count. Counts that do not fit an int32 are rejected.
func (r *Reader) ReadUint32Count() (int, error) {
	start := r.off
	n, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		r.off = start
		return 0, pkgerrors.Wrapf(ErrInvalidLength, "count %d at offset %d", n, start)
	}
	return int(n), nil
}

// Capacity bounds a slice preallocation for count records of at least minSize bytes each by what the remaining
// input could hold. Decoders still read exactly count records.
func (r *Reader) Capacity(count, minSize int) int {
	if count <= 0 {
		return 0
	}
	if minSize <= 0 {
		return count
	}
	if limit := r.Remaining() / minSize; count > limit {
		return limit
	}
	return count
}
