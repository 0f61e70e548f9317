package binio

import (
	"bytes"
	"math"
)

// Writer produces payloads in the layout Reader consumes. The game never needs it; it exists to build fixtures.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return append([]byte(nil), w.buf.Bytes()...)
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf.Write(b)
	return w
}

func (w *Writer) Uint16(n uint16) *Writer {
	w.buf.Write([]byte{byte(n >> 8), byte(n)})
	return w
}

func (w *Writer) Uint32(n uint32) *Writer {
	w.buf.Write([]byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return w
}

func (w *Writer) Uint32LE(n uint32) *Writer {
	w.buf.Write([]byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)})
	return w
}

func (w *Writer) Int32(n int32) *Writer {
	return w.Uint32(uint32(n))
}

func (w *Writer) Uint64(n uint64) *Writer {
	w.buf.Write([]byte{
		byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)})
	return w
}

func (w *Writer) Float32(f float32) *Writer {
	return w.Uint32(math.Float32bits(f))
}

func (w *Writer) Float64(f float64) *Writer {
	return w.Uint64(math.Float64bits(f))
}

func (w *Writer) Bool(b bool) *Writer {
	if b {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return w
}

func (w *Writer) String(s string) *Writer {
	w.Int32(int32(len(s)))
	w.buf.WriteString(s)
	return w
}

func (w *Writer) Uint32String(s string) *Writer {
	w.Uint32(uint32(len(s)))
	w.buf.WriteString(s)
	return w
}
