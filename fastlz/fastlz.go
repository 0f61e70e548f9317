// Package fastlz reads and writes the compression container the game wraps its save files in.
//
// A container starts with two little-endian uint32s, the compressed and the decompressed payload size. When they are
// equal the payload is stored as is; otherwise it is a single FastLZ block.
package fastlz

import (
	"encoding/binary"
	"errors"

	pkgerrors "github.com/pkg/errors"
)

const headerSize = 8

// level 2 long matches encode their distance relative to this
const maxL2Distance = 8191

// output buffers start at most this many times the block size and grow as matches expand
const initialExpansion = 4

var ErrNoHeader = errors.New("fastlz: no container header")
var ErrBadCompressedSize = errors.New("fastlz: compressed size does not match container length")
var ErrCorrupt = errors.New("fastlz: corrupt input")
var ErrUnsupportedLevel = errors.New("fastlz: unsupported compression level")

// IsPacked reports whether data starts with a container header whose compressed size matches the rest of data.
func IsPacked(data []byte) bool {
	if len(data) < headerSize {
		return false
	}
	return uint64(binary.LittleEndian.Uint32(data)) == uint64(len(data)-headerSize)
}

// Unpack strips the container header and decompresses the payload.
func Unpack(data []byte) ([]byte, error) {
	if len(data) < headerSize {
		return nil, ErrNoHeader
	}

	compressedSize := binary.LittleEndian.Uint32(data)
	decompressedSize := binary.LittleEndian.Uint32(data[4:])
	if uint64(compressedSize) != uint64(len(data)-headerSize) {
		return nil, pkgerrors.Wrapf(ErrBadCompressedSize, "header says %d, have %d", compressedSize, len(data)-headerSize)
	}

	if compressedSize == decompressedSize {
		return data[headerSize:], nil
	}
	return Decompress(data[headerSize:], int(decompressedSize))
}

// Pack wraps data in a container holding a level 2 block, or the data itself when compressing does not make it
// smaller.
func Pack(data []byte) []byte {
	block := Compress(data)
	if len(block) >= len(data) {
		block = data
	}
	out := make([]byte, headerSize+len(block))
	binary.LittleEndian.PutUint32(out, uint32(len(block)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(data)))
	copy(out[headerSize:], block)
	return out
}

// Decompress decodes a FastLZ level 1 or level 2 block that must expand to exactly size bytes.
func Decompress(src []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, pkgerrors.Wrapf(ErrCorrupt, "negative output size %d", size)
	}
	if len(src) == 0 {
		if size != 0 {
			return nil, pkgerrors.Wrap(ErrCorrupt, "empty block")
		}
		return []byte{}, nil
	}

	level := src[0]>>5 + 1
	if level != 1 && level != 2 {
		return nil, pkgerrors.Wrapf(ErrUnsupportedLevel, "level %d", level)
	}

	capacity := size
	if limit := len(src) * initialExpansion; capacity > limit {
		capacity = limit
	}
	d := &decompressor{src: src, dst: make([]byte, 0, capacity), size: size}
	ctrl := uint(src[0] & 31)
	d.ip = 1
	for {
		var err error
		if ctrl >= 32 {
			err = d.match(ctrl, level)
		} else {
			err = d.literal(int(ctrl) + 1)
		}
		if err != nil {
			return nil, err
		}

		if d.ip >= len(d.src) {
			break
		}
		ctrl = uint(d.src[d.ip])
		d.ip++
	}

	if len(d.dst) != size {
		return nil, pkgerrors.Wrapf(ErrCorrupt, "decompressed %d bytes, want %d", len(d.dst), size)
	}
	return d.dst, nil
}

type decompressor struct {
	src  []byte
	ip   int
	dst  []byte
	size int
}

func (d *decompressor) next() (byte, error) {
	if d.ip >= len(d.src) {
		return 0, pkgerrors.Wrapf(ErrCorrupt, "truncated block at %d", d.ip)
	}
	b := d.src[d.ip]
	d.ip++
	return b, nil
}

func (d *decompressor) literal(n int) error {
	if d.ip+n > len(d.src) {
		return pkgerrors.Wrapf(ErrCorrupt, "literal run of %d at %d overruns block", n, d.ip)
	}
	if len(d.dst)+n > d.size {
		return pkgerrors.Wrapf(ErrCorrupt, "literal run of %d overruns output", n)
	}
	d.dst = append(d.dst, d.src[d.ip:d.ip+n]...)
	d.ip += n
	return nil
}

func (d *decompressor) match(ctrl uint, level byte) error {
	length := int(ctrl>>5) - 1
	ofs := int(ctrl&31) << 8

	if length == 6 {
		for {
			b, err := d.next()
			if err != nil {
				return err
			}
			length += int(b)
			if level == 1 || b != 255 {
				break
			}
		}
	}

	code, err := d.next()
	if err != nil {
		return err
	}
	distance := ofs + int(code) + 1
	if level == 2 && code == 255 && ofs == 31<<8 {
		hi, err := d.next()
		if err != nil {
			return err
		}
		lo, err := d.next()
		if err != nil {
			return err
		}
		distance = int(hi)<<8 + int(lo) + maxL2Distance + 1
	}
	length += 3

	if distance > len(d.dst) {
		return pkgerrors.Wrapf(ErrCorrupt, "match distance %d before start of output at %d", distance, len(d.dst))
	}
	if len(d.dst)+length > d.size {
		return pkgerrors.Wrapf(ErrCorrupt, "match of %d overruns output", length)
	}

	// byte at a time: the source and destination may overlap
	start := len(d.dst) - distance
	for i := 0; i < length; i++ {
		d.dst = append(d.dst, d.dst[start+i])
	}
	return nil
}
