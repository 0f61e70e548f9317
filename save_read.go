package main

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/noita-re/savetool/fastlz"
)

var ErrEmptySave = errors.New("save: empty input")
var ErrPayloadTooLarge = errors.New("save: decompressed payload too large")

// maxPayloadSize bounds what an outer compression layer may expand to.
var maxPayloadSize int64 = 256 << 20

var gzipMagic = []byte{0x1f, 0x8b}
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type SaveCompression byte

const (
	SaveCompressionNone SaveCompression = iota
	SaveCompressionGzip
	SaveCompressionZlib
	SaveCompressionZstd
)

func (c SaveCompression) String() string {
	switch c {
	case SaveCompressionGzip:
		return "gzip"
	case SaveCompressionZlib:
		return "zlib"
	case SaveCompressionZstd:
		return "zstd"
	default:
		return "none"
	}
}

// SavePayload is the decoded bytes of a save file together with what had to be stripped to get them.
type SavePayload struct {
	Data        []byte
	Compression SaveCompression
	Packed      bool
}

// Struct SaveReader reads one save file and strips its compression. The reader is not safe for concurrent access.
type SaveReader struct {
	source io.Reader
	raw    bool
	Name   string
}

// Creates a SaveReader. The ownership of the source is transferred to this reader. With raw set, the bytes are
// returned exactly as read.
func NewSaveReader(source io.Reader, raw bool) *SaveReader {
	reader := &SaveReader{source: source, raw: raw, Name: "<stdin>"}
	if file, ok := source.(*os.File); ok {
		reader.Name = file.Name()
	}
	return reader
}

// OpenSave opens path for reading, or standard input when path is empty or "-".
func OpenSave(path string, raw bool) (*SaveReader, error) {
	if path == "" || path == "-" {
		return NewSaveReader(os.Stdin, raw), nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return NewSaveReader(file, raw), nil
}

// ReadPayload reads the whole source. Unless the reader is raw, an outer gzip, zlib or zstd layer is removed first,
// then the game's own container if the bytes carry its header.
func (save *SaveReader) ReadPayload() (payload SavePayload, err error) {
	data, err := io.ReadAll(save.source)
	if err != nil {
		return payload, pkgerrors.Wrapf(err, "read %s", save.Name)
	}
	if len(data) == 0 {
		return payload, pkgerrors.Wrap(ErrEmptySave, save.Name)
	}

	log := logrus.WithField("file", save.Name)
	if save.raw {
		log.WithField("size", humanize.Bytes(uint64(len(data)))).Debug("read raw save")
		payload.Data = data
		return
	}

	if !fastlz.IsPacked(data) {
		payload.Compression = detectCompression(data)
		if payload.Compression != SaveCompressionNone {
			compressedSize := len(data)
			if data, err = decompress(data, payload.Compression); err != nil {
				return payload, pkgerrors.Wrapf(err, "%s %s", payload.Compression, save.Name)
			}
			log.WithFields(logrus.Fields{
				"compression": payload.Compression,
				"compressed":  humanize.Bytes(uint64(compressedSize)),
				"size":        humanize.Bytes(uint64(len(data))),
			}).Debug("decompressed outer layer")
		}
	}

	if fastlz.IsPacked(data) {
		packedSize := len(data)
		if data, err = fastlz.Unpack(data); err != nil {
			return payload, pkgerrors.Wrapf(err, "unpack %s", save.Name)
		}
		payload.Packed = true
		log.WithFields(logrus.Fields{
			"packed": humanize.Bytes(uint64(packedSize)),
			"size":   humanize.Bytes(uint64(len(data))),
		}).Debug("unpacked save container")
	}

	payload.Data = data
	return
}

func (save *SaveReader) Close() error {
	if save.source == os.Stdin {
		return nil
	}
	if closer, ok := save.source.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func detectCompression(data []byte) SaveCompression {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return SaveCompressionGzip
	case bytes.HasPrefix(data, zstdMagic):
		return SaveCompressionZstd
	case len(data) >= 2 && data[0]&0x0f == 8 && data[0]>>4 <= 7 && (uint16(data[0])<<8|uint16(data[1]))%31 == 0:
		return SaveCompressionZlib
	default:
		return SaveCompressionNone
	}
}

func decompress(data []byte, compression SaveCompression) ([]byte, error) {
	source := bytes.NewReader(data)
	switch compression {
	case SaveCompressionGzip:
		reader, err := gzip.NewReader(source)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return readLimited(reader)
	case SaveCompressionZlib:
		reader, err := zlib.NewReader(source)
		if err != nil {
			return nil, err
		}
		defer reader.Close()
		return readLimited(reader)
	case SaveCompressionZstd:
		decoder, err := zstd.NewReader(source, zstd.WithDecoderMaxMemory(uint64(maxPayloadSize)))
		if err != nil {
			return nil, err
		}
		defer decoder.Close()
		return readLimited(decoder)
	default:
		return data, nil
	}
}

func readLimited(reader io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxPayloadSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxPayloadSize {
		return nil, pkgerrors.Wrapf(ErrPayloadTooLarge, "limit %s", humanize.Bytes(uint64(maxPayloadSize)))
	}
	return data, nil
}
