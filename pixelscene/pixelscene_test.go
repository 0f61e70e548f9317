package pixelscene

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noita-re/savetool/binio"
)

func writeHeader(w *binio.Writer, version, magic int32) *binio.Writer {
	return w.Int32(version).Int32(magic)
}

// writeScene encodes a scene the way the game does. Color keys are written back with a zero alpha byte.
func writeScene(w *binio.Writer, s PixelScene) {
	w.Int32(s.X).Int32(s.Y).
		String(s.MaterialFilename).
		String(s.ColorsFilename).
		String(s.BackgroundFilename).
		Bool(s.SkipBiomeChecks).
		Bool(s.SkipEdgeTextures).
		Int32(s.BackgroundZIndex).
		String(s.JustLoadAnEntity).
		Bool(s.CleanAreaBefore).
		Bool(s.DebugReloadMe)

	colors := make([]uint32, 0, len(s.ColorMaterial))
	for c := range s.ColorMaterial {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool { return colors[i] < colors[j] })

	w.Uint32(uint32(len(colors)))
	for _, c := range colors {
		w.Uint32LE(c << 8).Int32(s.ColorMaterial[c])
	}
}

func encodeFile(f *File) []byte {
	w := writeHeader(binio.NewWriter(), f.Version, f.MagicNum)
	for _, list := range [][]PixelScene{f.PendingList, f.PlacedList} {
		w.Int32(int32(len(list)))
		for _, s := range list {
			writeScene(w, s)
		}
	}
	w.Int32(int32(len(f.BackgroundImages)))
	for _, img := range f.BackgroundImages {
		w.Int32(img.X).Int32(img.Y).String(img.Filename)
	}
	return w.Bytes()
}

func sampleFile() *File {
	return &File{
		Version:  Version,
		MagicNum: MagicNumber,
		PendingList: []PixelScene{
			{
				X:                  -1280,
				Y:                  4096,
				MaterialFilename:   "data/biome_impl/temple/altar.png",
				ColorsFilename:     "data/biome_impl/temple/altar_visual.png",
				BackgroundFilename: "data/biome_impl/temple/altar_background.png",
				SkipBiomeChecks:    true,
				BackgroundZIndex:   50,
				JustLoadAnEntity:   "",
				CleanAreaBefore:    true,
				ColorMaterial: map[uint32]int32{
					0xffffff: 12,
					0x3d3e37: 431,
				},
			},
		},
		PlacedList: []PixelScene{
			{
				X:                35,
				Y:                -100,
				MaterialFilename: "data/biome_impl/spliced/tree/0.png",
				SkipEdgeTextures: true,
				BackgroundZIndex: -1,
				JustLoadAnEntity: "data/entities/buildings/teleport_start.xml",
				DebugReloadMe:    true,
				ColorMaterial:    map[uint32]int32{},
			},
			{
				X:                0,
				Y:                0,
				MaterialFilename: "data/biome_impl/mountain/hall.png",
				ColorMaterial:    map[uint32]int32{0x000042: 0},
			},
		},
		BackgroundImages: []Image{
			{X: 10, Y: 20, Filename: "data/weather_gfx/background.png"},
		},
	}
}

func TestDecode(t *testing.T) {
	want := sampleFile()

	got, err := Decode(encodeFile(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRead(t *testing.T) {
	want := sampleFile()

	got, err := Read(bytes.NewReader(encodeFile(want)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, got.Scenes(), 3)
	assert.Equal(t, want.PendingList[0], got.Scenes()[0])
	assert.Equal(t, want.PlacedList[1], got.Scenes()[2])
}

func TestDecodeEmptyLists(t *testing.T) {
	data := writeHeader(binio.NewWriter(), Version, MagicNumber).
		Int32(0).
		Int32(0).
		Int32(0).
		Bytes()

	got, err := Decode(data)
	require.NoError(t, err)
	assert.NotNil(t, got.PendingList)
	assert.Empty(t, got.PendingList)
	assert.NotNil(t, got.PlacedList)
	assert.Empty(t, got.PlacedList)
	assert.NotNil(t, got.BackgroundImages)
	assert.Empty(t, got.BackgroundImages)
}

func TestDecodeColorKey(t *testing.T) {
	w := writeHeader(binio.NewWriter(), Version, MagicNumber).Int32(1)
	w.Int32(0).Int32(0).
		String("m.png").String("").String("").
		Bool(false).Bool(false).
		Int32(0).
		String("").
		Bool(false).Bool(false).
		Uint32(1).
		Raw([]byte{0x44, 0x33, 0x22, 0x11}).
		Int32(7)
	w.Int32(0).Int32(0)

	got, err := Decode(w.Bytes())
	require.NoError(t, err)
	require.Len(t, got.PendingList, 1)
	assert.Equal(t, map[uint32]int32{0x00112233: 7}, got.PendingList[0].ColorMaterial)
}

func TestDecodeDuplicateColorKeys(t *testing.T) {
	// Colors differing only in the alpha byte collapse onto the same key; the last entry wins.
	w := writeHeader(binio.NewWriter(), Version, MagicNumber).Int32(1)
	w.Int32(0).Int32(0).
		String("").String("").String("").
		Bool(false).Bool(false).
		Int32(0).
		String("").
		Bool(false).Bool(false).
		Uint32(2).
		Uint32LE(0xAABBCC00).Int32(1).
		Uint32LE(0xAABBCCFF).Int32(2)
	w.Int32(0).Int32(0)

	got, err := Decode(w.Bytes())
	require.NoError(t, err)
	assert.Equal(t, map[uint32]int32{0xAABBCC: 2}, got.PendingList[0].ColorMaterial)
}

func TestDecodeUnsupportedMagicNumber(t *testing.T) {
	data := writeHeader(binio.NewWriter(), Version, 0x12345678).Bytes()

	_, err := Decode(data)
	require.ErrorIs(t, err, binio.ErrUnsupportedMagicNumber)
	assert.NotErrorIs(t, err, binio.ErrUnexpectedEOF)

	// magic is checked before version
	data = writeHeader(binio.NewWriter(), 2, 0x12345678).Bytes()
	_, err = Decode(data)
	require.ErrorIs(t, err, binio.ErrUnsupportedMagicNumber)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	for _, version := range []int32{0, 2, 4, 24} {
		data := writeHeader(binio.NewWriter(), version, MagicNumber).Int32(0).Int32(0).Int32(0).Bytes()

		_, err := Decode(data)
		require.ErrorIs(t, err, binio.ErrUnsupportedVersion, "version %d", version)
	}
}

func TestDecodeTruncated(t *testing.T) {
	full := encodeFile(sampleFile())

	for n := 0; n < len(full); n++ {
		got, err := Decode(full[:n])
		require.ErrorIs(t, err, binio.ErrUnexpectedEOF, "truncated to %d bytes", n)
		require.Nil(t, got)
	}
}

func TestDecodeTruncatedString(t *testing.T) {
	data := writeHeader(binio.NewWriter(), Version, MagicNumber).
		Int32(1).
		Int32(0).Int32(0).
		Int32(10).Raw([]byte("abc")).
		Bytes()

	_, err := Decode(data)
	require.ErrorIs(t, err, binio.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "pending_list[0]: material_filename")
}

func TestDecodeNegativeCount(t *testing.T) {
	data := writeHeader(binio.NewWriter(), Version, MagicNumber).
		Int32(0).
		Int32(-1).
		Bytes()

	_, err := Decode(data)
	require.ErrorIs(t, err, binio.ErrInvalidLength)
	assert.Contains(t, err.Error(), "placed_list")
}

func TestDecodeImageErrorPath(t *testing.T) {
	data := writeHeader(binio.NewWriter(), Version, MagicNumber).
		Int32(0).
		Int32(0).
		Int32(2).
		Int32(1).Int32(2).String("a.png").
		Int32(3).Int32(4).Int32(2).Raw([]byte{0xc3, 0x28}).
		Bytes()

	_, err := Decode(data)
	require.ErrorIs(t, err, binio.ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "background_images[1]")
}
