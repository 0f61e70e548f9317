package petri

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noita-re/savetool/binio"
)

func writePhysicsObject(w *binio.Writer, o PhysicsObject) {
	w.Uint64(o.Unknown0).Uint32(o.Unknown1).
		Float32(o.X).Float32(o.Y).Float32(o.RotationRadians)
	for _, f := range o.Unknown2 {
		w.Float64(f)
	}
	for _, b := range o.Flags {
		w.Bool(b)
	}
	w.Float32(o.Z).Uint32(o.Width).Uint32(o.Height)
	for _, c := range o.Colors {
		w.Uint32(c)
	}
}

func encodeArea(a *Area) *binio.Writer {
	w := binio.NewWriter().Uint32(uint32(a.Version)).Uint32(a.Width).Uint32(a.Height).Raw(a.Cells)
	w.Uint32(uint32(len(a.Materials)))
	for _, m := range a.Materials {
		w.Uint32String(m)
	}
	w.Uint32(uint32(len(a.CustomColors)))
	for _, c := range a.CustomColors {
		w.Uint32(c)
	}
	w.Uint32(uint32(len(a.PhysicsObjects)))
	for _, o := range a.PhysicsObjects {
		writePhysicsObject(w, o)
	}
	return w
}

func sampleArea() *Area {
	cells := make([]byte, AreaSize*AreaSize)
	cells[0] = 1
	cells[1] = 2 | CustomColorFlag
	cells[AreaSize+3] = 1 | CustomColorFlag

	return &Area{
		Version:      Version,
		Width:        AreaSize,
		Height:       AreaSize,
		Cells:        cells,
		Materials:    []string{"air", "rock_static", "wood_player"},
		CustomColors: []uint32{0xFF336699, 0xFF000000},
		PhysicsObjects: []PhysicsObject{
			{
				Unknown0:        0x0102030405060708,
				Unknown1:        7,
				X:               -120.5,
				Y:               300,
				RotationRadians: 1.5,
				Unknown2:        [5]float64{0.25, 1, -2, 1e9, 0},
				Flags:           [5]bool{true, false, true, false, false},
				Z:               0.5,
				Width:           2,
				Height:          3,
				Colors:          []uint32{1, 2, 3, 4, 5, 6},
			},
			{
				Width:  0,
				Height: 0,
				Colors: []uint32{},
			},
		},
	}
}

func TestDecode(t *testing.T) {
	want := sampleArea()

	got, err := Decode(encodeArea(want).Bytes())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 0, got.TrailingBytes)
}

func TestRead(t *testing.T) {
	got, err := Read(bytes.NewReader(encodeArea(sampleArea()).Bytes()))
	require.NoError(t, err)
	assert.Len(t, got.PhysicsObjects, 2)
}

func TestDecodeTrailingBytes(t *testing.T) {
	data := encodeArea(sampleArea()).Uint32(0).Raw([]byte{9, 9}).Bytes()

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 6, got.TrailingBytes)
}

func TestDecodeUnsupportedHeader(t *testing.T) {
	a := sampleArea()
	a.Version = 23
	_, err := Decode(encodeArea(a).Bytes())
	require.ErrorIs(t, err, binio.ErrUnsupportedVersion)

	a = sampleArea()
	a.Width = 256
	_, err = Decode(encodeArea(a).Bytes())
	require.ErrorIs(t, err, ErrUnsupportedDimensions)
}

func TestDecodeTruncated(t *testing.T) {
	data := encodeArea(sampleArea()).Bytes()
	cellsEnd := 12 + AreaSize*AreaSize

	for _, n := range []int{0, 3, 11, 12, cellsEnd - 1, cellsEnd, cellsEnd + 5, len(data) - 40, len(data) - 1} {
		_, err := Decode(data[:n])
		require.ErrorIs(t, err, binio.ErrUnexpectedEOF, "cut at %d", n)
	}
}

func TestDecodeTruncatedImageNamesObject(t *testing.T) {
	a := sampleArea()
	a.PhysicsObjects = a.PhysicsObjects[:1]
	data := encodeArea(a).Bytes()

	_, err := Decode(data[:len(data)-4])
	require.ErrorIs(t, err, binio.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "physics_objects[0]")
	assert.Contains(t, err.Error(), "colors")
}

func TestDecodeOversizedImage(t *testing.T) {
	a := sampleArea()
	a.PhysicsObjects = []PhysicsObject{{Width: 0x10000, Height: 0x10000}}

	_, err := Decode(encodeArea(a).Bytes())
	require.ErrorIs(t, err, binio.ErrInvalidLength)
}

func TestMaterialAt(t *testing.T) {
	a := sampleArea()

	material, custom := a.MaterialAt(0, 0)
	assert.Equal(t, "rock_static", material)
	assert.False(t, custom)

	material, custom = a.MaterialAt(1, 0)
	assert.Equal(t, "wood_player", material)
	assert.True(t, custom)

	material, custom = a.MaterialAt(3, 1)
	assert.Equal(t, "rock_static", material)
	assert.True(t, custom)

	material, _ = a.MaterialAt(AreaSize, 0)
	assert.Empty(t, material)

	assert.Equal(t, len(a.CustomColors), a.CustomColorCells())
}
