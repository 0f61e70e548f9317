// Package petri decodes the .png_petri files that hold the cell grid of one streamed world area: a material index
// per cell, the custom colors of painted cells, and the physics bodies resting in the area.
package petri

import (
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/noita-re/savetool/binio"
)

const (
	Version = 24
	// cells per side of an area
	AreaSize = 512
)

// CustomColorFlag marks a cell whose color is the next entry of Area.CustomColors.
const CustomColorFlag = 0x80

var ErrUnsupportedDimensions = errors.New("petri: unsupported area dimensions")

// minimum encoded size of a physics object without image, used to bound preallocation
const minPhysicsObjectSize = 8 + 4 + 4*3 + 8*5 + 5 + 4 + 4*2

type PhysicsObject struct {
	Unknown0        uint64     `yaml:"unknown_0" json:"unknown_0"`
	Unknown1        uint32     `yaml:"unknown_1" json:"unknown_1"`
	X               float32    `yaml:"x" json:"x"`
	Y               float32    `yaml:"y" json:"y"`
	RotationRadians float32    `yaml:"rotation_radians" json:"rotation_radians"`
	Unknown2        [5]float64 `yaml:"unknown_2,flow" json:"unknown_2"`
	Flags           [5]bool    `yaml:"flags,flow" json:"flags"`
	Z               float32    `yaml:"z" json:"z"`
	Width           uint32     `yaml:"width" json:"width"`
	Height          uint32     `yaml:"height" json:"height"`

	// Colors holds Width*Height pixels in row-major order.
	Colors []uint32 `yaml:"-" json:"-"`
}

type Area struct {
	Version int32  `yaml:"version" json:"version"`
	Width   uint32 `yaml:"width" json:"width"`
	Height  uint32 `yaml:"height" json:"height"`

	// Cells holds one byte per cell in row-major order: the material index, plus CustomColorFlag.
	Cells          []byte          `yaml:"-" json:"-"`
	Materials      []string        `yaml:"materials" json:"materials"`
	CustomColors   []uint32        `yaml:"-" json:"-"`
	PhysicsObjects []PhysicsObject `yaml:"physics_objects" json:"physics_objects"`

	// TrailingBytes counts the bytes after the physics objects, which are not decoded.
	TrailingBytes int `yaml:"trailing_bytes" json:"trailing_bytes"`
}

// MaterialAt returns the material name of the cell at x, y and whether the cell carries a custom color.
func (a *Area) MaterialAt(x, y int) (material string, custom bool) {
	if x < 0 || y < 0 || x >= int(a.Width) || y >= int(a.Height) {
		return "", false
	}
	cell := a.Cells[y*int(a.Width)+x]
	if index := int(cell &^ CustomColorFlag); index < len(a.Materials) {
		material = a.Materials[index]
	}
	return material, cell&CustomColorFlag != 0
}

// CustomColorCells counts the cells flagged with CustomColorFlag. A consistent file has as many custom colors.
func (a *Area) CustomColorCells() int {
	n := 0
	for _, cell := range a.Cells {
		if cell&CustomColorFlag != 0 {
			n++
		}
	}
	return n
}

// Read consumes r to the end and decodes it.
func Read(r io.Reader) (*Area, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes an uncompressed .png_petri payload.
func Decode(data []byte) (*Area, error) {
	r := binio.NewReader(data)
	area := &Area{}

	version, err := r.ReadUint32()
	if err != nil {
		return nil, errors.WithMessage(err, "petri: version")
	}
	if version != Version {
		return nil, errors.Wrapf(binio.ErrUnsupportedVersion, "petri: got %d, want %d", version, Version)
	}
	area.Version = int32(version)

	if area.Width, err = r.ReadUint32(); err != nil {
		return nil, errors.WithMessage(err, "petri: width")
	}
	if area.Height, err = r.ReadUint32(); err != nil {
		return nil, errors.WithMessage(err, "petri: height")
	}
	if area.Width != AreaSize || area.Height != AreaSize {
		return nil, errors.Wrapf(ErrUnsupportedDimensions, "petri: %dx%d", area.Width, area.Height)
	}

	cells, err := r.Next(AreaSize * AreaSize)
	if err != nil {
		return nil, errors.WithMessage(err, "petri: cells")
	}
	area.Cells = append([]byte(nil), cells...)

	if area.Materials, err = decodeMaterials(r); err != nil {
		return nil, errors.WithMessage(err, "petri")
	}
	if area.CustomColors, err = decodeUint32s(r); err != nil {
		return nil, errors.WithMessage(err, "petri: custom_colors")
	}
	if area.PhysicsObjects, err = decodePhysicsObjects(r); err != nil {
		return nil, errors.WithMessage(err, "petri")
	}
	area.TrailingBytes = r.Remaining()
	return area, nil
}

func decodeMaterials(r *binio.Reader) ([]string, error) {
	count, err := r.ReadUint32Count()
	if err != nil {
		return nil, errors.WithMessage(err, "material_count")
	}
	materials := make([]string, 0, r.Capacity(count, 4))
	for i := 0; i < count; i++ {
		name, err := r.ReadUint32String()
		if err != nil {
			return nil, errors.WithMessagef(err, "materials[%d]", i)
		}
		materials = append(materials, name)
	}
	return materials, nil
}

func decodeUint32s(r *binio.Reader) ([]uint32, error) {
	count, err := r.ReadUint32Count()
	if err != nil {
		return nil, err
	}
	return readUint32s(r, count)
}

func readUint32s(r *binio.Reader, count int) ([]uint32, error) {
	values := make([]uint32, 0, r.Capacity(count, 4))
	for i := 0; i < count; i++ {
		v, err := r.ReadUint32()
		if err != nil {
			return nil, errors.WithMessagef(err, "[%d]", i)
		}
		values = append(values, v)
	}
	return values, nil
}

func decodePhysicsObjects(r *binio.Reader) ([]PhysicsObject, error) {
	count, err := r.ReadUint32Count()
	if err != nil {
		return nil, errors.WithMessage(err, "physics_object_count")
	}
	objects := make([]PhysicsObject, 0, r.Capacity(count, minPhysicsObjectSize))
	for i := 0; i < count; i++ {
		object, err := decodePhysicsObject(r)
		if err != nil {
			return nil, errors.WithMessagef(err, "physics_objects[%d]", i)
		}
		objects = append(objects, object)
	}
	return objects, nil
}

func decodePhysicsObject(r *binio.Reader) (o PhysicsObject, err error) {
	if o.Unknown0, err = r.ReadUint64(); err != nil {
		return
	}
	if o.Unknown1, err = r.ReadUint32(); err != nil {
		return
	}
	for _, dst := range []*float32{&o.X, &o.Y, &o.RotationRadians} {
		if *dst, err = r.ReadFloat32(); err != nil {
			return
		}
	}
	for i := range o.Unknown2 {
		if o.Unknown2[i], err = r.ReadFloat64(); err != nil {
			return
		}
	}
	for i := range o.Flags {
		if o.Flags[i], err = r.ReadBool(); err != nil {
			return
		}
	}
	if o.Z, err = r.ReadFloat32(); err != nil {
		return
	}
	if o.Width, err = r.ReadUint32(); err != nil {
		return
	}
	if o.Height, err = r.ReadUint32(); err != nil {
		return
	}

	pixels := uint64(o.Width) * uint64(o.Height)
	if pixels > math.MaxInt32 {
		err = errors.Wrapf(binio.ErrInvalidLength, "image of %dx%d", o.Width, o.Height)
		return
	}
	if o.Colors, err = readUint32s(r, int(pixels)); err != nil {
		err = errors.WithMessage(err, "colors")
	}
	return
}
