// Package pixelscene decodes world_pixel_scenes.bin, the manifest of pixel scenes the game has queued or already
// stamped into the world.
package pixelscene

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/noita-re/savetool/binio"
)

const (
	MagicNumber = 0x02F0AA9F
	Version     = 3
)

// minimum encoded sizes, used to bound preallocation
const (
	minPixelSceneSize = 8 + 4*3 + 2 + 4 + 4 + 2 + 4
	minImageSize      = 8 + 4
)

type PixelScene struct {
	X                  int32  `yaml:"x" json:"x"`
	Y                  int32  `yaml:"y" json:"y"`
	MaterialFilename   string `yaml:"material_filename" json:"material_filename"`
	ColorsFilename     string `yaml:"colors_filename" json:"colors_filename"`
	BackgroundFilename string `yaml:"background_filename" json:"background_filename"`
	SkipBiomeChecks    bool   `yaml:"skip_biome_checks" json:"skip_biome_checks"`
	SkipEdgeTextures   bool   `yaml:"skip_edge_textures" json:"skip_edge_textures"`
	BackgroundZIndex   int32  `yaml:"background_z_index" json:"background_z_index"`
	JustLoadAnEntity   string `yaml:"just_load_an_entity" json:"just_load_an_entity"`
	CleanAreaBefore    bool   `yaml:"clean_area_before" json:"clean_area_before"`
	DebugReloadMe      bool   `yaml:"debug_reload_me" json:"debug_reload_me"`

	// ColorMaterial maps a 24-bit RGB color in the material image to a cell type.
	ColorMaterial map[uint32]int32 `yaml:"color_material" json:"color_material"`
}

type Image struct {
	X        int32  `yaml:"x" json:"x"`
	Y        int32  `yaml:"y" json:"y"`
	Filename string `yaml:"filename" json:"filename"`
}

type File struct {
	Version          int32        `yaml:"version" json:"version"`
	MagicNum         int32        `yaml:"magic_num" json:"magic_num"`
	PendingList      []PixelScene `yaml:"pending_list" json:"pending_list"`
	PlacedList       []PixelScene `yaml:"placed_list" json:"placed_list"`
	BackgroundImages []Image      `yaml:"background_images" json:"background_images"`
}

// Scenes returns the pending scenes followed by the placed ones.
func (f *File) Scenes() []PixelScene {
	all := make([]PixelScene, 0, len(f.PendingList)+len(f.PlacedList))
	all = append(all, f.PendingList...)
	return append(all, f.PlacedList...)
}

// Read consumes r to the end and decodes it.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes an uncompressed pixel scene payload. Nothing is returned unless the whole file decodes.
func Decode(data []byte) (*File, error) {
	d := &decoder{r: binio.NewReader(data)}
	return d.decodeFile()
}

type decoder struct {
	r *binio.Reader
}

func (d *decoder) decodeFile() (*File, error) {
	var file File
	var err error

	if file.Version, err = d.r.ReadInt32(); err != nil {
		return nil, errors.WithMessage(err, "version")
	}
	if file.MagicNum, err = d.r.ReadInt32(); err != nil {
		return nil, errors.WithMessage(err, "magic_num")
	}
	if file.MagicNum != MagicNumber {
		return nil, errors.Wrapf(binio.ErrUnsupportedMagicNumber, "pixel scenes: got %#x, want %#x", uint32(file.MagicNum), MagicNumber)
	}
	if file.Version != Version {
		return nil, errors.Wrapf(binio.ErrUnsupportedVersion, "pixel scenes: got %d, want %d", file.Version, Version)
	}

	if file.PendingList, err = d.decodeSceneList("pending_list"); err != nil {
		return nil, err
	}
	if file.PlacedList, err = d.decodeSceneList("placed_list"); err != nil {
		return nil, err
	}
	if file.BackgroundImages, err = d.decodeImageList("background_images"); err != nil {
		return nil, err
	}
	return &file, nil
}

func (d *decoder) decodeSceneList(field string) ([]PixelScene, error) {
	count, err := d.r.ReadCount()
	if err != nil {
		return nil, errors.WithMessage(err, field)
	}

	scenes := make([]PixelScene, 0, d.r.Capacity(count, minPixelSceneSize))
	for i := 0; i < count; i++ {
		scene, err := d.decodeScene()
		if err != nil {
			return nil, errors.WithMessage(err, fmt.Sprintf("%s[%d]", field, i))
		}
		scenes = append(scenes, scene)
	}
	return scenes, nil
}

func (d *decoder) decodeScene() (scene PixelScene, err error) {
	fields := []struct {
		name string
		read func() error
	}{
		{"x", d.readInt32(&scene.X)},
		{"y", d.readInt32(&scene.Y)},
		{"material_filename", d.readString(&scene.MaterialFilename)},
		{"colors_filename", d.readString(&scene.ColorsFilename)},
		{"background_filename", d.readString(&scene.BackgroundFilename)},
		{"skip_biome_checks", d.readBool(&scene.SkipBiomeChecks)},
		{"skip_edge_textures", d.readBool(&scene.SkipEdgeTextures)},
		{"background_z_index", d.readInt32(&scene.BackgroundZIndex)},
		{"just_load_an_entity", d.readString(&scene.JustLoadAnEntity)},
		{"clean_area_before", d.readBool(&scene.CleanAreaBefore)},
		{"debug_reload_me", d.readBool(&scene.DebugReloadMe)},
	}
	for _, f := range fields {
		if err = f.read(); err != nil {
			err = errors.WithMessage(err, f.name)
			return
		}
	}

	if scene.ColorMaterial, err = d.decodeColorMaterial(); err != nil {
		err = errors.WithMessage(err, "color_material")
	}
	return
}

func (d *decoder) decodeColorMaterial() (map[uint32]int32, error) {
	count, err := d.r.ReadUint32()
	if err != nil {
		return nil, err
	}

	colors := make(map[uint32]int32, d.r.Capacity(int(count), 8))
	for i := uint32(0); i < count; i++ {
		// The color word is the only little-endian value in the file. Its low byte is alpha and is dropped.
		color, err := d.r.ReadUint32LE()
		if err != nil {
			return nil, errors.WithMessagef(err, "entry %d", i)
		}
		cellType, err := d.r.ReadInt32()
		if err != nil {
			return nil, errors.WithMessagef(err, "entry %d", i)
		}
		colors[color>>8] = cellType
	}
	return colors, nil
}

func (d *decoder) decodeImageList(field string) ([]Image, error) {
	count, err := d.r.ReadCount()
	if err != nil {
		return nil, errors.WithMessage(err, field)
	}

	images := make([]Image, 0, d.r.Capacity(count, minImageSize))
	for i := 0; i < count; i++ {
		var image Image
		if image.X, err = d.r.ReadInt32(); err == nil {
			if image.Y, err = d.r.ReadInt32(); err == nil {
				image.Filename, err = d.r.ReadString()
			}
		}
		if err != nil {
			return nil, errors.WithMessage(err, fmt.Sprintf("%s[%d]", field, i))
		}
		images = append(images, image)
	}
	return images, nil
}

func (d *decoder) readInt32(dst *int32) func() error {
	return func() (err error) {
		*dst, err = d.r.ReadInt32()
		return
	}
}

func (d *decoder) readBool(dst *bool) func() error {
	return func() (err error) {
		*dst, err = d.r.ReadBool()
		return
	}
}

func (d *decoder) readString(dst *string) func() error {
	return func() (err error) {
		*dst, err = d.r.ReadString()
		return
	}
}
