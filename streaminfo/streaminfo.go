// Package streaminfo decodes .stream_info, the world state snapshot written next to the chunk files of a save.
package streaminfo

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/willf/bitset"

	"github.com/noita-re/savetool/binio"
)

const Version = 24

const (
	minBackgroundSize = 8 + 4 + 12
	chunkSize         = 9
)

type Background struct {
	X      float32 `yaml:"x" json:"x"`
	Y      float32 `yaml:"y" json:"y"`
	Path   string  `yaml:"path" json:"path"`
	ZIndex float32 `yaml:"z_index" json:"z_index"`

	// Subtracted from X, Y for the in-game position. Always zero in observed saves.
	XOffset float32 `yaml:"x_offset" json:"x_offset"`
	YOffset float32 `yaml:"y_offset" json:"y_offset"`
}

type Chunk struct {
	X      int32 `yaml:"x" json:"x"`
	Y      int32 `yaml:"y" json:"y"`
	Loaded bool  `yaml:"loaded" json:"loaded"`
}

// SaveTime is the local wall-clock time the world was last saved.
type SaveTime struct {
	Year   uint16 `yaml:"year" json:"year"`
	Month  uint16 `yaml:"month" json:"month"`
	Day    uint16 `yaml:"day" json:"day"`
	Hour   uint16 `yaml:"hour" json:"hour"`
	Minute uint16 `yaml:"minute" json:"minute"`
	Second uint16 `yaml:"second" json:"second"`
}

// Time interprets the save time in the local time zone.
func (t SaveTime) Time() time.Time {
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day), int(t.Hour), int(t.Minute), int(t.Second), 0, time.Local)
}

func (t SaveTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

type File struct {
	Version           int32        `yaml:"version" json:"version"`
	Seed              uint32       `yaml:"seed" json:"seed"`
	FramesPlayed      int32        `yaml:"frames_played" json:"frames_played"`
	SecondsPlayed     float32      `yaml:"seconds_played" json:"seconds_played"`
	SomeCounter       uint64       `yaml:"some_counter" json:"some_counter"`
	Backgrounds       []Background `yaml:"backgrounds" json:"backgrounds"`
	SchemaHash        string       `yaml:"schema_hash" json:"schema_hash"`
	GameModeNr        int32        `yaml:"game_mode_nr" json:"game_mode_nr"`
	GameModeName      string       `yaml:"game_mode_name" json:"game_mode_name"`
	GameModeSteamID   uint64       `yaml:"game_mode_steam_id" json:"game_mode_steam_id"`
	NonNollaModActive bool         `yaml:"non_nolla_mod_active" json:"non_nolla_mod_active"`
	SaveAndQuitTime   SaveTime     `yaml:"save_and_quit_time" json:"save_and_quit_time"`
	UINewgameName     string       `yaml:"ui_newgame_name" json:"ui_newgame_name"`

	// The first pair follows the player position; the second has always been 559, 370.
	Camera [4]int32 `yaml:"camera,flow" json:"camera"`

	Chunks []Chunk `yaml:"chunks" json:"chunks"`
}

// LoadedChunks returns the positions in Chunks whose loaded flag is set.
func (f *File) LoadedChunks() *bitset.BitSet {
	set := bitset.New(uint(len(f.Chunks)))
	for i, chunk := range f.Chunks {
		if chunk.Loaded {
			set.Set(uint(i))
		}
	}
	return set
}

// Read consumes r to the end and decodes it.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes an uncompressed stream info payload. Nothing is returned unless the whole file decodes.
func Decode(data []byte) (*File, error) {
	r := binio.NewReader(data)
	var file File
	var err error

	if file.Version, err = r.ReadInt32(); err != nil {
		return nil, errors.WithMessage(err, "version")
	}
	if file.Version != Version {
		return nil, errors.Wrapf(binio.ErrUnsupportedVersion, "stream info: got %d, want %d", file.Version, Version)
	}

	if file.Seed, err = r.ReadUint32(); err != nil {
		return nil, errors.WithMessage(err, "seed")
	}
	if file.FramesPlayed, err = r.ReadInt32(); err != nil {
		return nil, errors.WithMessage(err, "frames_played")
	}
	if file.SecondsPlayed, err = r.ReadFloat32(); err != nil {
		return nil, errors.WithMessage(err, "seconds_played")
	}
	if file.SomeCounter, err = r.ReadUint64(); err != nil {
		return nil, errors.WithMessage(err, "some_counter")
	}
	if file.Backgrounds, err = decodeBackgrounds(r); err != nil {
		return nil, err
	}

	// The chunk list itself is the last thing in the file.
	chunkCount, err := r.ReadCount()
	if err != nil {
		return nil, errors.WithMessage(err, "chunk_count")
	}

	if file.SchemaHash, err = r.ReadString(); err != nil {
		return nil, errors.WithMessage(err, "schema_hash")
	}
	if file.GameModeNr, err = r.ReadInt32(); err != nil {
		return nil, errors.WithMessage(err, "game_mode_nr")
	}
	if file.GameModeName, err = r.ReadString(); err != nil {
		return nil, errors.WithMessage(err, "game_mode_name")
	}
	if file.GameModeSteamID, err = r.ReadUint64(); err != nil {
		return nil, errors.WithMessage(err, "game_mode_steam_id")
	}
	if file.NonNollaModActive, err = r.ReadBool(); err != nil {
		return nil, errors.WithMessage(err, "non_nolla_mod_active")
	}
	if file.SaveAndQuitTime, err = decodeSaveTime(r); err != nil {
		return nil, errors.WithMessage(err, "save_and_quit_time")
	}
	if file.UINewgameName, err = r.ReadString(); err != nil {
		return nil, errors.WithMessage(err, "ui_newgame_name")
	}
	for i := range file.Camera {
		if file.Camera[i], err = r.ReadInt32(); err != nil {
			return nil, errors.WithMessagef(err, "camera[%d]", i)
		}
	}

	if file.Chunks, err = decodeChunks(r, chunkCount); err != nil {
		return nil, err
	}
	return &file, nil
}

func decodeBackgrounds(r *binio.Reader) ([]Background, error) {
	// uint32 here, unlike every other count in either format
	count, err := r.ReadUint32Count()
	if err != nil {
		return nil, errors.WithMessage(err, "backgrounds")
	}

	backgrounds := make([]Background, 0, r.Capacity(count, minBackgroundSize))
	for i := 0; i < count; i++ {
		bg, err := decodeBackground(r)
		if err != nil {
			return nil, errors.WithMessagef(err, "backgrounds[%d]", i)
		}
		backgrounds = append(backgrounds, bg)
	}
	return backgrounds, nil
}

func decodeBackground(r *binio.Reader) (bg Background, err error) {
	if bg.X, err = r.ReadFloat32(); err != nil {
		return
	}
	if bg.Y, err = r.ReadFloat32(); err != nil {
		return
	}
	if bg.Path, err = r.ReadString(); err != nil {
		err = errors.WithMessage(err, "path")
		return
	}
	if bg.ZIndex, err = r.ReadFloat32(); err != nil {
		return
	}
	if bg.XOffset, err = r.ReadFloat32(); err != nil {
		return
	}
	bg.YOffset, err = r.ReadFloat32()
	return
}

func decodeSaveTime(r *binio.Reader) (t SaveTime, err error) {
	for _, dst := range []*uint16{&t.Year, &t.Month, &t.Day, &t.Hour, &t.Minute, &t.Second} {
		if *dst, err = r.ReadUint16(); err != nil {
			return
		}
	}
	return
}

func decodeChunks(r *binio.Reader, count int) ([]Chunk, error) {
	chunks := make([]Chunk, 0, r.Capacity(count, chunkSize))
	for i := 0; i < count; i++ {
		b, err := r.Next(chunkSize)
		if err != nil {
			return nil, errors.WithMessagef(err, "chunks[%d]", i)
		}
		chunks = append(chunks, Chunk{
			X:      int32(binary.BigEndian.Uint32(b[0:4])),
			Y:      int32(binary.BigEndian.Uint32(b[4:8])),
			Loaded: b[8] != 0,
		})
	}
	return chunks, nil
}
