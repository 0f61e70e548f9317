// Package modsettings decodes mod_settings.bin, the values mods have stored for their settings. Every setting has
// the value in effect now and the value that takes effect on the next run.
package modsettings

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/noita-re/savetool/binio"
)

var ErrUnsupportedType = errors.New("modsettings: unsupported setting type")

// id length, both type tags, two empty values
const minEntrySize = 4 + 4 + 4

type Type uint32

const (
	TypeNone Type = iota
	TypeBool
	TypeNumber
	TypeString
)

var typeNames = map[Type]string{
	TypeNone:   "none",
	TypeBool:   "bool",
	TypeNumber: "number",
	TypeString: "string",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", uint32(t))
}

func (t Type) MarshalText() ([]byte, error) {
	if _, ok := typeNames[t]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedType, "%d", uint32(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	for k, name := range typeNames {
		if name == string(text) {
			*t = k
			return nil
		}
	}
	return errors.Wrapf(ErrUnsupportedType, "%q", text)
}

// Value is one typed setting value. Only the field matching Type is meaningful.
type Value struct {
	Type   Type
	Bool   bool
	Number float64
	Text   string
}

// Interface returns the value as a bool, float64 or string, or nil for TypeNone.
func (v Value) Interface() interface{} {
	switch v.Type {
	case TypeBool:
		return v.Bool
	case TypeNumber:
		return v.Number
	case TypeString:
		return v.Text
	default:
		return nil
	}
}

func (v Value) String() string {
	if v.Type == TypeNone {
		return "<none>"
	}
	if v.Type == TypeString {
		return fmt.Sprintf("%q", v.Text)
	}
	return fmt.Sprint(v.Interface())
}

type valueDocument struct {
	Type  Type        `yaml:"type" json:"type"`
	Value interface{} `yaml:"value" json:"value"`
}

func (v Value) MarshalYAML() (interface{}, error) {
	return valueDocument{Type: v.Type, Value: v.Interface()}, nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueDocument{Type: v.Type, Value: v.Interface()})
}

type Entry struct {
	ID      string `yaml:"id" json:"id"`
	Current Value  `yaml:"current" json:"current"`
	Next    Value  `yaml:"next" json:"next"`
}

type File struct {
	// ExpectedCount is the entry count stored in the header. The entries themselves run to the end of the payload.
	ExpectedCount uint64  `yaml:"expected_count" json:"expected_count"`
	Entries       []Entry `yaml:"entries" json:"entries"`
}

// CountMatches reports whether the header count agrees with the number of entries decoded.
func (f *File) CountMatches() bool {
	return f.ExpectedCount == uint64(len(f.Entries))
}

// Lookup finds the entry with the given id, for example "mymod.difficulty".
func (f *File) Lookup(id string) (Entry, bool) {
	for _, entry := range f.Entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return Entry{}, false
}

// Read consumes r to the end and decodes it.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode decodes an uncompressed mod settings payload. A header count that disagrees with the entries is not an
// error; see File.CountMatches.
func Decode(data []byte) (*File, error) {
	r := binio.NewReader(data)

	expected, err := r.ReadUint64()
	if err != nil {
		return nil, errors.WithMessage(err, "mod settings: expected_count")
	}

	hint := r.Remaining()
	if expected < uint64(hint) {
		hint = int(expected)
	}
	file := &File{
		ExpectedCount: expected,
		Entries:       make([]Entry, 0, r.Capacity(hint, minEntrySize)),
	}
	for i := 0; r.Remaining() > 0; i++ {
		entry, err := decodeEntry(r)
		if err != nil {
			return nil, errors.WithMessagef(err, "mod settings: entries[%d]", i)
		}
		file.Entries = append(file.Entries, entry)
	}
	return file, nil
}

func decodeEntry(r *binio.Reader) (entry Entry, err error) {
	if entry.ID, err = r.ReadUint32String(); err != nil {
		err = errors.WithMessage(err, "id")
		return
	}
	var currentType, nextType Type
	if currentType, err = decodeType(r); err != nil {
		err = errors.WithMessage(err, "current_type")
		return
	}
	if nextType, err = decodeType(r); err != nil {
		err = errors.WithMessage(err, "next_type")
		return
	}
	if entry.Current, err = decodeValue(r, currentType); err != nil {
		err = errors.WithMessagef(err, "%s current", entry.ID)
		return
	}
	if entry.Next, err = decodeValue(r, nextType); err != nil {
		err = errors.WithMessagef(err, "%s next", entry.ID)
	}
	return
}

func decodeType(r *binio.Reader) (Type, error) {
	start := r.Offset()
	tag, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	t := Type(tag)
	if _, ok := typeNames[t]; !ok {
		return 0, errors.Wrapf(ErrUnsupportedType, "tag %d at offset %d", tag, start)
	}
	return t, nil
}

func decodeValue(r *binio.Reader, t Type) (v Value, err error) {
	v.Type = t
	switch t {
	case TypeBool:
		var n uint32
		n, err = r.ReadUint32()
		v.Bool = n != 0
	case TypeNumber:
		v.Number, err = r.ReadFloat64()
	case TypeString:
		v.Text, err = r.ReadUint32String()
	}
	return
}
