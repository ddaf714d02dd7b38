package placement

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("malformed placement data")

// FormatError reports stored text that does not follow the placement schema.
type FormatError struct {
	// Offset is the byte offset of the problem, or -1 when unknown.
	Offset int64
	// Path locates the offending field, e.g. "cubes[2].rotation".
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	var b strings.Builder
	b.WriteString(ErrFormat.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFormat) true for any FormatError.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// Wire layout. Field order here is the serialized order. Pointers let the
// decoder tell a missing field from a zero one.
type document struct {
	Cubes *[]cubeData `json:"cubes"`
}

type cubeData struct {
	Position *vector3Data    `json:"position"`
	Rotation *quaternionData `json:"rotation"`
	Color    *colorData      `json:"color"`
}

type vector3Data struct {
	X *float32 `json:"x"`
	Y *float32 `json:"y"`
	Z *float32 `json:"z"`
}

type quaternionData struct {
	X *float32 `json:"x"`
	Y *float32 `json:"y"`
	Z *float32 `json:"z"`
	W *float32 `json:"w"`
}

type colorData struct {
	R *float32 `json:"r"`
	G *float32 `json:"g"`
	B *float32 `json:"b"`
	A *float32 `json:"a"`
}

func f32(v float32) *float32 { return &v }

// Serialize encodes s as compact JSON:
//
//	{"cubes":[{"position":{"x":..,"y":..,"z":..},
//	           "rotation":{"x":..,"y":..,"z":..,"w":..},
//	           "color":{"r":..,"g":..,"b":..,"a":..}}]}
//
// The output is deterministic for a given set.
func Serialize(s Set) (string, error) {
	cubes := make([]cubeData, 0, s.Len())
	for _, r := range s.records {
		cubes = append(cubes, cubeData{
			Position: &vector3Data{X: f32(r.Position[0]), Y: f32(r.Position[1]), Z: f32(r.Position[2])},
			Rotation: &quaternionData{X: f32(r.Rotation[0]), Y: f32(r.Rotation[1]), Z: f32(r.Rotation[2]), W: f32(r.Rotation[3])},
			Color:    &colorData{R: f32(r.Color[0]), G: f32(r.Color[1]), B: f32(r.Color[2]), A: f32(r.Color[3])},
		})
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(document{Cubes: &cubes}); err != nil {
		// Only non-finite floats can fail here.
		return "", fmt.Errorf("serialize placements: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Deserialize decodes text produced by Serialize. Any deviation from the
// schema (syntax, types, unknown or missing fields, values outside binary32
// range, trailing data) is a *FormatError.
func Deserialize(text string) (Set, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return Set{}, formatErrorFromJSON(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Set{}, &FormatError{Offset: dec.InputOffset(), Err: errors.New("unexpected data after document")}
	}
	if doc.Cubes == nil {
		return Set{}, &FormatError{Offset: -1, Path: "cubes", Err: errors.New("missing field")}
	}

	records := make([]Record, 0, len(*doc.Cubes))
	for i, c := range *doc.Cubes {
		r, err := c.record()
		if err != nil {
			err.Path = fmt.Sprintf("cubes[%d].%s", i, err.Path)
			return Set{}, err
		}
		records = append(records, r)
	}
	return Set{records: records}, nil
}

// DeserializeInto decodes text into *dst. dst is only replaced when decoding
// succeeds; on error it is left untouched.
func DeserializeInto(text string, dst *Set) error {
	s, err := Deserialize(text)
	if err != nil {
		return err
	}
	*dst = s
	return nil
}

func (c cubeData) record() (Record, *FormatError) {
	var r Record
	if c.Position == nil {
		return r, missing("position")
	}
	if c.Rotation == nil {
		return r, missing("rotation")
	}
	if c.Color == nil {
		return r, missing("color")
	}

	p, q, col := c.Position, c.Rotation, c.Color
	fields := []struct {
		path string
		src  *float32
		dst  *float32
	}{
		{"position.x", p.X, &r.Position[0]},
		{"position.y", p.Y, &r.Position[1]},
		{"position.z", p.Z, &r.Position[2]},
		{"rotation.x", q.X, &r.Rotation[0]},
		{"rotation.y", q.Y, &r.Rotation[1]},
		{"rotation.z", q.Z, &r.Rotation[2]},
		{"rotation.w", q.W, &r.Rotation[3]},
		{"color.r", col.R, &r.Color[0]},
		{"color.g", col.G, &r.Color[1]},
		{"color.b", col.B, &r.Color[2]},
		{"color.a", col.A, &r.Color[3]},
	}
	for _, f := range fields {
		if f.src == nil {
			return Record{}, missing(f.path)
		}
		*f.dst = *f.src
	}
	return r, nil
}

func missing(path string) *FormatError {
	return &FormatError{Offset: -1, Path: path, Err: errors.New("missing field")}
}

func formatErrorFromJSON(err error) *FormatError {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return &FormatError{Offset: syntaxErr.Offset, Err: err}
	case errors.As(err, &typeErr):
		return &FormatError{Offset: typeErr.Offset, Path: typeErr.Field, Err: err}
	case errors.Is(err, io.EOF):
		return &FormatError{Offset: 0, Err: errors.New("empty input")}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &FormatError{Offset: -1, Err: err}
	default:
		// Unknown fields and other decoder complaints carry no offset.
		return &FormatError{Offset: -1, Err: err}
	}
}
