// Package placement converts placed cubes into serializable records and
// persists the ordered set of them in a preference store.
package placement

import (
	"math"

	"github.com/banshee-data/lighthouse/internal/geom"
)

// Record is the persisted form of one placed cube. Components are binary32,
// so a round trip through a Record keeps about seven significant digits.
// Records are values; there are no setters.
type Record struct {
	Position [3]float32 // x, y, z
	Rotation [4]float32 // x, y, z, w
	Color    [4]float32 // r, g, b, a
}

// NewRecord captures a pose and colour.
func NewRecord(pose geom.Pose, color geom.RGBA) Record {
	p, q := pose.Position, pose.Rotation
	return Record{
		Position: [3]float32{float32(p.X), float32(p.Y), float32(p.Z)},
		Rotation: [4]float32{float32(q.Imag), float32(q.Jmag), float32(q.Kmag), float32(q.Real)},
		Color:    [4]float32{float32(color.R), float32(color.G), float32(color.B), float32(color.A)},
	}
}

// Representable reports whether pose and color fit in a Record: every
// component finite and within binary32 range. NewRecord of anything else
// holds NaN or Inf, which JSON cannot encode.
func Representable(pose geom.Pose, color geom.RGBA) bool {
	p, q := pose.Position, pose.Rotation
	for _, v := range [...]float64{
		p.X, p.Y, p.Z,
		q.Real, q.Imag, q.Jmag, q.Kmag,
		color.R, color.G, color.B, color.A,
	} {
		if math.IsNaN(v) || math.Abs(v) > math.MaxFloat32 {
			return false
		}
	}
	return true
}

// Pose returns the recorded position and orientation.
func (r Record) Pose() geom.Pose {
	return geom.Pose{
		Position: geom.Vec3{X: float64(r.Position[0]), Y: float64(r.Position[1]), Z: float64(r.Position[2])},
		Rotation: geom.Quat{
			Real: float64(r.Rotation[3]),
			Imag: float64(r.Rotation[0]),
			Jmag: float64(r.Rotation[1]),
			Kmag: float64(r.Rotation[2]),
		},
	}
}

// RGBA returns the recorded colour.
func (r Record) RGBA() geom.RGBA {
	return geom.RGBA{
		R: float64(r.Color[0]),
		G: float64(r.Color[1]),
		B: float64(r.Color[2]),
		A: float64(r.Color[3]),
	}
}

// Set is the ordered collection of placed cubes. Order is placement order and
// there is no removal. The zero value is an empty set.
type Set struct {
	records []Record
}

// NewSet returns a set holding a copy of records.
func NewSet(records ...Record) Set {
	if len(records) == 0 {
		return Set{}
	}
	return Set{records: append([]Record(nil), records...)}
}

// Append adds r after every existing record. Copies of the set taken before
// the call are not affected.
func (s *Set) Append(r Record) {
	n := len(s.records)
	s.records = append(s.records[:n:n], r)
}

// Len returns the number of records.
func (s Set) Len() int {
	return len(s.records)
}

// At returns the i-th record in placement order.
func (s Set) At(i int) Record {
	return s.records[i]
}

// Records returns a copy of the records in placement order.
func (s Set) Records() []Record {
	return append([]Record(nil), s.records...)
}
