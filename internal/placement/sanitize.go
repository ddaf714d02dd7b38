package placement

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/lighthouse/internal/geom"
)

// QuaternionTolerance is how far |q| may drift from 1 before a stored
// rotation is renormalized. binary32 storage alone drifts by about 1e-7.
const QuaternionTolerance = 1e-3

// SanitizeReport counts the corrections Sanitize made.
type SanitizeReport struct {
	NormalizedRotations int
	ResetRotations      int
	ClampedColors       int
}

// Changed reports whether any record was altered.
func (r SanitizeReport) Changed() bool {
	return r.NormalizedRotations+r.ResetRotations+r.ClampedColors > 0
}

func (r SanitizeReport) String() string {
	return fmt.Sprintf("normalized=%d reset=%d clamped=%d", r.NormalizedRotations, r.ResetRotations, r.ClampedColors)
}

// Sanitize repairs records loaded from storage:
//   - a rotation whose length is 0, or with a NaN or infinite component,
//     becomes the identity;
//   - a rotation whose length is off 1 by more than QuaternionTolerance is
//     normalized;
//   - colour components are clamped to [0, 1].
//
// Records already within bounds are returned bit-for-bit unchanged.
func Sanitize(s Set) (Set, SanitizeReport) {
	var report SanitizeReport
	out := make([]Record, len(s.records))
	for i, r := range s.records {
		pose := r.Pose()
		q := pose.Rotation
		switch {
		case q == (geom.Quat{}) || quat.IsNaN(q) || quat.IsInf(q):
			pose.Rotation = geom.Identity()
			report.ResetRotations++
		case !geom.IsUnit(q, QuaternionTolerance):
			pose.Rotation = geom.Normalize(q)
			report.NormalizedRotations++
		}

		color := r.RGBA()
		if !color.InRange() {
			color = color.Clamp()
			report.ClampedColors++
		}

		fixed := NewRecord(pose, color)
		if fixed.Rotation != r.Rotation || fixed.Color != r.Color {
			out[i] = fixed
			continue
		}
		out[i] = r
	}
	return Set{records: out}, report
}
