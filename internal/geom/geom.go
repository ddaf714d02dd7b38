// Package geom holds the runtime geometry used by the placement controller.
//
// Vectors and quaternions are gonum types so callers can use the r3 and quat
// helpers directly. The frame is Y-up; Euler angles follow the Z, X, Y
// application order used by the host engine (roll first, yaw last).
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or direction in world space, in metres.
type Vec3 = r3.Vec

// Quat is an orientation. Real is w; Imag, Jmag and Kmag are x, y and z.
type Quat = quat.Number

var (
	// Up is the world up axis.
	Up = Vec3{X: 0, Y: 1, Z: 0}
	// Forward is the local forward axis.
	Forward = Vec3{X: 0, Y: 0, Z: 1}
)

// Identity returns the identity rotation.
func Identity() Quat {
	return Quat{Real: 1}
}

// Pose is a position and orientation.
type Pose struct {
	Position Vec3
	Rotation Quat
}

// Up returns the pose's local up axis in world space.
func (p Pose) Up() Vec3 {
	return Rotate(p.Rotation, Up)
}

// Forward returns the pose's local forward axis in world space.
func (p Pose) Forward() Vec3 {
	return Rotate(p.Rotation, Forward)
}

// Ray is a half-line from Origin along Direction.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// Rotate applies q to v. q is normalized first.
func Rotate(q Quat, v Vec3) Vec3 {
	return r3.Rotation(Normalize(q)).Rotate(v)
}

// Normalize returns q scaled to unit length. A zero (or non-finite) quaternion
// has no orientation and maps to the identity.
func Normalize(q Quat) Quat {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity()
	}
	return quat.Scale(1/n, q)
}

// IsUnit reports whether |q| is within tol of 1.
func IsUnit(q Quat, tol float64) bool {
	return math.Abs(quat.Abs(q)-1) <= tol
}

// YawRotation returns a rotation of deg degrees about the world up axis, with
// no pitch or roll.
func YawRotation(deg float64) Quat {
	return Quat(r3.NewRotation(deg*math.Pi/180, Up))
}

// Yaw returns the heading of q about the up axis in degrees, in [0, 360).
func Yaw(q Quat) float64 {
	_, yaw, _ := EulerAngles(q)
	return yaw
}

// EulerAngles decomposes q into pitch (about X), yaw (about Y) and roll
// (about Z), in degrees, each wrapped to [0, 360).
func EulerAngles(q Quat) (pitch, yaw, roll float64) {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinPitch := 2 * (w*x - y*z)
	sinPitch = math.Max(-1, math.Min(1, sinPitch))
	pitch = math.Asin(sinPitch)

	if math.Abs(sinPitch) > 1-1e-9 {
		// Gimbal lock: yaw and roll share an axis, fold everything into yaw.
		yaw = 2 * math.Atan2(y, w)
		roll = 0
	} else {
		yaw = math.Atan2(2*(w*y+x*z), 1-2*(x*x+y*y))
		roll = math.Atan2(2*(w*z+x*y), 1-2*(x*x+z*z))
	}
	return wrapDegrees(pitch * 180 / math.Pi), wrapDegrees(yaw * 180 / math.Pi), wrapDegrees(roll * 180 / math.Pi)
}

// wrapDegrees maps any angle to [0, 360).
func wrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// AngleDelta returns the smallest absolute difference between two headings
// in degrees, in [0, 180].
func AngleDelta(a, b float64) float64 {
	d := math.Abs(wrapDegrees(a) - wrapDegrees(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}
