package feed

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lighthouse/internal/anchor"
	"github.com/banshee-data/lighthouse/internal/geom"
)

// DefaultFieldOfView is the vertical field of view, in degrees, used to build
// viewport rays.
const DefaultFieldOfView = 60.0

// Device presents the most recent frame message as the camera and surface
// raycaster, and fans lighthouse and press messages out to subscribers.
type Device struct {
	fov    float64
	aspect float64

	camera geom.Pose
	hit    *anchor.SurfaceHit

	lighthouse []func(anchor.CalibrationEvent)
	press      []func()
}

// NewDevice returns a device with the camera at the origin looking down +Z.
func NewDevice() *Device {
	return &Device{
		fov:    DefaultFieldOfView,
		aspect: 1,
		camera: geom.Pose{Rotation: geom.Identity()},
	}
}

// OnLighthouseTracked subscribes to lighthouse messages.
func (d *Device) OnLighthouseTracked(fn func(anchor.CalibrationEvent)) {
	d.lighthouse = append(d.lighthouse, fn)
}

// OnPress subscribes to press messages.
func (d *Device) OnPress(fn func()) {
	d.press = append(d.press, fn)
}

// Pose returns the camera pose from the last frame.
func (d *Device) Pose() geom.Pose {
	return d.camera
}

// ViewportRay returns the ray from the camera through the viewport point
// (x, y), where (0.5, 0.5) is the centre of the view.
func (d *Device) ViewportRay(x, y float64) geom.Ray {
	half := math.Tan(d.fov * math.Pi / 360)
	right := geom.Rotate(d.camera.Rotation, geom.Vec3{X: 1})
	dir := d.camera.Forward()
	dir = r3.Add(dir, r3.Scale((2*x-1)*half*d.aspect, right))
	dir = r3.Add(dir, r3.Scale((2*y-1)*half, d.camera.Up()))
	return geom.Ray{Origin: d.camera.Position, Direction: r3.Unit(dir)}
}

// Raycast reports the surface hit from the last frame. The device bridge
// raycasts through the centre of the view, so the ray argument is not used.
func (d *Device) Raycast(geom.Ray) (anchor.SurfaceHit, bool) {
	if d.hit == nil {
		return anchor.SurfaceHit{}, false
	}
	return *d.hit, true
}

// Dispatch applies one message. Frame messages update the camera and hit
// and then call frame, if non-nil.
func (d *Device) Dispatch(m Message, frame func()) {
	switch m.Type {
	case TypeLighthouse:
		ev := m.CalibrationEvent()
		for _, fn := range d.lighthouse {
			fn(ev)
		}
	case TypeFrame:
		d.camera = m.Camera.pose()
		d.hit = nil
		if m.Hit != nil {
			h := m.Hit.hit()
			d.hit = &h
		}
		if frame != nil {
			frame()
		}
	case TypePress:
		for _, fn := range d.press {
			fn()
		}
	}
}
