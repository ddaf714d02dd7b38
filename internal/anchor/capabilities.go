package anchor

import (
	"github.com/banshee-data/lighthouse/internal/geom"
)

// LighthouseType distinguishes calibration markers.
type LighthouseType int

const (
	// LighthouseStatic is a printed marker registered with the domain; it
	// defines the shared frame.
	LighthouseStatic LighthouseType = iota
	// LighthouseDynamic is a marker shown on another device's screen.
	LighthouseDynamic
)

func (t LighthouseType) String() string {
	switch t {
	case LighthouseStatic:
		return "static"
	case LighthouseDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ParseLighthouseType maps "static" and "dynamic" to their LighthouseType.
func ParseLighthouseType(s string) (LighthouseType, bool) {
	switch s {
	case "static":
		return LighthouseStatic, true
	case "dynamic":
		return LighthouseDynamic, true
	}
	return 0, false
}

// CalibrationEvent is one lighthouse observation reported by the positioning
// SDK.
type CalibrationEvent struct {
	LighthouseID string
	Pose         geom.Pose
	// Good is the SDK's verdict that the observation is precise enough to
	// calibrate against.
	Good bool
	Type LighthouseType
}

// SurfaceHit is the nearest intersection of a ray with a detected surface.
type SurfaceHit struct {
	Position geom.Vec3
	Normal   geom.Vec3
}

// CalibrationSource delivers lighthouse observations.
type CalibrationSource interface {
	OnLighthouseTracked(func(CalibrationEvent))
}

// SurfaceRaycaster casts rays against detected real-world surfaces.
type SurfaceRaycaster interface {
	// Raycast returns the nearest hit, if any.
	Raycast(ray geom.Ray) (SurfaceHit, bool)
}

// Camera is the device camera.
type Camera interface {
	// Pose returns the camera pose in the calibrated frame.
	Pose() geom.Pose
	// ViewportRay returns the ray through the normalized viewport point
	// (0,0 bottom-left, 1,1 top-right).
	ViewportRay(x, y float64) geom.Ray
}

// Trigger is a user action with no payload, such as a button press.
type Trigger interface {
	OnPress(func())
}

// Scene receives the rendering side effects of the controller.
type Scene interface {
	SetCalibrationPromptVisible(visible bool)
	SetPreviewVisible(visible bool)
	SetPreviewPose(pose geom.Pose)
	Spawn(obj PlacedObject)
}

// NopScene discards every rendering call.
type NopScene struct{}

func (NopScene) SetCalibrationPromptVisible(bool) {}
func (NopScene) SetPreviewVisible(bool)           {}
func (NopScene) SetPreviewPose(geom.Pose)         {}
func (NopScene) Spawn(PlacedObject)               {}
