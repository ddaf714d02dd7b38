// Package anchor places cubes in the lighthouse-calibrated frame.
//
// The Controller is driven from one goroutine: the host delivers calibration
// events, trigger presses and per-frame Update calls in order, and the
// controller holds no locks.
package anchor

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lighthouse/internal/geom"
	"github.com/banshee-data/lighthouse/internal/monitoring"
	"github.com/banshee-data/lighthouse/internal/placement"
)

// DefaultCubeSize is the edge length of a placed cube, in metres.
const DefaultCubeSize = 0.1

// ErrNotCalibrated is returned by Place before a good static lighthouse has
// been seen.
var ErrNotCalibrated = errors.New("anchor: not calibrated")

// ErrInvalidPose is returned by Place when the preview pose cannot be saved,
// such as a surface hit beyond binary32 range or one carrying NaN.
var ErrInvalidPose = errors.New("anchor: invalid pose")

var logf = monitoring.Component("anchor")

// Persistence loads and saves the whole placement set.
type Persistence interface {
	Load() (placement.Set, error)
	Save(placement.Set) error
}

// PlacedObject is one cube in the scene.
type PlacedObject struct {
	ID    uuid.UUID
	Pose  geom.Pose
	Color geom.RGBA
	// Persistent objects are part of the saved placement set.
	Persistent bool
}

// Session is the state of one calibrated run of the app.
type Session struct {
	Calibrated   bool
	CalibratedBy string // lighthouse ID
	// LoadErr is the error from loading saved placements, if any. The
	// session continues with an empty set when it is non-nil.
	LoadErr    error
	Placements placement.Set
	Preview    geom.Pose
	Objects    []PlacedObject
}

// Deps are the collaborators a Controller needs. Calibration and Trigger are
// optional; without them the host calls HandleCalibration and Place directly.
type Deps struct {
	Calibration CalibrationSource
	Raycaster   SurfaceRaycaster
	Camera      Camera
	Trigger     Trigger
	Scene       Scene
	Store       Persistence
}

// Options tune a Controller. Zero values pick defaults.
type Options struct {
	// CubeSize is the cube edge length in metres.
	CubeSize float64
	// Rand drives colour selection.
	Rand *rand.Rand
	// NewID generates object IDs.
	NewID func() uuid.UUID
}

// Controller owns a Session and applies calibration, frame and trigger events
// to it.
type Controller struct {
	raycaster SurfaceRaycaster
	camera    Camera
	scene     Scene
	store     Persistence

	cubeSize float64
	rng      *rand.Rand
	newID    func() uuid.UUID

	session Session
}

// New builds a Controller and subscribes it to the calibration source and
// trigger, if given. The calibration prompt is shown and the preview hidden
// until calibration succeeds.
func New(deps Deps, opts Options) (*Controller, error) {
	if deps.Raycaster == nil {
		return nil, fmt.Errorf("anchor: raycaster is required")
	}
	if deps.Camera == nil {
		return nil, fmt.Errorf("anchor: camera is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("anchor: store is required")
	}
	if deps.Scene == nil {
		deps.Scene = NopScene{}
	}
	if opts.CubeSize <= 0 {
		opts.CubeSize = DefaultCubeSize
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}

	c := &Controller{
		raycaster: deps.Raycaster,
		camera:    deps.Camera,
		scene:     deps.Scene,
		store:     deps.Store,
		cubeSize:  opts.CubeSize,
		rng:       opts.Rand,
		newID:     opts.NewID,
		session:   Session{Preview: geom.Pose{Rotation: geom.Identity()}},
	}

	c.scene.SetCalibrationPromptVisible(true)
	c.scene.SetPreviewVisible(false)

	if deps.Calibration != nil {
		deps.Calibration.OnLighthouseTracked(c.HandleCalibration)
	}
	if deps.Trigger != nil {
		deps.Trigger.OnPress(c.handlePress)
	}
	return c, nil
}

// Session returns a copy of the current session state.
func (c *Controller) Session() Session {
	s := c.session
	s.Objects = append([]PlacedObject(nil), c.session.Objects...)
	s.Placements = placement.NewSet(c.session.Placements.Records()...)
	return s
}

// CubeSize returns the cube edge length in metres.
func (c *Controller) CubeSize() float64 {
	return c.cubeSize
}

// HandleCalibration calibrates the session on the first good observation of
// a static lighthouse. Later events, poor observations and dynamic
// lighthouses are ignored. On calibration the saved placements are loaded
// and respawned.
func (c *Controller) HandleCalibration(ev CalibrationEvent) {
	if !ev.Good || ev.Type != LighthouseStatic {
		return
	}
	if c.session.Calibrated {
		return
	}

	c.session.Calibrated = true
	c.session.CalibratedBy = ev.LighthouseID
	c.scene.SetCalibrationPromptVisible(false)
	c.scene.SetPreviewVisible(true)
	logf("calibrated against lighthouse %q", ev.LighthouseID)

	set, err := c.store.Load()
	if err != nil {
		c.session.LoadErr = err
		logf("starting with no placements: %v", err)
		return
	}
	c.session.Placements = set
	for _, r := range set.Records() {
		c.spawn(r.Pose(), r.RGBA())
	}
	logf("restored %d placements", set.Len())
}

// Update runs once per frame. It casts a ray through the centre of the view
// and, on a surface hit, moves the preview onto the surface. Without a hit the
// preview keeps its previous pose. Reports whether the preview moved.
func (c *Controller) Update() bool {
	ray := c.camera.ViewportRay(0.5, 0.5)
	hit, ok := c.raycaster.Raycast(ray)
	if !ok {
		return false
	}
	c.session.Preview = ComputePlacement(c.camera.Pose().Rotation, hit, c.cubeSize)
	c.scene.SetPreviewPose(c.session.Preview)
	return true
}

// ComputePlacement returns the pose of a cube of edge size resting on hit:
// lifted half its size along the surface normal and turned to the camera's
// heading with no pitch or roll.
func ComputePlacement(cameraRotation geom.Quat, hit SurfaceHit, size float64) geom.Pose {
	normal := hit.Normal
	if r3.Norm(normal) == 0 {
		normal = geom.Up
	}
	offset := r3.Scale(size/2, r3.Unit(normal))
	return geom.Pose{
		Position: r3.Add(hit.Position, offset),
		Rotation: geom.YawRotation(geom.Yaw(cameraRotation)),
	}
}

// Place duplicates the preview with a random opaque colour, appends it to the
// placement set and saves the whole set. If saving fails the cube stays in the
// session and is included in the next successful save. A preview that cannot
// be stored is rejected with ErrInvalidPose before anything is spawned.
func (c *Controller) Place() (PlacedObject, error) {
	if !c.session.Calibrated {
		return PlacedObject{}, ErrNotCalibrated
	}

	pose := c.session.Preview
	color := geom.RandomOpaqueHSV(c.rng)
	if !placement.Representable(pose, color) {
		p := pose.Position
		return PlacedObject{}, fmt.Errorf("%w: position (%g, %g, %g)", ErrInvalidPose, p.X, p.Y, p.Z)
	}
	obj := c.spawn(pose, color)
	c.session.Placements.Append(placement.NewRecord(obj.Pose, obj.Color))

	if err := c.store.Save(c.session.Placements); err != nil {
		return obj, fmt.Errorf("anchor: persist placement: %w", err)
	}
	return obj, nil
}

func (c *Controller) handlePress() {
	obj, err := c.Place()
	if err != nil {
		logf("place: %v", err)
		return
	}
	logf("placed %s at (%.3f, %.3f, %.3f)", obj.ID, obj.Pose.Position.X, obj.Pose.Position.Y, obj.Pose.Position.Z)
}

func (c *Controller) spawn(pose geom.Pose, color geom.RGBA) PlacedObject {
	obj := PlacedObject{
		ID:         c.newID(),
		Pose:       pose,
		Color:      color,
		Persistent: true,
	}
	c.scene.Spawn(obj)
	c.session.Objects = append(c.session.Objects, obj)
	return obj
}
