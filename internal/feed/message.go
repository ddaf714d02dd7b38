// Package feed adapts a stream of device messages to the anchor
// capabilities. Messages come from a JSON-lines replay script or a live
// websocket bridge running next to the AR runtime.
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/lighthouse/internal/anchor"
	"github.com/banshee-data/lighthouse/internal/geom"
)

// Message types.
const (
	TypeLighthouse = "lighthouse"
	TypeFrame      = "frame"
	TypePress      = "press"
)

// Message is one device event. Only the fields for its Type are set.
type Message struct {
	Type string `json:"type"`

	// lighthouse
	LighthouseID   string    `json:"lighthouse_id,omitempty"`
	Pose           *PoseData `json:"pose,omitempty"`
	Good           bool      `json:"good,omitempty"`
	LighthouseType string    `json:"lighthouse_type,omitempty"`

	// frame
	Camera *PoseData `json:"camera,omitempty"`
	Hit    *HitData  `json:"hit,omitempty"`
}

// Vec3Data is a vector on the wire.
type Vec3Data struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// QuatData is a quaternion on the wire, in x, y, z, w order.
type QuatData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// PoseData is a pose on the wire. A missing rotation is identity.
type PoseData struct {
	Position Vec3Data  `json:"position"`
	Rotation *QuatData `json:"rotation,omitempty"`
}

// HitData is a surface hit on the wire. A missing normal is straight up.
type HitData struct {
	Position Vec3Data  `json:"position"`
	Normal   *Vec3Data `json:"normal,omitempty"`
}

func (v Vec3Data) vec() geom.Vec3 {
	return geom.Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

func (p *PoseData) pose() geom.Pose {
	if p == nil {
		return geom.Pose{Rotation: geom.Identity()}
	}
	rot := geom.Identity()
	if p.Rotation != nil {
		rot = geom.Normalize(geom.Quat{Real: p.Rotation.W, Imag: p.Rotation.X, Jmag: p.Rotation.Y, Kmag: p.Rotation.Z})
	}
	return geom.Pose{Position: p.Position.vec(), Rotation: rot}
}

func (h *HitData) hit() anchor.SurfaceHit {
	n := geom.Up
	if h.Normal != nil {
		n = h.Normal.vec()
	}
	return anchor.SurfaceHit{Position: h.Position.vec(), Normal: n}
}

// Validate checks that the message type is known and that a lighthouse
// message names its lighthouse type correctly.
func (m Message) Validate() error {
	switch m.Type {
	case TypeLighthouse:
		if m.LighthouseID == "" {
			return fmt.Errorf("lighthouse message without lighthouse_id")
		}
		if m.LighthouseType != "" {
			if _, ok := anchor.ParseLighthouseType(m.LighthouseType); !ok {
				return fmt.Errorf("unknown lighthouse_type %q", m.LighthouseType)
			}
		}
	case TypeFrame:
		if m.Camera == nil {
			return fmt.Errorf("frame message without camera")
		}
	case TypePress:
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// CalibrationEvent converts a lighthouse message. The lighthouse type
// defaults to static.
func (m Message) CalibrationEvent() anchor.CalibrationEvent {
	lt := anchor.LighthouseStatic
	if m.LighthouseType != "" {
		lt, _ = anchor.ParseLighthouseType(m.LighthouseType)
	}
	return anchor.CalibrationEvent{
		LighthouseID: m.LighthouseID,
		Pose:         m.Pose.pose(),
		Good:         m.Good,
		Type:         lt,
	}
}

// DecodeMessage parses and validates one JSON message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
