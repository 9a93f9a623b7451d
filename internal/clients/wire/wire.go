// Package wire holds the JSON types shared by the external service clients.
package wire

import (
	"time"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robobench/graspd/internal/shared/cloud"
	"github.com/robobench/graspd/internal/shared/geom"
)

// Vec3 is a 3-vector on the wire.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a quaternion on the wire, x-y-z-w order.
type Quat struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a position plus orientation.
type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// FromTransform converts a transform to its wire pose.
func FromTransform(t geom.Transform) Pose {
	rot := t.Rotation()
	trans := t.Translation()
	return Pose{
		Position:    Vec3{X: trans.X, Y: trans.Y, Z: trans.Z},
		Orientation: Quat{X: rot.Imag, Y: rot.Jmag, Z: rot.Kmag, W: rot.Real},
	}
}

// Transform converts a wire pose to a transform, normalizing the orientation
// to absorb serialization drift.
func (p Pose) Transform() (geom.Transform, error) {
	return geom.Normalized(
		quat.Number{Real: p.Orientation.W, Imag: p.Orientation.X, Jmag: p.Orientation.Y, Kmag: p.Orientation.Z},
		r3.Vec{X: p.Position.X, Y: p.Position.Y, Z: p.Position.Z},
	)
}

// Cloud is a point cloud on the wire; points are rows of (x, y, z, rgb).
type Cloud struct {
	Frame  string       `json:"frame"`
	Stamp  float64      `json:"stamp"`
	Points [][4]float64 `json:"points"`
}

// FromCloud converts an internal cloud to its wire form.
func FromCloud(c *cloud.Cloud) Cloud {
	rows := make([][4]float64, len(c.Points))
	for i, p := range c.Points {
		rows[i] = [4]float64{p.X, p.Y, p.Z, p.RGB}
	}
	return Cloud{
		Frame:  c.Frame,
		Stamp:  Stamp(c.Stamp),
		Points: rows,
	}
}

// Stamp converts a capture time to the fractional unix seconds used on the
// wire.
func Stamp(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Time converts fractional unix seconds back to a capture time.
func Time(stamp float64) time.Time {
	return time.Unix(0, int64(stamp*float64(time.Second)))
}
