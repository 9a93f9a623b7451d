// Package cloud defines the colored point cloud model shared by the
// synchronizer, the composition pipeline and the service clients.
package cloud

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/robobench/graspd/internal/shared/geom"
)

// Point is one colored point. RGB carries the packed color channel as
// received from the sensor; it is never interpreted here.
type Point struct {
	X, Y, Z float64
	RGB     float64
}

// Finite reports whether every component of the point is a real number.
func (p Point) Finite() bool {
	for _, v := range [4]float64{p.X, p.Y, p.Z, p.RGB} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Vec returns the position as an r3 vector.
func (p Point) Vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// Cloud is an ordered colored point cloud expressed in a named reference
// frame. Clouds are immutable once built; operations return new clouds.
type Cloud struct {
	Frame  string
	Stamp  time.Time
	Points []Point
}

// Extract builds a cloud from raw rows of (x, y, z, rgb), dropping any row
// with a non-finite component.
func Extract(rows [][4]float64, frame string, stamp time.Time) *Cloud {
	pts := make([]Point, 0, len(rows))
	for _, r := range rows {
		p := Point{X: r[0], Y: r[1], Z: r[2], RGB: r[3]}
		if p.Finite() {
			pts = append(pts, p)
		}
	}
	return &Cloud{Frame: frame, Stamp: stamp, Points: pts}
}

// Positions returns the point positions as N rows of (x, y, z), the layout
// the shape completion service consumes.
func (c *Cloud) Positions() [][3]float64 {
	out := make([][3]float64, len(c.Points))
	for i, p := range c.Points {
		out[i] = [3]float64{p.X, p.Y, p.Z}
	}
	return out
}

// Transformed returns a copy of the cloud with every position mapped through
// t and the frame id replaced.
func (c *Cloud) Transformed(t geom.Transform, frame string) *Cloud {
	pts := make([]Point, len(c.Points))
	for i, p := range c.Points {
		v := t.Apply(p.Vec())
		pts[i] = Point{X: v.X, Y: v.Y, Z: v.Z, RGB: p.RGB}
	}
	return &Cloud{Frame: frame, Stamp: c.Stamp, Points: pts}
}

// Append returns a new cloud holding c's points followed by other's points.
// Both clouds must already share c's reference frame.
func (c *Cloud) Append(other *Cloud) *Cloud {
	pts := make([]Point, 0, len(c.Points)+len(other.Points))
	pts = append(pts, c.Points...)
	pts = append(pts, other.Points...)
	return &Cloud{Frame: c.Frame, Stamp: c.Stamp, Points: pts}
}
