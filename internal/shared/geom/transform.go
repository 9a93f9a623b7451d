// Package geom provides rigid-body transform algebra for the grasp pipeline.
//
// A Transform is a rotation (unit quaternion) plus a translation, i.e. an
// element of SE(3). Points are mapped as p' = R*p + t. Transforms compose by
// matrix rules: Compose(A, B) applies B first, then A.
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// UnitTolerance is the maximum deviation from 1 accepted for the norm of a
// rotation quaternion at construction time.
const UnitTolerance = 1e-6

// Transform is a rigid-body transform: rotation followed by translation.
// The zero value is not valid; use Identity or New.
type Transform struct {
	rot   quat.Number
	trans r3.Vec
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{rot: quat.Number{Real: 1}}
}

// New builds a transform from a rotation quaternion and a translation.
// The rotation must be unit within UnitTolerance.
func New(rot quat.Number, trans r3.Vec) (Transform, error) {
	if math.Abs(quat.Abs(rot)-1) > UnitTolerance {
		return Transform{}, fmt.Errorf("geom: rotation is not a unit quaternion (norm %v)", quat.Abs(rot))
	}
	return Transform{rot: rot, trans: trans}, nil
}

// FromPose builds a transform from wire-format pose components
// (quaternion x, y, z, w and translation x, y, z).
func FromPose(qx, qy, qz, qw, tx, ty, tz float64) (Transform, error) {
	return New(quat.Number{Real: qw, Imag: qx, Jmag: qy, Kmag: qz}, r3.Vec{X: tx, Y: ty, Z: tz})
}

// Normalized builds a transform from an arbitrary non-zero quaternion,
// normalizing it first. Useful for poses that arrive with accumulated
// floating point drift.
func Normalized(rot quat.Number, trans r3.Vec) (Transform, error) {
	n := quat.Abs(rot)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Transform{}, fmt.Errorf("geom: rotation quaternion cannot be normalized (norm %v)", n)
	}
	return Transform{rot: quat.Scale(1/n, rot), trans: trans}, nil
}

// Rotation returns the rotation component.
func (t Transform) Rotation() quat.Number { return t.rot }

// Translation returns the translation component.
func (t Transform) Translation() r3.Vec { return t.trans }

// Apply maps a point through the transform.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(r3.Rotation(t.rot).Rotate(p), t.trans)
}

// Compose returns the transform that applies b first, then a.
func Compose(a, b Transform) Transform {
	return Transform{
		rot:   quat.Mul(a.rot, b.rot),
		trans: a.Apply(b.trans),
	}
}

// Invert returns the inverse transform. Valid rotations are never singular,
// so inversion cannot fail.
func Invert(t Transform) Transform {
	inv := quat.Conj(t.rot)
	return Transform{
		rot:   inv,
		trans: r3.Scale(-1, r3.Rotation(inv).Rotate(t.trans)),
	}
}

// Affine returns the transform as a row-major 4x4 affine matrix.
func (t Transform) Affine() [4][4]float64 {
	w, x, y, z := t.rot.Real, t.rot.Imag, t.rot.Jmag, t.rot.Kmag
	return [4][4]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w), t.trans.X},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w), t.trans.Y},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y), t.trans.Z},
		{0, 0, 0, 1},
	}
}

// FromAffine builds a transform from a row-major 4x4 affine matrix whose
// upper-left block is a rotation. The quaternion is recovered with the
// largest-pivot variant of Shepperd's method and renormalized.
func FromAffine(m [4][4]float64) (Transform, error) {
	trace := m[0][0] + m[1][1] + m[2][2]
	var q quat.Number
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(1+trace)
		q = quat.Number{
			Real: s / 4,
			Imag: (m[2][1] - m[1][2]) / s,
			Jmag: (m[0][2] - m[2][0]) / s,
			Kmag: (m[1][0] - m[0][1]) / s,
		}
	case m[0][0] > m[1][1] && m[0][0] > m[2][2]:
		s := 2 * math.Sqrt(1+m[0][0]-m[1][1]-m[2][2])
		q = quat.Number{
			Real: (m[2][1] - m[1][2]) / s,
			Imag: s / 4,
			Jmag: (m[0][1] + m[1][0]) / s,
			Kmag: (m[0][2] + m[2][0]) / s,
		}
	case m[1][1] > m[2][2]:
		s := 2 * math.Sqrt(1+m[1][1]-m[0][0]-m[2][2])
		q = quat.Number{
			Real: (m[0][2] - m[2][0]) / s,
			Imag: (m[0][1] + m[1][0]) / s,
			Jmag: s / 4,
			Kmag: (m[1][2] + m[2][1]) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m[2][2]-m[0][0]-m[1][1])
		q = quat.Number{
			Real: (m[1][0] - m[0][1]) / s,
			Imag: (m[0][2] + m[2][0]) / s,
			Jmag: (m[1][2] + m[2][1]) / s,
			Kmag: s / 4,
		}
	}
	return Normalized(q, r3.Vec{X: m[0][3], Y: m[1][3], Z: m[2][3]})
}
