// Package geom holds the small amount of 3D geometry shared by genotypes,
// the builder and the physics world: poses, rotations and body shapes.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// unitTolerance is how far a length may drift from 1 and still count as unit.
// Renormalizing inside the tolerance would only shuffle the last bits.
const unitTolerance = 1e-12

// IdentityQuat is the rotation that does nothing.
var IdentityQuat = quat.Number{Real: 1}

// Pose is a rigid placement: rotate, then translate.
type Pose struct {
	Pos r3.Vec
	Rot quat.Number
}

// Identity returns the pose at the origin with no rotation.
func Identity() Pose {
	return Pose{Rot: IdentityQuat}
}

// At returns a pose at pos with no rotation.
func At(pos r3.Vec) Pose {
	return Pose{Pos: pos, Rot: IdentityQuat}
}

// Translation returns a pure translation.
func Translation(v r3.Vec) Pose {
	return Pose{Pos: v, Rot: IdentityQuat}
}

// Rotation returns a pure rotation.
func Rotation(q quat.Number) Pose {
	return Pose{Rot: q}
}

// Apply maps a point from the pose's local frame into the parent frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.Pos, Rotate(p.Rot, v))
}

// Compose returns p∘q: q expressed in p's frame.
func (p Pose) Compose(q Pose) Pose {
	return Pose{
		Pos: p.Apply(q.Pos),
		Rot: quat.Mul(p.Rot, q.Rot),
	}
}

// Inverse returns the pose that undoes p.
func (p Pose) Inverse() Pose {
	inv := quat.Conj(p.Rot)
	return Pose{
		Pos: Rotate(inv, r3.Scale(-1, p.Pos)),
		Rot: inv,
	}
}

// Finite reports whether every component of the pose is a finite number.
func (p Pose) Finite() bool {
	return FiniteVec(p.Pos) && !quat.IsNaN(p.Rot) && !quat.IsInf(p.Rot)
}

// Rotate applies the rotation q to v. q is assumed to be unit length.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// AxisAngle builds a unit quaternion rotating angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	if r3.Norm(axis) == 0 {
		return IdentityQuat
	}
	return quat.Number(r3.NewRotation(angle, axis))
}

// UnitQuat returns q scaled to unit length. Degenerate or non-finite input
// becomes the identity.
func UnitQuat(q quat.Number) quat.Number {
	if quat.IsNaN(q) || quat.IsInf(q) {
		return IdentityQuat
	}
	n := quat.Abs(q)
	if n == 0 {
		return IdentityQuat
	}
	if math.Abs(n-1) <= unitTolerance {
		return q
	}
	return quat.Scale(1/n, q)
}

// UnitVec returns v scaled to unit length, or fallback when v is degenerate.
func UnitVec(v, fallback r3.Vec) r3.Vec {
	if !FiniteVec(v) {
		return fallback
	}
	n := r3.Norm(v)
	if n < 1e-9 {
		return fallback
	}
	if math.Abs(n-1) <= unitTolerance {
		return v
	}
	return r3.Scale(1/n, v)
}

// Orthogonalize removes the component of v along the unit vector n.
func Orthogonalize(v, n r3.Vec) r3.Vec {
	d := r3.Dot(v, n)
	if math.Abs(d) <= unitTolerance {
		return v
	}
	return r3.Sub(v, r3.Scale(d, n))
}

// Perpendicular returns some unit vector perpendicular to the unit vector n.
func Perpendicular(n r3.Vec) r3.Vec {
	basis := r3.Vec{X: 1}
	if math.Abs(n.X) > math.Abs(n.Y) && math.Abs(n.X) > math.Abs(n.Z) {
		basis = r3.Vec{Y: 1}
	}
	return r3.Unit(r3.Cross(n, basis))
}

// Mirror reflects v across the YZ plane when reflect is negative.
func Mirror(v r3.Vec, reflect int) r3.Vec {
	if reflect < 0 {
		v.X = -v.X
	}
	return v
}

// FiniteVec reports whether all components of v are finite.
func FiniteVec(v r3.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// Clamp limits v to [lo, hi]. NaN becomes lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
