package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ShapeKind enumerates the supported body primitives.
type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeSphere
	ShapeCapsule
	numShapeKinds
)

// String returns the text-format tag for the kind.
func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "BOX"
	case ShapeSphere:
		return "SPHERE"
	case ShapeCapsule:
		return "CAPSULE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether k is a supported kind.
func (k ShapeKind) Valid() bool {
	return k >= 0 && k < numShapeKinds
}

// Shape describes a body primitive in its own frame, centered on the origin.
//
// Box uses Size as half extents. Sphere uses Radius. Capsule is a segment
// from -Length to +Length along Y swept by Radius.
type Shape struct {
	Kind   ShapeKind
	Size   r3.Vec
	Radius float64
	Length float64
}

// Box returns a box with the given half extents.
func Box(x, y, z float64) Shape {
	return Shape{Kind: ShapeBox, Size: r3.Vec{X: x, Y: y, Z: z}}
}

// Sphere returns a sphere of radius r.
func Sphere(r float64) Shape {
	return Shape{Kind: ShapeSphere, Radius: r}
}

// Capsule returns a capsule with half length l and radius r.
func Capsule(l, r float64) Shape {
	return Shape{Kind: ShapeCapsule, Length: l, Radius: r}
}

// Scaled returns s uniformly scaled by f.
func (s Shape) Scaled(f float64) Shape {
	s.Size = r3.Scale(f, s.Size)
	s.Radius *= f
	s.Length *= f
	return s
}

// Valid reports whether the dimensions used by the kind are positive and finite.
func (s Shape) Valid() bool {
	switch s.Kind {
	case ShapeBox:
		return FiniteVec(s.Size) && s.Size.X > 0 && s.Size.Y > 0 && s.Size.Z > 0
	case ShapeSphere:
		return finite(s.Radius) && s.Radius > 0
	case ShapeCapsule:
		return finite(s.Radius) && finite(s.Length) && s.Radius > 0 && s.Length > 0
	}
	return false
}

// Volume returns the enclosed volume.
func (s Shape) Volume() float64 {
	switch s.Kind {
	case ShapeBox:
		return 8 * s.Size.X * s.Size.Y * s.Size.Z
	case ShapeSphere:
		return 4.0 / 3.0 * math.Pi * s.Radius * s.Radius * s.Radius
	case ShapeCapsule:
		r := s.Radius
		return math.Pi*r*r*2*s.Length + 4.0/3.0*math.Pi*r*r*r
	}
	return 0
}

// Support returns the furthest extent of the shape along the local unit direction d.
func (s Shape) Support(d r3.Vec) float64 {
	switch s.Kind {
	case ShapeBox:
		return math.Abs(d.X)*s.Size.X + math.Abs(d.Y)*s.Size.Y + math.Abs(d.Z)*s.Size.Z
	case ShapeSphere:
		return s.Radius * r3.Norm(d)
	case ShapeCapsule:
		return s.Radius*r3.Norm(d) + s.Length*math.Abs(d.Y)
	}
	return 0
}

// ClosestSurfacePoint projects p onto the surface of the shape.
//
// Boxes clamp per axis and then snap the dominant axis onto its face, so the
// result always lies on a face even for interior points. Spheres and capsules
// push the point radially out to the surface.
func (s Shape) ClosestSurfacePoint(p r3.Vec) r3.Vec {
	if !FiniteVec(p) {
		p = r3.Vec{}
	}
	switch s.Kind {
	case ShapeSphere:
		return radial(p, r3.Vec{}, s.Radius)
	case ShapeCapsule:
		c := r3.Vec{Y: Clamp(p.Y, -s.Length, s.Length)}
		return radial(p, c, s.Radius)
	default:
		q := r3.Vec{
			X: Clamp(p.X, -s.Size.X, s.Size.X),
			Y: Clamp(p.Y, -s.Size.Y, s.Size.Y),
			Z: Clamp(p.Z, -s.Size.Z, s.Size.Z),
		}
		switch s.dominantAxis(q) {
		case 0:
			q.X = signOf(q.X) * s.Size.X
		case 1:
			q.Y = signOf(q.Y) * s.Size.Y
		default:
			q.Z = signOf(q.Z) * s.Size.Z
		}
		return q
	}
}

// SurfaceNormal returns the outward unit normal at a surface point p.
func (s Shape) SurfaceNormal(p r3.Vec) r3.Vec {
	switch s.Kind {
	case ShapeSphere:
		return UnitVec(p, r3.Vec{X: 1})
	case ShapeCapsule:
		c := r3.Vec{Y: Clamp(p.Y, -s.Length, s.Length)}
		return UnitVec(r3.Sub(p, c), r3.Vec{X: 1})
	default:
		switch s.dominantAxis(p) {
		case 0:
			return r3.Vec{X: signOf(p.X)}
		case 1:
			return r3.Vec{Y: signOf(p.Y)}
		default:
			return r3.Vec{Z: signOf(p.Z)}
		}
	}
}

// FaceTangent returns the canonical tangent used when no usable axis was
// requested: for box faces the next coordinate axis, otherwise any
// perpendicular of the normal.
func (s Shape) FaceTangent(p r3.Vec) r3.Vec {
	if s.Kind == ShapeBox {
		switch s.dominantAxis(p) {
		case 0:
			return r3.Vec{Y: 1}
		case 1:
			return r3.Vec{Z: 1}
		default:
			return r3.Vec{X: 1}
		}
	}
	return Perpendicular(s.SurfaceNormal(p))
}

// dominantAxis returns the box axis whose face is closest to p relative to
// the box size. Ties go to the lowest axis.
func (s Shape) dominantAxis(p r3.Vec) int {
	rx := math.Abs(p.X) / s.Size.X
	ry := math.Abs(p.Y) / s.Size.Y
	rz := math.Abs(p.Z) / s.Size.Z
	axis, best := 0, rx
	if ry > best {
		axis, best = 1, ry
	}
	if rz > best {
		axis = 2
	}
	return axis
}

// radial pushes p away from the center c to distance r.
func radial(p, c r3.Vec, r float64) r3.Vec {
	d := r3.Sub(p, c)
	n := r3.Norm(d)
	if n == 0 {
		return r3.Add(c, r3.Vec{X: r})
	}
	if math.Abs(n-r) <= unitTolerance*r {
		return p
	}
	return r3.Add(c, r3.Scale(r/n, d))
}

func signOf(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
