package lod

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

// RenderMode selects how instances are shaded.
type RenderMode uint32

const (
	RenderFlat RenderMode = iota
	RenderMeshlets
	RenderLOD
	renderModeCount
)

// Next cycles to the following mode.
func (m RenderMode) Next() RenderMode {
	return (m + 1) % renderModeCount
}

func (m RenderMode) String() string {
	switch m {
	case RenderFlat:
		return "Flat"
	case RenderMeshlets:
		return "Meshlets"
	case RenderLOD:
		return "LOD"
	default:
		return fmt.Sprintf("RenderMode(%d)", uint32(m))
	}
}

// Frustum holds the six clip planes (left, right, bottom, top, near, far) of
// a view-projection matrix. Each plane is normalized with xyz pointing inward.
type Frustum [6]mgl32.Vec4

// NewFrustum extracts the planes of an OpenGL-style view-projection matrix.
func NewFrustum(viewProj mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)
	f := Frustum{
		r3.Add(r0),
		r3.Sub(r0),
		r3.Add(r1),
		r3.Sub(r1),
		r3.Add(r2),
		r3.Sub(r2),
	}
	for i, p := range f {
		n := p.Vec3().Len()
		if n > 0 {
			f[i] = p.Mul(1 / n)
		}
	}
	return f
}

// ContainsSphere reports whether any part of s is inside the frustum.
func (f Frustum) ContainsSphere(s meshlet.Sphere) bool {
	for _, p := range f {
		if p.Vec3().Dot(s.Center)+p.W() < -s.Radius {
			return false
		}
	}
	return true
}

// SelectLevel picks a level for a sphere seen from eye. The level grows by one
// each time the sphere's projected size halves, starting from a sphere that
// fills the view. recipTanHalfFovy is 1/tan(fovy/2).
func SelectLevel(s meshlet.Sphere, eye mgl32.Vec3, recipTanHalfFovy float32, levels int) int {
	if levels <= 1 {
		return 0
	}
	dist := s.Center.Sub(eye).Len()
	if dist <= s.Radius {
		return 0
	}

	projected := s.Radius * recipTanHalfFovy / dist
	level := int(math32.Floor(-math32.Log2(projected)))
	return max(0, min(level, levels-1))
}
