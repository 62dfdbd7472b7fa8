package lod

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

// MaxGridLevel bounds InstanceGrid at (2*10+1)^3 = 9261 instances.
const MaxGridLevel = 10

// InstancePadding is the gap between neighbouring instances, as a fraction
// of the model radius.
const InstancePadding = 0.5

// Instance is the per-instance record read by the amplification shader.
type Instance struct {
	World             mgl32.Mat4
	WorldInvTranspose mgl32.Mat4
	BoundingSphere    mgl32.Vec4 // xyz = center, w = radius
}

// GridWidth returns the number of instances along each axis at level.
func GridWidth(level uint32) uint32 {
	return 2*level + 1
}

// InstanceCount returns the number of instances InstanceGrid produces.
func InstanceCount(level uint32) uint32 {
	w := GridWidth(level)
	return w * w * w
}

// InstanceGrid lays out a cube of GridWidth(level)^3 instances centered on the
// origin, spaced (1+InstancePadding)*radius apart.
func InstanceGrid(level uint32, radius float32) []Instance {
	width := GridWidth(level)
	spacing := (1 + InstancePadding) * radius
	extents := spacing * float32(level)

	out := make([]Instance, InstanceCount(level))
	for i := range out {
		n := uint32(i)
		index := mgl32.Vec3{
			float32(n % width),
			float32((n / width) % width),
			float32(n / (width * width)),
		}
		location := index.Mul(spacing).Sub(mgl32.Vec3{extents, extents, extents})

		world := mgl32.Translate3D(location.X(), location.Y(), location.Z())
		out[i] = Instance{
			World:             world,
			WorldInvTranspose: world.Inv().Transpose(),
			BoundingSphere:    location.Vec4(radius),
		}
	}
	return out
}

// Sphere returns the instance bounds.
func (in Instance) Sphere() meshlet.Sphere {
	return meshlet.Sphere{Center: in.BoundingSphere.Vec3(), Radius: in.BoundingSphere.W()}
}
