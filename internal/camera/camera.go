// Package camera provides the orbit camera used by the viewer.
package camera

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

const (
	// FovY is the vertical field of view in radians.
	FovY  = math32.Pi / 3
	Near  = 1
	Far   = 1000
	fitBy = 2.5
)

// OrbitCamera orbits around a center point.
type OrbitCamera struct {
	Center mgl32.Vec3

	// Spherical coordinates
	Distance float32
	Pitch    float32 // radians
	Yaw      float32 // radians

	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	DragSensitivity float32
	ZoomSensitivity float32
}

// NewOrbitCamera creates an orbit camera with default settings.
func NewOrbitCamera() *OrbitCamera {
	return &OrbitCamera{
		Distance:        10,
		Pitch:           0.3,
		MinDistance:     0.1,
		MaxDistance:     Far / 2,
		MinPitch:        -1.5,
		MaxPitch:        1.5,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() mgl32.Vec3 {
	sp, cp := math32.Sin(c.Pitch), math32.Cos(c.Pitch)
	sy, cy := math32.Sin(c.Yaw), math32.Cos(c.Yaw)
	return c.Center.Add(mgl32.Vec3{
		c.Distance * cp * sy,
		c.Distance * sp,
		c.Distance * cp * cy,
	})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), c.Center, mgl32.Vec3{0, 1, 0})
}

// HandleDrag updates rotation from a mouse drag delta.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32) {
	c.Yaw -= deltaX * c.DragSensitivity
	c.Pitch = mgl32.Clamp(c.Pitch+deltaY*c.DragSensitivity, c.MinPitch, c.MaxPitch)
}

// HandleZoom updates distance from a scroll wheel delta.
func (c *OrbitCamera) HandleZoom(delta float32) {
	c.Distance -= delta * c.Distance * c.ZoomSensitivity
	c.Distance = mgl32.Clamp(c.Distance, c.MinDistance, c.MaxDistance)
}

// HandleMovement pans the center point. Speed scales with distance.
func (c *OrbitCamera) HandleMovement(forward, right, up float32) {
	speed := c.Distance * 0.01
	sy, cy := math32.Sin(c.Yaw), math32.Cos(c.Yaw)

	c.Center[0] += (-sy*forward + cy*right) * speed
	c.Center[2] += (-cy*forward - sy*right) * speed
	c.Center[1] += up * speed
}

// FitSphere centers the camera on s at a distance that keeps it in view.
func (c *OrbitCamera) FitSphere(s meshlet.Sphere) {
	c.Center = s.Center
	c.Distance = mgl32.Clamp(s.Radius*fitBy, c.MinDistance, c.MaxDistance)
}

// Projection returns the perspective projection for the given aspect ratio.
func Projection(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(FovY, aspect, Near, Far)
}

// RecipTanHalfFovy is 1/tan(FovY/2), the factor that converts a view-space
// radius over distance into a fraction of the half screen height.
func RecipTanHalfFovy() float32 {
	return 1 / math32.Tan(FovY/2)
}
