package camera

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

func TestPosition(t *testing.T) {
	tests := []struct {
		name  string
		pitch float32
		yaw   float32
		want  mgl32.Vec3
	}{
		{"front", 0, 0, mgl32.Vec3{0, 0, 10}},
		{"right", 0, math32.Pi / 2, mgl32.Vec3{10, 0, 0}},
		{"above", math32.Pi / 2, 0, mgl32.Vec3{0, 10, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOrbitCamera()
			c.Center = mgl32.Vec3{1, 2, 3}
			c.Pitch, c.Yaw = tt.pitch, tt.yaw

			want := tt.want.Add(c.Center)
			got := c.Position()
			if got.Sub(want).Len() >= 1e-4 {
				t.Errorf("Position() = %v, want %v", got, want)
			}
		})
	}
}

func TestViewMatrixLooksAtCenter(t *testing.T) {
	c := NewOrbitCamera()
	c.Center = mgl32.Vec3{5, 0, 0}
	c.Yaw = 0.7

	// The center lands on the view axis at -Distance.
	got := c.ViewMatrix().Mul4x1(c.Center.Vec4(1)).Vec3()
	assert.Less(t, got.Sub(mgl32.Vec3{0, 0, -c.Distance}).Len(), float32(1e-4), "%v", got)
}

func TestHandleDragClampsPitch(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleDrag(0, 1e6)
	assert.Equal(t, c.MaxPitch, c.Pitch)
	c.HandleDrag(0, -1e6)
	assert.Equal(t, c.MinPitch, c.Pitch)

	c.HandleDrag(100, 0)
	assert.InDelta(t, -0.5, c.Yaw, 1e-6)
}

func TestHandleZoom(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleZoom(1)
	assert.InDelta(t, 9, c.Distance, 1e-5)

	for range 1000 {
		c.HandleZoom(5)
	}
	assert.Equal(t, c.MinDistance, c.Distance)
}

func TestHandleMovement(t *testing.T) {
	c := NewOrbitCamera()
	c.HandleMovement(1, 0, 0)

	// With zero yaw the camera sits on +z, so forward moves toward -z.
	assert.InDelta(t, -0.1, c.Center.Z(), 1e-5)
	assert.InDelta(t, 0, c.Center.X(), 1e-5)
}

func TestFitSphere(t *testing.T) {
	c := NewOrbitCamera()
	c.FitSphere(meshlet.Sphere{Center: mgl32.Vec3{1, 1, 1}, Radius: 4})
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, c.Center)
	assert.InDelta(t, 10, c.Distance, 1e-5)
}

func TestRecipTanHalfFovy(t *testing.T) {
	// tan(30 degrees) = 1/sqrt(3)
	assert.InDelta(t, math32.Sqrt(3), RecipTanHalfFovy(), 1e-5)
}
