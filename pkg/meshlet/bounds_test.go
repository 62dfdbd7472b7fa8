package meshlet

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sphereEps = 1e-4

func randomPoints(rng *rand.Rand, n int, scale float32) []mgl32.Vec3 {
	points := make([]mgl32.Vec3, n)
	for i := range points {
		points[i] = mgl32.Vec3{
			(rng.Float32()*2 - 1) * scale,
			(rng.Float32()*2 - 1) * scale,
			(rng.Float32()*2 - 1) * scale,
		}
	}
	return points
}

func TestSphereFromPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for _, n := range []int{1, 2, 3, 17, 500} {
		points := randomPoints(rng, n, 50)
		s := SphereFromPoints(points)
		for i, p := range points {
			if !s.ContainsPoint(p, sphereEps*50) {
				t.Fatalf("n=%d: point %d %v outside sphere %+v", n, i, p, s)
			}
		}
	}
}

func TestSphereFromPointsDegenerate(t *testing.T) {
	assert.Equal(t, Sphere{}, SphereFromPoints(nil))

	s := SphereFromPoints([]mgl32.Vec3{{1, 2, 3}})
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, s.Center)
	assert.Zero(t, s.Radius)

	s = SphereFromPoints([]mgl32.Vec3{{0, 0, 0}, {2, 0, 0}})
	assert.InDelta(t, 1, s.Radius, sphereEps)
	assert.Less(t, s.Center.Sub(mgl32.Vec3{1, 0, 0}).Len(), float32(sphereEps))
}

func TestMergeSpheres(t *testing.T) {
	tests := []struct {
		name string
		a, b Sphere
		want Sphere
	}{
		{
			name: "disjoint",
			a:    Sphere{Center: mgl32.Vec3{-2, 0, 0}, Radius: 1},
			b:    Sphere{Center: mgl32.Vec3{2, 0, 0}, Radius: 1},
			want: Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 3},
		},
		{
			name: "b inside a",
			a:    Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 5},
			b:    Sphere{Center: mgl32.Vec3{1, 1, 0}, Radius: 1},
			want: Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 5},
		},
		{
			name: "a inside b",
			a:    Sphere{Center: mgl32.Vec3{0, 1, 0}, Radius: 0.5},
			b:    Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 4},
			want: Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 4},
		},
		{
			name: "same center",
			a:    Sphere{Center: mgl32.Vec3{3, 3, 3}, Radius: 2},
			b:    Sphere{Center: mgl32.Vec3{3, 3, 3}, Radius: 2},
			want: Sphere{Center: mgl32.Vec3{3, 3, 3}, Radius: 2},
		},
		{
			name: "unequal radii",
			a:    Sphere{Center: mgl32.Vec3{0, 0, 0}, Radius: 1},
			b:    Sphere{Center: mgl32.Vec3{0, 0, 4}, Radius: 3},
			want: Sphere{Center: mgl32.Vec3{0, 0, 3}, Radius: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeSpheres(tt.a, tt.b)
			assert.InDelta(t, tt.want.Radius, got.Radius, sphereEps)
			assert.True(t, got.Center.Sub(tt.want.Center).Len() < sphereEps,
				"center = %v, want %v", got.Center, tt.want.Center)
			assert.True(t, got.ContainsSphere(tt.a, sphereEps))
			assert.True(t, got.ContainsSphere(tt.b, sphereEps))
		})
	}
}

func TestMergeSpheresRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		c := randomPoints(rng, 2, 100)
		a := Sphere{Center: c[0], Radius: rng.Float32() * 30}
		b := Sphere{Center: c[1], Radius: rng.Float32() * 30}
		m := MergeSpheres(a, b)
		if !m.ContainsSphere(a, 1e-3) || !m.ContainsSphere(b, 1e-3) {
			t.Fatalf("merge of %+v and %+v = %+v does not contain both", a, b, m)
		}
		if m.Radius > a.Radius+b.Radius+a.Center.Sub(b.Center).Len()+1e-3 {
			t.Fatalf("merged radius %v larger than necessary", m.Radius)
		}
	}
}

func TestComputeBoundingSphere(t *testing.T) {
	m, err := assemble(t, triangleContainer(t), 0)
	require.NoError(t, err)

	s, err := ComputeBoundingSphere(m)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, s.Radius+sphereEps, float32(1))
	assert.True(t, s.ContainsPoint(mgl32.Vec3{0, 0, 0}, sphereEps))
	assert.True(t, s.ContainsPoint(mgl32.Vec3{2, 0, 0}, sphereEps))
}

func TestComputeBoundingSphereOffsetPosition(t *testing.T) {
	// A layout whose first element in slot 0 is not POSITION.
	data := f32bytes(
		9, 9, 9, -1, 0, 0,
		9, 9, 9, 1, 0, 0,
		9, 9, 9, 0, 5, 0,
	)
	arena := NewArena(data)
	region, err := arena.Region(0, uint32(len(data)))
	require.NoError(t, err)

	m := &Mesh{
		Layout: []InputElement{
			{SemanticName: SemanticNormal, Format: FormatR32G32B32Float, InputSlot: 0},
			{SemanticName: SemanticPosition, Format: FormatR32G32B32Float, InputSlot: 0},
		},
		VertexViews:   []Region{region},
		VertexStrides: []uint32{24},
		VertexCount:   3,
	}

	points, err := m.Positions()
	require.NoError(t, err)
	assert.Equal(t, []mgl32.Vec3{{-1, 0, 0}, {1, 0, 0}, {0, 5, 0}}, points)

	m.VertexCount = 4
	_, err = m.Positions()
	assert.ErrorIs(t, err, ErrRangeOverflow)

	m.VertexCount = 3
	arena.Release()
	_, err = m.Positions()
	assert.ErrorIs(t, err, ErrReleased)
}

func TestComputeBoundingSphereMissingPosition(t *testing.T) {
	b := NewContainerBuilder()
	h := addTopology(t, b, triangleParts())
	view := b.AddBufferView(f32bytes(0, 0, 1, 0, 0, 1))
	h.Attributes[AttributeNormal] = Some(b.AddAccessor(Accessor{BufferView: view, Size: 24, Stride: 12, Count: 2}))
	b.AddMesh(h)

	m, err := assemble(t, b.Build(), 0)
	require.NoError(t, err)

	_, err = ComputeBoundingSphere(m)
	assert.ErrorIs(t, err, ErrMissingPosition)
}

func TestSphereVec4(t *testing.T) {
	s := Sphere{Center: mgl32.Vec3{1, 2, 3}, Radius: 4}
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 4}, s.Vec4())
}
