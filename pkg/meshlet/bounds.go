package meshlet

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Sphere is a bounding sphere.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// ContainsPoint reports whether p lies within the sphere, with tolerance eps.
func (s Sphere) ContainsPoint(p mgl32.Vec3, eps float32) bool {
	return distance(s.Center, p) <= s.Radius+eps
}

// ContainsSphere reports whether o lies entirely within s, with tolerance eps.
func (s Sphere) ContainsSphere(o Sphere, eps float32) bool {
	return distance(s.Center, o.Center)+o.Radius <= s.Radius+eps
}

// Vec4 packs the sphere as xyz = center, w = radius.
func (s Sphere) Vec4() mgl32.Vec4 {
	return s.Center.Vec4(s.Radius)
}

func distance(a, b mgl32.Vec3) float32 {
	d := b.Sub(a)
	return math32.Sqrt(d.Dot(d))
}

// SphereFromPoints computes a bounding sphere with Ritter's method, seeded by
// the most separated pair of axis-extreme points.
func SphereFromPoints(points []mgl32.Vec3) Sphere {
	if len(points) == 0 {
		return Sphere{}
	}

	var minIdx, maxIdx [3]int
	for i, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < points[minIdx[axis]][axis] {
				minIdx[axis] = i
			}
			if p[axis] > points[maxIdx[axis]][axis] {
				maxIdx[axis] = i
			}
		}
	}

	a, b := points[minIdx[0]], points[maxIdx[0]]
	best := distance(a, b)
	for axis := 1; axis < 3; axis++ {
		pa, pb := points[minIdx[axis]], points[maxIdx[axis]]
		if d := distance(pa, pb); d > best {
			a, b, best = pa, pb, d
		}
	}

	s := Sphere{
		Center: a.Add(b).Mul(0.5),
		Radius: best * 0.5,
	}

	for _, p := range points {
		d := distance(s.Center, p)
		if d <= s.Radius {
			continue
		}
		r := (s.Radius + d) * 0.5
		s.Center = s.Center.Add(p.Sub(s.Center).Mul((r - s.Radius) / d))
		s.Radius = r
	}
	return s
}

// MergeSpheres returns the smallest sphere enclosing both a and b.
func MergeSpheres(a, b Sphere) Sphere {
	d := b.Center.Sub(a.Center)
	dist := math32.Sqrt(d.Dot(d))

	if a.Radius >= dist+b.Radius {
		return a
	}
	if b.Radius >= dist+a.Radius {
		return b
	}

	r := (a.Radius + dist + b.Radius) * 0.5
	return Sphere{
		Center: a.Center.Add(d.Mul((r - a.Radius) / dist)),
		Radius: r,
	}
}

// Positions reads the mesh's vertex positions.
func (m *Mesh) Positions() ([]mgl32.Vec3, error) {
	slot, offset, ok := m.ElementOffset(SemanticPosition)
	if !ok {
		return nil, ErrMissingPosition
	}

	if int(slot) >= len(m.VertexViews) {
		return nil, fmt.Errorf("%w: input slot %d of %d", ErrIndexOutOfRange, slot, len(m.VertexViews))
	}
	region := m.VertexViews[slot]
	stride := m.VertexStrides[slot]
	data := region.Bytes()
	if data == nil && region.Size() > 0 {
		return nil, ErrReleased
	}

	if m.VertexCount > 0 {
		end := uint64(m.VertexCount-1)*uint64(stride) + uint64(offset) + 12
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%w: %d positions at stride %d need %d bytes, vertex buffer has %d",
				ErrRangeOverflow, m.VertexCount, stride, end, len(data))
		}
	}

	le := binary.LittleEndian
	points := make([]mgl32.Vec3, m.VertexCount)
	for i := range points {
		o := uint32(i)*stride + offset
		points[i] = mgl32.Vec3{
			math.Float32frombits(le.Uint32(data[o:])),
			math.Float32frombits(le.Uint32(data[o+4:])),
			math.Float32frombits(le.Uint32(data[o+8:])),
		}
	}
	return points, nil
}

// ComputeBoundingSphere returns a sphere containing every vertex position.
func ComputeBoundingSphere(m *Mesh) (Sphere, error) {
	points, err := m.Positions()
	if err != nil {
		return Sphere{}, err
	}
	return SphereFromPoints(points), nil
}
