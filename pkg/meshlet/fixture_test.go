package meshlet

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func f32bytes(vals ...float32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func u32bytes(vals ...uint32) []byte {
	b := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func u16bytes(vals ...uint16) []byte {
	b := make([]byte, 2*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint16(b[2*i:], v)
	}
	return b
}

func encodeRecords(t *testing.T, v any) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	return buf.Bytes()
}

// meshParts describes the payload of one test mesh.
type meshParts struct {
	vertices       []byte // interleaved position+normal, 24-byte stride
	indices        []byte // 16-bit indices
	indexSubsets   []Subset
	meshlets       []Meshlet
	meshletSubsets []Subset
	uniqueIndices  []byte // 16-bit indices
	primitives     []PackedTriangle
	cullData       []CullData
}

// triangleParts is a single mesh with two interleaved position/normal
// vertices, one triangle and one meshlet.
func triangleParts() meshParts {
	return meshParts{
		vertices: f32bytes(
			0, 0, 0, 0, 0, 1,
			2, 0, 0, 0, 0, 1,
		),
		indices:        u16bytes(0, 1, 1),
		indexSubsets:   []Subset{{Offset: 0, Count: 3}},
		meshlets:       []Meshlet{{VertCount: 2, VertOffset: 0, PrimCount: 1, PrimOffset: 0}},
		meshletSubsets: []Subset{{Offset: 0, Count: 1}},
		uniqueIndices:  u16bytes(0, 1, 1),
		primitives:     []PackedTriangle{PackTriangle(0, 1, 1)},
		cullData: []CullData{{
			BoundingSphere: [4]float32{1, 0, 0, 1},
			NormalCone:     [4]uint8{127, 127, 255, 0},
			ApexOffset:     0.5,
		}},
	}
}

// addMesh appends p to b as an interleaved position+normal mesh.
func addMesh(t *testing.T, b *ContainerBuilder, p meshParts) uint32 {
	t.Helper()

	vb := b.AddBufferView(p.vertices)
	nverts := uint32(len(p.vertices) / 24)
	pos := b.AddAccessor(Accessor{BufferView: vb, Offset: 0, Size: uint32(len(p.vertices)), Stride: 24, Count: nverts})
	nrm := b.AddAccessor(Accessor{BufferView: vb, Offset: 12, Size: uint32(len(p.vertices)) - 12, Stride: 24, Count: nverts})

	h := addTopology(t, b, p)
	h.Attributes[AttributePosition] = Some(pos)
	h.Attributes[AttributeNormal] = Some(nrm)
	return b.AddMesh(h)
}

// addTopology stores everything but the vertices of p and returns a header
// with every attribute absent.
func addTopology(t *testing.T, b *ContainerBuilder, p meshParts) MeshHeader {
	t.Helper()

	h := MeshHeader{
		Indices:             b.AddElements(p.indices, 2, uint32(len(p.indices)/2)),
		IndexSubsets:        b.AddElements(encodeRecords(t, p.indexSubsets), 8, uint32(len(p.indexSubsets))),
		Meshlets:            b.AddElements(encodeRecords(t, p.meshlets), 16, uint32(len(p.meshlets))),
		MeshletSubsets:      b.AddElements(encodeRecords(t, p.meshletSubsets), 8, uint32(len(p.meshletSubsets))),
		UniqueVertexIndices: b.AddElements(p.uniqueIndices, 2, uint32(len(p.uniqueIndices)/2)),
		PrimitiveIndices:    b.AddElements(encodeRecords(t, p.primitives), 4, uint32(len(p.primitives))),
		CullData:            b.AddElements(encodeRecords(t, p.cullData), 24, uint32(len(p.cullData))),
	}
	for k := range h.Attributes {
		h.Attributes[k] = None
	}
	return h
}

func triangleContainer(t *testing.T) *Container {
	t.Helper()
	b := NewContainerBuilder()
	addMesh(t, b, triangleParts())
	return b.Build()
}

func encodeContainer(t *testing.T, c *Container) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteContainer(&buf, c))
	return buf.Bytes()
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}
