package meshlet

import (
	"context"
	"encoding/binary"
	"fmt"
)

// Usage tells the upload boundary what a logical buffer holds.
type Usage uint8

const (
	UsageIndex Usage = iota
	UsageVertex
	UsageMeshlet
	UsageCullData
	UsageUniqueVertexIndex
	UsagePrimitiveIndex
	UsageMeshInfo
)

func (u Usage) String() string {
	switch u {
	case UsageIndex:
		return "Index"
	case UsageVertex:
		return "Vertex"
	case UsageMeshlet:
		return "Meshlet"
	case UsageCullData:
		return "CullData"
	case UsageUniqueVertexIndex:
		return "UniqueVertexIndex"
	case UsagePrimitiveIndex:
		return "PrimitiveIndex"
	case UsageMeshInfo:
		return "MeshInfo"
	default:
		return fmt.Sprintf("Usage(%d)", u)
	}
}

// BufferKey identifies a GPU buffer of a mesh. Slot is the vertex input slot
// for UsageVertex and zero otherwise.
type BufferKey struct {
	Usage Usage
	Slot  int
}

// Handle is an opaque GPU buffer handle issued by an Uploader.
type Handle uint64

// LogicalBuffer is one buffer the upload boundary must make GPU resident.
// Size may exceed len(Data); the tail is zero-filled.
type LogicalBuffer struct {
	BufferKey
	Stride uint32
	Size   uint32
	Data   []byte
}

// Uploader creates GPU buffers. Upload must return one handle per buffer, in
// order, and only return once the buffers are safe to read.
type Uploader interface {
	Upload(ctx context.Context, mesh int, bufs []LogicalBuffer) ([]Handle, error)
	Release(h Handle) error
}

// MeshInfoSize is the size of the encoded MeshInfo record, padded to the
// 256-byte constant buffer alignment.
const MeshInfoSize = 256

// MeshInfo is the per-mesh constant record read by the mesh shader.
type MeshInfo struct {
	IndexSize            uint32
	MeshletCount         uint32
	LastMeshletVertCount uint32
	LastMeshletPrimCount uint32
}

// MarshalBinary encodes the record into MeshInfoSize bytes.
func (i MeshInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, MeshInfoSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:], i.IndexSize)
	le.PutUint32(b[4:], i.MeshletCount)
	le.PutUint32(b[8:], i.LastMeshletVertCount)
	le.PutUint32(b[12:], i.LastMeshletPrimCount)
	return b, nil
}

// Info returns the mesh's MeshInfo. A mesh without meshlets reports zero
// last-meshlet counts.
func (m *Mesh) Info() (MeshInfo, error) {
	info := MeshInfo{
		IndexSize:    m.IndexSize,
		MeshletCount: uint32(m.Meshlets.Len()),
	}
	if m.Meshlets.Len() > 0 {
		last, err := m.Meshlets.Back()
		if err != nil {
			return MeshInfo{}, err
		}
		info.LastMeshletVertCount = last.VertCount
		info.LastMeshletPrimCount = last.PrimCount
	}
	return info, nil
}

// LogicalBuffers lists what must be uploaded for the mesh: the index buffer,
// one vertex buffer per input slot in slot order, meshlets, cull data, unique
// vertex indices (rounded up to 4 bytes), primitive indices and MeshInfo.
func (m *Mesh) LogicalBuffers() ([]LogicalBuffer, error) {
	if !m.Indices.Valid() {
		return nil, ErrReleased
	}

	bufs := make([]LogicalBuffer, 0, 6+len(m.VertexViews))
	add := func(u Usage, slot int, stride uint32, data []byte, size uint32) {
		bufs = append(bufs, LogicalBuffer{
			BufferKey: BufferKey{Usage: u, Slot: slot},
			Stride:    stride,
			Size:      size,
			Data:      data,
		})
	}

	idx := m.Indices.Bytes()[:m.IndexCount*m.IndexSize]
	add(UsageIndex, 0, m.IndexSize, idx, uint32(len(idx)))

	for slot, r := range m.VertexViews {
		add(UsageVertex, slot, m.VertexStrides[slot], r.Bytes(), r.Size())
	}

	meshlets := m.Meshlets.Bytes()
	add(UsageMeshlet, 0, m.Meshlets.Stride(), meshlets, uint32(len(meshlets)))

	cull := m.CullData.Bytes()
	add(UsageCullData, 0, m.CullData.Stride(), cull, uint32(len(cull)))

	uvi := m.UniqueVertexIndices.Bytes()
	add(UsageUniqueVertexIndex, 0, m.IndexSize, uvi, alignUp4(uint32(len(uvi))))

	prims := m.PrimitiveIndices.Bytes()
	add(UsagePrimitiveIndex, 0, m.PrimitiveIndices.Stride(), prims, uint32(len(prims)))

	info, err := m.Info()
	if err != nil {
		return nil, err
	}
	infoBytes, _ := info.MarshalBinary()
	add(UsageMeshInfo, 0, 0, infoBytes, MeshInfoSize)

	return bufs, nil
}

// GPUHandle returns the handle uploaded for key, if any.
func (m *Mesh) GPUHandle(key BufferKey) (Handle, bool) {
	h, ok := m.gpu[key]
	return h, ok
}

func alignUp4(n uint32) uint32 {
	return (n + 3) &^ 3
}
