package meshlet

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// WriteContainer serializes c in the on-disk layout. The header counts are
// derived from the tables; c.Header is not consulted.
func WriteContainer(w io.Writer, c *Container) error {
	h := Header{
		Prolog:          Prolog,
		Version:         Version,
		MeshCount:       uint32(len(c.Meshes)),
		AccessorCount:   uint32(len(c.Accessors)),
		BufferViewCount: uint32(len(c.BufferViews)),
		BufferSize:      uint32(len(c.Buffer)),
	}

	var hdr [HeaderSize]byte
	encodeHeader(hdr[:], h)
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	if err := writeTable(w, c.Meshes, MeshHeaderSize, encodeMeshHeader); err != nil {
		return fmt.Errorf("writing mesh headers: %w", err)
	}
	if err := writeTable(w, c.Accessors, AccessorSize, encodeAccessor); err != nil {
		return fmt.Errorf("writing accessors: %w", err)
	}
	if err := writeTable(w, c.BufferViews, BufferViewSize, encodeBufferView); err != nil {
		return fmt.Errorf("writing buffer views: %w", err)
	}

	if _, err := w.Write(c.Buffer); err != nil {
		return fmt.Errorf("writing buffer: %w", err)
	}
	return nil
}

// WriteContainerFile writes c to path, replacing any existing file.
func WriteContainerFile(path string, c *Container) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating meshlet file: %w", err)
	}

	bw := bufio.NewWriter(f)
	if err := WriteContainer(bw, c); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTable[T any](w io.Writer, items []T, recSize int, encode func([]byte, T)) error {
	buf := make([]byte, recSize)
	for _, it := range items {
		encode(buf, it)
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// ContainerBuilder assembles a Container in memory. Buffer views are laid out
// back to back, each starting on a 4-byte boundary.
type ContainerBuilder struct {
	buffer      []byte
	bufferViews []BufferView
	accessors   []Accessor
	meshes      []MeshHeader
}

// NewContainerBuilder returns an empty builder.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{}
}

// AddBufferView appends data to the payload and returns its buffer view index.
func (b *ContainerBuilder) AddBufferView(data []byte) uint32 {
	for len(b.buffer)%4 != 0 {
		b.buffer = append(b.buffer, 0)
	}
	b.bufferViews = append(b.bufferViews, BufferView{
		Offset: uint32(len(b.buffer)),
		Size:   uint32(len(data)),
	})
	b.buffer = append(b.buffer, data...)
	return uint32(len(b.bufferViews) - 1)
}

// AddAccessor appends an accessor and returns its index.
func (b *ContainerBuilder) AddAccessor(a Accessor) uint32 {
	b.accessors = append(b.accessors, a)
	return uint32(len(b.accessors) - 1)
}

// AddElements stores count elements of stride bytes in a new buffer view and
// returns an accessor covering all of them.
func (b *ContainerBuilder) AddElements(data []byte, stride, count uint32) uint32 {
	bv := b.AddBufferView(data)
	return b.AddAccessor(Accessor{
		BufferView: bv,
		Size:       uint32(len(data)),
		Stride:     stride,
		Count:      count,
	})
}

// AddMesh appends a mesh header and returns its index.
func (b *ContainerBuilder) AddMesh(h MeshHeader) uint32 {
	b.meshes = append(b.meshes, h)
	return uint32(len(b.meshes) - 1)
}

// Build returns the assembled container. The builder must not be reused.
func (b *ContainerBuilder) Build() *Container {
	return &Container{
		Header: Header{
			Prolog:          Prolog,
			Version:         Version,
			MeshCount:       uint32(len(b.meshes)),
			AccessorCount:   uint32(len(b.accessors)),
			BufferViewCount: uint32(len(b.bufferViews)),
			BufferSize:      uint32(len(b.buffer)),
		},
		Meshes:      b.meshes,
		Accessors:   b.accessors,
		BufferViews: b.bufferViews,
		Buffer:      b.buffer,
	}
}
