package meshlet

import (
	"encoding/binary"
	"fmt"
)

// Arena owns a model's raw payload. Every view into the payload goes through
// a Region so that reads after Release are refused rather than served.
type Arena struct {
	buf      []byte
	released bool
}

// NewArena takes ownership of buf.
func NewArena(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Len returns the payload size in bytes.
func (a *Arena) Len() int {
	return len(a.buf)
}

// Released reports whether the arena has been released.
func (a *Arena) Released() bool {
	return a.released
}

// Release drops the payload. Regions over the arena return nil afterwards.
func (a *Arena) Release() {
	a.buf = nil
	a.released = true
}

// Region returns the byte range [off, off+size) of the arena.
func (a *Arena) Region(off, size uint32) (Region, error) {
	if a.released {
		return Region{}, ErrReleased
	}
	if uint64(off)+uint64(size) > uint64(len(a.buf)) {
		return Region{}, fmt.Errorf("%w: [%d, %d) of %d-byte buffer",
			ErrRangeOverflow, off, uint64(off)+uint64(size), len(a.buf))
	}
	return Region{arena: a, off: off, size: size}, nil
}

// Region is a non-owning byte range of an Arena.
type Region struct {
	arena *Arena
	off   uint32
	size  uint32
}

// Offset returns the region start relative to the payload.
func (r Region) Offset() uint32 { return r.off }

// Size returns the region length in bytes.
func (r Region) Size() uint32 { return r.size }

// Bytes returns the region's bytes without copying. It returns nil once the
// arena has been released.
func (r Region) Bytes() []byte {
	if r.arena == nil || r.arena.released {
		return nil
	}
	return r.arena.buf[r.off : r.off+r.size : r.off+r.size]
}

// Valid reports whether the region can still be read.
func (r Region) Valid() bool {
	return r.arena != nil && !r.arena.released
}

// View is a resolved accessor: Count elements, Stride bytes apart, inside Region.
type View struct {
	Region
	BufferView uint32
	Stride     uint32
	Count      uint32
}

// Span is a typed, read-only view of fixed-size little-endian records.
type Span[T any] struct {
	region Region
	stride uint32
	count  uint32
}

// newSpan checks that all elements of v fit in its region.
func newSpan[T any](v View) (Span[T], error) {
	var zero T
	size := uint32(binary.Size(zero))

	stride := v.Stride
	if stride == 0 {
		if v.Count > 1 {
			return Span[T]{}, fmt.Errorf("%w: zero stride for %d elements", ErrInvalidStride, v.Count)
		}
		stride = size
	}
	if stride < size {
		return Span[T]{}, fmt.Errorf("%w: stride %d smaller than %d-byte element", ErrInvalidStride, stride, size)
	}
	if v.Count > 0 {
		extent := uint64(v.Count-1)*uint64(stride) + uint64(size)
		if extent > uint64(v.Size()) {
			return Span[T]{}, fmt.Errorf("%w: %d elements need %d bytes, view has %d",
				ErrRangeOverflow, v.Count, extent, v.Size())
		}
	}
	return Span[T]{region: v.Region, stride: stride, count: v.Count}, nil
}

// Len returns the element count.
func (s Span[T]) Len() int { return int(s.count) }

// Stride returns the distance between elements in bytes.
func (s Span[T]) Stride() uint32 { return s.stride }

// At decodes element i.
func (s Span[T]) At(i int) (T, error) {
	var v T
	if i < 0 || i >= int(s.count) {
		return v, fmt.Errorf("%w: element %d of %d", ErrIndexOutOfRange, i, s.count)
	}
	b := s.region.Bytes()
	if b == nil && s.region.size > 0 {
		return v, ErrReleased
	}
	off := uint32(i) * s.stride
	if _, err := binary.Decode(b[off:], binary.LittleEndian, &v); err != nil {
		return v, fmt.Errorf("decoding element %d: %w", i, err)
	}
	return v, nil
}

// Back decodes the last element.
func (s Span[T]) Back() (T, error) {
	return s.At(int(s.count) - 1)
}

// Slice decodes every element.
func (s Span[T]) Slice() ([]T, error) {
	out := make([]T, s.count)
	for i := range out {
		v, err := s.At(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Bytes returns the bytes spanned by the elements, without copying.
func (s Span[T]) Bytes() []byte {
	b := s.region.Bytes()
	if b == nil || s.count == 0 {
		return nil
	}
	var zero T
	extent := (s.count-1)*s.stride + uint32(binary.Size(zero))
	return b[:extent]
}

// Region returns the backing region.
func (s Span[T]) Region() Region { return s.region }
