package meshlet

import "fmt"

// Resolve turns accessor index into a bounds-checked view over the arena.
// The view starts bufferView.Offset+accessor.Offset bytes into the payload
// and covers accessor.Size bytes.
func Resolve(accessors []Accessor, bufferViews []BufferView, arena *Arena, index uint32) (View, error) {
	if uint64(index) >= uint64(len(accessors)) {
		return View{}, fmt.Errorf("%w: accessor %d of %d", ErrIndexOutOfRange, index, len(accessors))
	}
	acc := accessors[index]

	bvRegion, err := ResolveBufferView(bufferViews, arena, acc.BufferView)
	if err != nil {
		return View{}, fmt.Errorf("accessor %d: %w", index, err)
	}

	if uint64(acc.Offset)+uint64(acc.Size) > uint64(bvRegion.Size()) {
		return View{}, fmt.Errorf("%w: accessor %d range [%d, %d) exceeds %d-byte buffer view %d",
			ErrRangeOverflow, index, acc.Offset, uint64(acc.Offset)+uint64(acc.Size), bvRegion.Size(), acc.BufferView)
	}
	if acc.Count > 1 && acc.Stride == 0 {
		return View{}, fmt.Errorf("%w: accessor %d has %d elements and zero stride", ErrInvalidStride, index, acc.Count)
	}

	return View{
		Region: Region{
			arena: arena,
			off:   bvRegion.Offset() + acc.Offset,
			size:  acc.Size,
		},
		BufferView: acc.BufferView,
		Stride:     acc.Stride,
		Count:      acc.Count,
	}, nil
}

// ResolveBufferView returns the region covered by buffer view index.
func ResolveBufferView(bufferViews []BufferView, arena *Arena, index uint32) (Region, error) {
	if uint64(index) >= uint64(len(bufferViews)) {
		return Region{}, fmt.Errorf("%w: buffer view %d of %d", ErrIndexOutOfRange, index, len(bufferViews))
	}
	bv := bufferViews[index]
	r, err := arena.Region(bv.Offset, bv.Size)
	if err != nil {
		return Region{}, fmt.Errorf("buffer view %d: %w", index, err)
	}
	return r, nil
}

func resolveSpan[T any](accessors []Accessor, bufferViews []BufferView, arena *Arena, index uint32) (Span[T], error) {
	v, err := Resolve(accessors, bufferViews, arena, index)
	if err != nil {
		return Span[T]{}, err
	}
	return newSpan[T](v)
}
