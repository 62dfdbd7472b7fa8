package meshlet

import (
	"errors"
	"fmt"
)

// Container format errors.
var (
	ErrFormat             = errors.New("invalid meshlet container")
	ErrInvalidProlog      = fmt.Errorf("%w: expected 'MSHL' prolog", ErrFormat)
	ErrUnsupportedVersion = fmt.Errorf("%w: unsupported version", ErrFormat)
	ErrTruncated          = errors.New("truncated meshlet container")
	ErrTrailingData       = errors.New("unexpected data after meshlet buffer")
	ErrOutOfMemory        = errors.New("meshlet container too large")
)

// View resolution and assembly errors.
var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrRangeOverflow    = errors.New("range exceeds backing storage")
	ErrInvalidStride    = errors.New("invalid element stride")
	ErrInvalidIndexSize = errors.New("index size must be 2 or 4 bytes")
	ErrMissingPosition  = errors.New("mesh has no POSITION attribute")
	ErrAssetCorrupt     = errors.New("corrupt meshlet asset")
)

// Model lifecycle errors.
var (
	ErrReleased        = errors.New("model has been released")
	ErrNotLoaded       = errors.New("model is not loaded")
	ErrAlreadyResident = errors.New("model GPU resources already uploaded")
)

// Part names the mesh sub-structure that failed to assemble.
type Part string

const (
	PartIndices             Part = "indices"
	PartIndexSubsets        Part = "index subsets"
	PartAttribute           Part = "attribute"
	PartMeshlets            Part = "meshlets"
	PartMeshletSubsets      Part = "meshlet subsets"
	PartUniqueVertexIndices Part = "unique vertex indices"
	PartPrimitiveIndices    Part = "primitive indices"
	PartCullData            Part = "cull data"
	PartBounds              Part = "bounding sphere"
)

// AssetCorruptError reports which part of which mesh could not be assembled.
// It matches ErrAssetCorrupt with errors.Is and unwraps to the cause.
type AssetCorruptError struct {
	Mesh      int
	Part      Part
	Attribute AttributeKind // only meaningful when Part == PartAttribute
	Err       error
}

func (e *AssetCorruptError) Error() string {
	if e.Part == PartAttribute {
		return fmt.Sprintf("mesh %d: %s %s: %v", e.Mesh, e.Part, e.Attribute, e.Err)
	}
	return fmt.Sprintf("mesh %d: %s: %v", e.Mesh, e.Part, e.Err)
}

func (e *AssetCorruptError) Unwrap() error { return e.Err }

// Is reports ErrAssetCorrupt as a match.
func (e *AssetCorruptError) Is(target error) bool {
	return target == ErrAssetCorrupt
}

func corrupt(mesh int, part Part, err error) error {
	return &AssetCorruptError{Mesh: mesh, Part: part, Err: err}
}
