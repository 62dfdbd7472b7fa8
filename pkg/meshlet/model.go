package meshlet

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// State is a Model lifecycle state.
type State uint8

const (
	StateUnloaded State = iota
	StateLoaded
	StateGPUResident
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoaded:
		return "Loaded"
	case StateGPUResident:
		return "GPUResident"
	case StateReleased:
		return "Released"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// LoadOptions configures model loading.
type LoadOptions struct {
	// Logger receives debug summaries. Nil disables logging.
	Logger *zap.Logger
	// MaxBufferSize bounds the declared payload size. Zero means DefaultMaxBufferSize.
	MaxBufferSize uint32
}

func (o LoadOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Model is a loaded meshlet container: the payload arena, the meshes viewing
// it, and the merged bounding sphere of all meshes.
type Model struct {
	Meshes         []*Mesh
	BoundingSphere Sphere

	arena       *Arena
	headers     []MeshHeader
	accessors   []Accessor
	bufferViews []BufferView

	state    State
	uploader Uploader
}

// LoadModelFile loads and assembles the model stored at path.
func LoadModelFile(path string, opts LoadOptions) (*Model, error) {
	c, err := readContainerFile(path, opts.MaxBufferSize)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	m, err := NewModel(c, opts)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	opts.logger().Debug("model loaded",
		zap.String("path", path),
		zap.Int("meshes", len(m.Meshes)),
		zap.Int("bufferSize", len(c.Buffer)),
		zap.Float32("radius", m.BoundingSphere.Radius))
	return m, nil
}

// LoadModel loads and assembles a model from r.
func LoadModel(r io.Reader, opts LoadOptions) (*Model, error) {
	c, err := readContainer(r, opts.MaxBufferSize)
	if err != nil {
		return nil, err
	}
	return NewModel(c, opts)
}

// NewModel assembles every mesh of c and takes ownership of c.Buffer. On
// failure nothing is retained.
func NewModel(c *Container, opts LoadOptions) (*Model, error) {
	return assembleModel(c, NewArena(c.Buffer), opts)
}

// assembleModel builds a Model over arena, releasing arena when any mesh
// fails to assemble.
func assembleModel(c *Container, arena *Arena, opts LoadOptions) (*Model, error) {
	log := opts.logger()

	m := &Model{
		Meshes:      make([]*Mesh, 0, len(c.Meshes)),
		arena:       arena,
		headers:     c.Meshes,
		accessors:   c.Accessors,
		bufferViews: c.BufferViews,
	}

	for i, h := range c.Meshes {
		mesh, err := AssembleMesh(i, h, c.Accessors, c.BufferViews, arena)
		if err != nil {
			arena.Release()
			return nil, err
		}

		mesh.BoundingSphere, err = ComputeBoundingSphere(mesh)
		if err != nil {
			arena.Release()
			return nil, corrupt(i, PartBounds, err)
		}

		if i == 0 {
			m.BoundingSphere = mesh.BoundingSphere
		} else {
			m.BoundingSphere = MergeSpheres(m.BoundingSphere, mesh.BoundingSphere)
		}
		m.Meshes = append(m.Meshes, mesh)

		log.Debug("mesh assembled",
			zap.Int("mesh", i),
			zap.Uint32("vertices", mesh.VertexCount),
			zap.Int("vertexViews", mesh.NumVertexViews()),
			zap.Int("layoutElements", len(mesh.Layout)),
			zap.Uint32("indices", mesh.IndexCount),
			zap.Int("meshlets", mesh.Meshlets.Len()))
	}

	m.state = StateLoaded
	return m, nil
}

// State returns the lifecycle state.
func (m *Model) State() State {
	return m.state
}

// BufferSize returns the payload size, or 0 once released.
func (m *Model) BufferSize() int {
	if m.arena == nil {
		return 0
	}
	return m.arena.Len()
}

// Container returns the model's tables and payload for re-serialization.
// The payload is shared, not copied.
func (m *Model) Container() (*Container, error) {
	if m.state != StateLoaded && m.state != StateGPUResident {
		return nil, ErrReleased
	}
	return &Container{
		Header: Header{
			Prolog:          Prolog,
			Version:         Version,
			MeshCount:       uint32(len(m.headers)),
			AccessorCount:   uint32(len(m.accessors)),
			BufferViewCount: uint32(len(m.bufferViews)),
			BufferSize:      uint32(m.arena.Len()),
		},
		Meshes:      m.headers,
		Accessors:   m.accessors,
		BufferViews: m.bufferViews,
		Buffer:      m.arena.buf,
	}, nil
}

// Upload makes every mesh GPU resident through up. If any mesh fails, the
// buffers created so far are released and the model stays Loaded.
func (m *Model) Upload(ctx context.Context, up Uploader) error {
	switch m.state {
	case StateLoaded:
	case StateGPUResident:
		return ErrAlreadyResident
	case StateReleased:
		return ErrReleased
	default:
		return ErrNotLoaded
	}

	var created []Handle
	rollback := func(err error) error {
		for _, h := range created {
			err = multierr.Append(err, up.Release(h))
		}
		for _, mesh := range m.Meshes {
			mesh.gpu = nil
		}
		return err
	}

	for i, mesh := range m.Meshes {
		bufs, err := mesh.LogicalBuffers()
		if err != nil {
			return rollback(fmt.Errorf("mesh %d: %w", i, err))
		}

		handles, err := up.Upload(ctx, i, bufs)
		if err != nil {
			return rollback(fmt.Errorf("uploading mesh %d: %w", i, err))
		}
		if len(handles) != len(bufs) {
			created = append(created, handles...)
			return rollback(fmt.Errorf("uploading mesh %d: got %d handles for %d buffers", i, len(handles), len(bufs)))
		}

		mesh.gpu = make(map[BufferKey]Handle, len(bufs))
		for j, b := range bufs {
			mesh.gpu[b.BufferKey] = handles[j]
		}
		created = append(created, handles...)
	}

	m.uploader = up
	m.state = StateGPUResident
	return nil
}

// ReleaseGPU releases the GPU buffers and returns the model to Loaded.
func (m *Model) ReleaseGPU() error {
	if m.state != StateGPUResident {
		return nil
	}
	err := m.releaseHandles()
	m.state = StateLoaded
	return err
}

// Release drops GPU buffers and the payload. Views into the model are no
// longer readable afterwards. Calling Release again is a no-op.
func (m *Model) Release() error {
	if m.state == StateReleased || m.state == StateUnloaded {
		return nil
	}

	err := m.releaseHandles()
	m.arena.Release()
	m.Meshes = nil
	m.headers, m.accessors, m.bufferViews = nil, nil, nil
	m.state = StateReleased
	return err
}

func (m *Model) releaseHandles() error {
	if m.uploader == nil {
		return nil
	}
	var err error
	for i, mesh := range m.Meshes {
		for key, h := range mesh.gpu {
			if rerr := m.uploader.Release(h); rerr != nil {
				err = multierr.Append(err, fmt.Errorf("mesh %d %s buffer: %w", i, key.Usage, rerr))
			}
		}
		mesh.gpu = nil
	}
	m.uploader = nil
	return err
}
