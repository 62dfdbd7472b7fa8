// Package lod groups meshlet models into a level-of-detail chain and lays out
// instances of it in a cube grid.
package lod

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

const (
	// MaxLevels is the size of the per-level descriptor tables.
	MaxLevels = 8
	// MaxGroupVerts and MaxGroupPrims bound a mesh-shader threadgroup.
	MaxGroupVerts = 64
	MaxGroupPrims = 126
)

var (
	ErrNoLevels      = errors.New("lod chain needs at least one level")
	ErrTooManyLevels = fmt.Errorf("lod chain is limited to %d levels", MaxLevels)
	ErrLayout        = errors.New("mesh layout does not match the mesh shader")
)

// ShaderLayout is the vertex layout the mesh shader reads.
var ShaderLayout = []meshlet.InputElement{
	{SemanticName: meshlet.SemanticPosition, Format: meshlet.FormatR32G32B32Float, InputSlot: 0},
	{SemanticName: meshlet.SemanticNormal, Format: meshlet.FormatR32G32B32Float, InputSlot: 0},
}

// Options configures LoadChain.
type Options struct {
	meshlet.LoadOptions
	// Concurrency bounds parallel loads. Zero means GOMAXPROCS.
	Concurrency int
}

// Chain is an ordered set of models, level 0 being the most detailed.
type Chain struct {
	Levels []*meshlet.Model
	Paths  []string
}

// LoadChain loads each path as one level. Levels load concurrently; if any
// fails, the ones that loaded are released and the first error is returned.
func LoadChain(ctx context.Context, paths []string, opts Options) (*Chain, error) {
	if len(paths) == 0 {
		return nil, ErrNoLevels
	}
	if len(paths) > MaxLevels {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyLevels, len(paths))
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	levels := make([]*meshlet.Model, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := meshlet.LoadModelFile(path, opts.LoadOptions)
			if err != nil {
				return fmt.Errorf("level %d: %w", i, err)
			}
			levels[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, m := range levels {
			if m != nil {
				m.Release()
			}
		}
		return nil, err
	}

	if opts.Logger != nil {
		opts.Logger.Info("lod chain loaded",
			zap.Int("levels", len(levels)),
			zap.Float32("radius", levels[0].BoundingSphere.Radius))
	}
	return &Chain{Levels: levels, Paths: paths}, nil
}

// NewChain wraps already loaded models.
func NewChain(levels ...*meshlet.Model) (*Chain, error) {
	if len(levels) == 0 {
		return nil, ErrNoLevels
	}
	if len(levels) > MaxLevels {
		return nil, fmt.Errorf("%w: got %d", ErrTooManyLevels, len(levels))
	}
	return &Chain{Levels: levels}, nil
}

// Len returns the number of levels.
func (c *Chain) Len() int {
	return len(c.Levels)
}

// Radius is the bounding radius of the most detailed level, used to space
// instances.
func (c *Chain) Radius() float32 {
	return c.Levels[0].BoundingSphere.Radius
}

// ValidateLayout checks that the first mesh of every level has exactly the
// ShaderLayout input layout.
func (c *Chain) ValidateLayout() error {
	for i, m := range c.Levels {
		if len(m.Meshes) == 0 {
			return fmt.Errorf("%w: level %d has no meshes", ErrLayout, i)
		}
		if err := CheckLayout(m.Meshes[0].Layout); err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
	}
	return nil
}

// CheckLayout compares layout against ShaderLayout.
func CheckLayout(layout []meshlet.InputElement) error {
	if len(layout) != len(ShaderLayout) {
		return fmt.Errorf("%w: %d elements, want %d", ErrLayout, len(layout), len(ShaderLayout))
	}
	for i, want := range ShaderLayout {
		if layout[i] != want {
			return fmt.Errorf("%w: element %d is %s %s slot %d, want %s %s slot %d", ErrLayout, i,
				layout[i].SemanticName, layout[i].Format, layout[i].InputSlot,
				want.SemanticName, want.Format, want.InputSlot)
		}
	}
	return nil
}

// MeshInfos returns the MeshInfo of the first mesh of every level.
func (c *Chain) MeshInfos() ([]meshlet.MeshInfo, error) {
	infos := make([]meshlet.MeshInfo, len(c.Levels))
	for i, m := range c.Levels {
		if len(m.Meshes) == 0 {
			return nil, fmt.Errorf("level %d has no meshes", i)
		}
		info, err := m.Meshes[0].Info()
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		infos[i] = info
	}
	return infos, nil
}

// PackCounts returns, per level, how many copies of the last meshlet of the
// first subset fit in one threadgroup.
func (c *Chain) PackCounts() ([]uint32, error) {
	counts := make([]uint32, len(c.Levels))
	for i, m := range c.Levels {
		if len(m.Meshes) == 0 {
			continue
		}
		mesh := m.Meshes[0]
		if mesh.MeshletSubsets.Len() == 0 {
			continue
		}
		n, err := meshlet.LastMeshletPackCount(mesh.Meshlets, mesh.MeshletSubsets, 0, MaxGroupVerts, MaxGroupPrims)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		counts[i] = n
	}
	return counts, nil
}

// Upload uploads every level. On failure the levels already uploaded are
// returned to the Loaded state.
func (c *Chain) Upload(ctx context.Context, up meshlet.Uploader) error {
	for i, m := range c.Levels {
		if err := m.Upload(ctx, up); err != nil {
			err = fmt.Errorf("level %d: %w", i, err)
			for _, done := range c.Levels[:i] {
				err = multierr.Append(err, done.ReleaseGPU())
			}
			return err
		}
	}
	return nil
}

// Release releases every level.
func (c *Chain) Release() error {
	var err error
	for _, m := range c.Levels {
		err = multierr.Append(err, m.Release())
	}
	return err
}
