// Package scene holds what the viewer draws: an LOD chain loaded through the
// asset manager, the instance grid laid out from it and the render mode.
package scene

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/assets"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/pkg/lod"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

// MaxInstanceLevel is the largest instance grid the viewer lays out.
const MaxInstanceLevel = lod.MaxGridLevel

var (
	// ErrNotLoaded is returned when the scene has no chain.
	ErrNotLoaded = errors.New("scene has no models loaded")
	// ErrDuplicateLevel is returned when one file is listed at two levels.
	ErrDuplicateLevel = errors.New("model file used at more than one level")
)

// Scene is not safe for concurrent use; the viewer drives it from the render
// thread.
type Scene struct {
	assets *assets.Manager
	paths  []string
	limit  int

	chain     *lod.Chain
	level     uint32
	mode      lod.RenderMode
	instances []lod.Instance

	log *zap.Logger
}

// New creates a scene over paths, most detailed level first. Models are
// loaded through mgr, which keeps ownership of them.
func New(mgr *assets.Manager, paths []string, level uint32, limit int) *Scene {
	return &Scene{
		assets: mgr,
		paths:  paths,
		limit:  limit,
		level:  min(level, MaxInstanceLevel),
		log:    logger.Named("scene"),
	}
}

// Load loads every level and validates it against the shader layout.
func (s *Scene) Load(ctx context.Context) error {
	if len(s.paths) > lod.MaxLevels {
		return fmt.Errorf("%w: got %d", lod.ErrTooManyLevels, len(s.paths))
	}
	seen := make(map[string]int, len(s.paths))
	for i, path := range s.paths {
		key := assets.Key(path)
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%w: %s at levels %d and %d", ErrDuplicateLevel, path, prev, i)
		}
		seen[key] = i
	}
	if err := s.assets.Preload(ctx, s.paths, s.limit); err != nil {
		return err
	}

	models := make([]*meshlet.Model, len(s.paths))
	for i, path := range s.paths {
		m, err := s.assets.Load(path)
		if err != nil {
			return fmt.Errorf("level %d: %w", i, err)
		}
		models[i] = m
		s.log.Debug("level ready", logger.Level(i), zap.String("path", path), zap.Int("meshes", len(m.Meshes)))
	}

	chain, err := lod.NewChain(models...)
	if err != nil {
		return err
	}
	chain.Paths = s.paths
	if err := chain.ValidateLayout(); err != nil {
		return err
	}

	s.chain = chain
	s.layout()
	s.log.Info("scene loaded",
		zap.Int("levels", chain.Len()),
		zap.Float32("radius", chain.Radius()),
		zap.Int("instances", len(s.instances)))
	return nil
}

// Upload makes every level GPU resident.
func (s *Scene) Upload(ctx context.Context, up meshlet.Uploader) error {
	if s.chain == nil {
		return ErrNotLoaded
	}
	return s.chain.Upload(ctx, up)
}

// Reload evicts the changed files, loads the chain again and uploads it.
// Paths not part of the scene are ignored. On failure the scene is left
// empty until the next successful reload.
func (s *Scene) Reload(ctx context.Context, up meshlet.Uploader, changed []string) error {
	stale := s.matching(changed, false)
	if len(stale) == 0 {
		return nil
	}

	var err error
	if s.chain != nil {
		for _, m := range s.chain.Levels {
			err = multierr.Append(err, m.ReleaseGPU())
		}
	}
	for _, path := range stale {
		err = multierr.Append(err, s.assets.Evict(path))
	}
	s.chain = nil
	s.instances = nil
	if err != nil {
		return fmt.Errorf("releasing stale models: %w", err)
	}

	s.log.Info("reloading", zap.Strings("paths", stale))
	if err := s.Load(ctx); err != nil {
		s.chain = nil
		return err
	}
	if err := s.Upload(ctx, up); err != nil {
		s.chain = nil
		return err
	}
	return nil
}

// matching returns the scene paths that name one of files, or, with
// invert, the ones that name none of them.
func (s *Scene) matching(files []string, invert bool) []string {
	want := make(map[string]bool, len(files))
	for _, p := range files {
		want[assets.Key(p)] = true
	}

	var out []string
	for _, p := range s.paths {
		if want[assets.Key(p)] != invert {
			out = append(out, p)
		}
	}
	return out
}

func (s *Scene) layout() {
	if s.chain == nil {
		s.instances = nil
		return
	}
	s.instances = lod.InstanceGrid(s.level, s.chain.Radius())
}

// Paths returns the level files, most detailed first.
func (s *Scene) Paths() []string { return s.paths }

// Chain returns the loaded chain, or nil.
func (s *Scene) Chain() *lod.Chain { return s.chain }

// Instances returns the current instance grid.
func (s *Scene) Instances() []lod.Instance { return s.instances }

// Level returns the instance grid level.
func (s *Scene) Level() uint32 { return s.level }

// Mode returns the render mode.
func (s *Scene) Mode() lod.RenderMode { return s.mode }

// ChangeLevel grows or shrinks the instance grid by delta levels.
func (s *Scene) ChangeLevel(delta int) {
	level := int(s.level) + delta
	level = max(0, min(level, MaxInstanceLevel))
	if uint32(level) == s.level {
		return
	}
	s.level = uint32(level)
	s.layout()
	s.log.Debug("instance level changed",
		zap.Uint32("level", s.level),
		zap.Int("instances", len(s.instances)))
}

// CycleMode switches to the next render mode.
func (s *Scene) CycleMode() {
	s.mode = s.mode.Next()
	s.log.Debug("render mode changed", zap.Stringer("mode", s.mode))
}

// ReleaseGPU returns every level to the Loaded state. The models themselves
// stay with the asset manager.
func (s *Scene) ReleaseGPU() error {
	if s.chain == nil {
		return nil
	}
	var err error
	for _, m := range s.chain.Levels {
		err = multierr.Append(err, m.ReleaseGPU())
	}
	return err
}

// Retire hands the scene's models back before a scene over keep replaces it.
// GPU buffers are released and every model not named by keep is evicted from
// the asset manager. Paths are compared as the manager keys them, so a
// relative and an absolute path to one file count as the same model.
func (s *Scene) Retire(keep []string) error {
	err := s.ReleaseGPU()
	for _, p := range s.matching(keep, true) {
		err = multierr.Append(err, s.assets.Evict(p))
	}
	s.chain = nil
	s.instances = nil
	return err
}
