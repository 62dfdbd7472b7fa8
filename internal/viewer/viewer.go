// Package viewer implements the meshletview main loop.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sqweek/dialog"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/assets"
	"github.com/Faultbox/meshlod/internal/camera"
	"github.com/Faultbox/meshlod/internal/config"
	"github.com/Faultbox/meshlod/internal/gpu"
	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/internal/scene"
	"github.com/Faultbox/meshlod/internal/screenshot"
	"github.com/Faultbox/meshlod/internal/watch"
	"github.com/Faultbox/meshlod/internal/window"
	"github.com/Faultbox/meshlod/pkg/lod"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

const title = "meshletview"

// Viewer owns the window, GL resources and the scene.
type Viewer struct {
	cfg      *config.Config
	running  bool
	window   *window.Window
	renderer *gpu.Renderer
	uploader *gpu.Uploader
	input    *window.Input
	camera   *camera.OrbitCamera
	assets   *assets.Manager
	scene    *scene.Scene
	watcher  *watch.Watcher
	shots    *screenshot.Capture
	log      *zap.Logger

	// capture is set when the next frame should be saved before presenting.
	capture bool

	// opened receives files picked in the open dialog.
	opened chan string
}

// New opens the window, loads the models and uploads them.
func New(ctx context.Context, cfg *config.Config) (*Viewer, error) {
	paths := cfg.ModelChain()
	if len(paths) == 0 {
		return nil, fmt.Errorf("no model configured")
	}

	v := &Viewer{
		cfg:    cfg,
		camera: camera.NewOrbitCamera(),
		input:  window.NewInput(),
		opened: make(chan string, 1),
		log:    logger.Named("viewer"),
	}
	v.log.Info("initializing viewer", zap.Strings("paths", paths))

	format, err := screenshot.ParseFormat(cfg.Viewer.ScreenshotFormat)
	if err != nil {
		return nil, err
	}
	v.shots = screenshot.New(cfg.Viewer.ScreenshotDir, title, format)

	v.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The renderer needs the GL context the window just created.
	v.renderer, err = gpu.NewRenderer(gpu.Config{
		Width:         cfg.Window.Width,
		Height:        cfg.Window.Height,
		MaxGroupPrims: cfg.Meshlet.MaxGroupPrims,
	})
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	v.uploader = gpu.NewUploader()

	v.assets = assets.NewManager(meshlet.LoadOptions{
		Logger:        logger.Named("loader"),
		MaxBufferSize: cfg.Meshlet.MaxBufferSize,
	})
	v.scene = scene.New(v.assets, paths, cfg.Viewer.InstanceLevel, 0)
	if err := v.scene.Load(ctx); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	if err := v.scene.Upload(ctx, v.uploader); err != nil {
		v.Close()
		return nil, fmt.Errorf("failed to upload models: %w", err)
	}
	v.fitCamera()

	if err := v.watch(paths); err != nil {
		v.Close()
		return nil, err
	}

	v.log.Info("viewer initialized")
	return v, nil
}

func (v *Viewer) watch(paths []string) error {
	if !v.cfg.Viewer.Watch {
		return nil
	}
	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			v.log.Warn("closing watcher", zap.Error(err))
		}
		v.watcher = nil
	}

	w, err := watch.New(paths, watch.DefaultSettle)
	if err != nil {
		return fmt.Errorf("failed to watch models: %w", err)
	}
	v.watcher = w
	return nil
}

func (v *Viewer) fitCamera() {
	chain := v.scene.Chain()
	if chain == nil {
		return
	}
	extent := lod.GridWidth(v.scene.Level())
	s := chain.Levels[0].BoundingSphere
	s.Radius *= float32(extent) * (1 + lod.InstancePadding)
	v.camera.FitSphere(s)
}

// Run drives the main loop until the window closes or ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	v.running = true

	frames := 0
	fpsTimer := time.Now()
	var stats gpu.FrameStats

	v.log.Info("starting main loop")
	for v.running {
		if ctx.Err() != nil || v.input.Update() {
			break
		}
		v.handleInput()
		v.pollReload(ctx)
		v.pollOpened(ctx)

		v.renderer.Begin()
		if chain := v.scene.Chain(); chain != nil {
			var err error
			stats, err = v.renderer.DrawChain(v.uploader, chain, v.scene.Instances(), gpu.Frame{
				View:             v.camera.ViewMatrix(),
				Proj:             camera.Projection(v.renderer.Aspect()),
				Eye:              v.camera.Position(),
				RecipTanHalfFovy: camera.RecipTanHalfFovy(),
				Mode:             v.scene.Mode(),
			})
			if err != nil {
				return fmt.Errorf("render error: %w", err)
			}
		}
		if v.capture {
			v.capture = false
			v.saveScreenshot()
		}
		v.window.SwapBuffers()

		frames++
		if time.Since(fpsTimer) >= time.Second {
			v.window.SetTitle(fmt.Sprintf("%s - %s - %d fps - %d/%d instances",
				title, v.scene.Mode(), frames, stats.Instances, len(v.scene.Instances())))
			v.log.Debug("frame stats",
				zap.Int("fps", frames),
				zap.Int("drawn", stats.Instances),
				zap.Int("culled", stats.Culled),
				zap.Int("meshlets", stats.Meshlets),
				zap.Ints("per_level", stats.PerLevel[:]))
			frames = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

func (v *Viewer) handleInput() {
	for _, e := range v.input.Events() {
		switch e.Type {
		case window.EventWindowResize:
			v.renderer.Resize(e.Width, e.Height)
		case window.EventMouseDrag:
			v.camera.HandleDrag(e.DX, e.DY)
		case window.EventMouseWheel:
			v.camera.HandleZoom(e.DY)
		case window.EventKeyDown:
			switch e.Key {
			case sdl.K_ESCAPE:
				v.running = false
			case sdl.K_SPACE:
				v.scene.CycleMode()
			case sdl.K_PLUS, sdl.K_EQUALS, sdl.K_KP_PLUS:
				v.scene.ChangeLevel(1)
			case sdl.K_MINUS, sdl.K_KP_MINUS:
				v.scene.ChangeLevel(-1)
			case sdl.K_f:
				v.fitCamera()
			case sdl.K_o:
				v.openFileDialog()
			case sdl.K_F12:
				v.capture = true
			}
		}
	}

	var forward, right, up float32
	if v.input.KeyHeld(sdl.K_w) {
		forward++
	}
	if v.input.KeyHeld(sdl.K_s) {
		forward--
	}
	if v.input.KeyHeld(sdl.K_d) {
		right++
	}
	if v.input.KeyHeld(sdl.K_a) {
		right--
	}
	if v.input.KeyHeld(sdl.K_e) {
		up++
	}
	if v.input.KeyHeld(sdl.K_q) {
		up--
	}
	if forward != 0 || right != 0 || up != 0 {
		v.camera.HandleMovement(forward, right, up)
	}
}

func (v *Viewer) pollReload(ctx context.Context) {
	if v.watcher == nil {
		return
	}
	select {
	case changed := <-v.watcher.Changed():
		if err := v.scene.Reload(ctx, v.uploader, changed); err != nil {
			v.log.Error("reload failed", zap.Strings("paths", changed), zap.Error(err))
			return
		}
		v.log.Info("models reloaded", zap.Strings("paths", changed))
	default:
	}
}

func (v *Viewer) saveScreenshot() {
	pixels, w, h := v.renderer.ReadPixels()
	name, err := v.shots.Save(pixels, w, h)
	if err != nil {
		v.log.Error("screenshot failed", zap.Error(err))
		return
	}
	v.log.Info("screenshot saved", zap.String("path", name))
}

// openFileDialog shows a native file dialog. The dialog blocks, so it runs
// on its own goroutine and hands the choice to the render thread.
func (v *Viewer) openFileDialog() {
	go func() {
		path, err := dialog.File().
			Filter("Meshlet models", "bin").
			Filter("All Files", "*").
			Title("Open meshlet model").
			Load()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				v.log.Warn("file dialog failed", zap.Error(err))
			}
			return
		}
		select {
		case v.opened <- path:
		default:
		}
	}()
}

func (v *Viewer) pollOpened(ctx context.Context) {
	select {
	case path := <-v.opened:
		if err := v.open(ctx, []string{path}); err != nil {
			v.log.Error("open failed", zap.String("path", path), zap.Error(err))
		}
	default:
	}
}

// open replaces the scene with one showing paths. The current scene stays
// up if the new one fails to load.
func (v *Viewer) open(ctx context.Context, paths []string) error {
	next := scene.New(v.assets, paths, v.scene.Level(), 0)
	if err := next.Load(ctx); err != nil {
		return err
	}

	if err := v.scene.Retire(paths); err != nil {
		v.log.Warn("releasing previous scene", zap.Error(err))
	}

	v.scene = next
	if err := next.Upload(ctx, v.uploader); err != nil {
		return err
	}
	v.fitCamera()
	v.log.Info("opened", zap.Strings("paths", paths))
	return v.watch(paths)
}

// Close releases everything in reverse order of creation.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")

	if v.watcher != nil {
		if err := v.watcher.Close(); err != nil {
			v.log.Warn("closing watcher", zap.Error(err))
		}
	}
	if v.assets != nil {
		if err := v.assets.Close(); err != nil {
			v.log.Warn("releasing models", zap.Error(err))
		}
	}
	if v.uploader != nil {
		v.uploader.Close()
	}
	if v.renderer != nil {
		v.renderer.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
