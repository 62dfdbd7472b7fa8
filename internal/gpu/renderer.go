package gpu

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/pkg/lod"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

var ErrNotResident = errors.New("mesh is not GPU resident")

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
	// MaxGroupPrims is the primitive capacity of one meshlet.
	MaxGroupPrims uint32
}

// Frame carries the per-frame camera state.
type Frame struct {
	View             mgl32.Mat4
	Proj             mgl32.Mat4
	Eye              mgl32.Vec3
	RecipTanHalfFovy float32
	Mode             lod.RenderMode
}

// FrameStats counts what a draw call submitted.
type FrameStats struct {
	Instances int
	Culled    int
	Meshlets  int
	PerLevel  [lod.MaxLevels]int
}

type locations struct {
	meshlets, primitives, uniqueIndices, vertices int32
	viewProj, world, worldInvTranspose            int32
	vertexStride, normalOffset, maxPrims          int32
	renderMode, level, viewPosition               int32
}

// texture units of the meshlet buffers
const (
	unitMeshlets = iota
	unitPrimitives
	unitUniqueIndices
	unitVertices
	unitCount
)

// Renderer draws GPU-resident meshlet models.
type Renderer struct {
	config   Config
	program  uint32
	vao      uint32
	textures [unitCount]uint32
	loc      locations
	log      *zap.Logger
}

// NewRenderer initializes OpenGL and builds the meshlet program.
// It must be called after the GL context is created.
func NewRenderer(cfg Config) (*Renderer, error) {
	if cfg.MaxGroupPrims == 0 {
		cfg.MaxGroupPrims = lod.MaxGroupPrims
	}
	r := &Renderer{config: cfg, log: logger.Named("renderer")}

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	r.log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))))

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)
	gl.Enable(gl.CULL_FACE)
	gl.ClearColor(0.1, 0.1, 0.15, 1.0)
	gl.Viewport(0, 0, int32(cfg.Width), int32(cfg.Height))

	var err error
	r.program, err = CompileProgram("meshlet", meshletVertexShader, meshletFragmentShader)
	if err != nil {
		return nil, err
	}
	r.lookupUniforms()

	// Core profile refuses draws without a bound vertex array, even one
	// with no attributes.
	gl.GenVertexArrays(1, &r.vao)
	gl.GenTextures(unitCount, &r.textures[0])

	r.log.Debug("meshlet program created", zap.Uint32("program", r.program))
	return r, nil
}

// lookupUniforms resolves every uniform of the meshlet program. Names the
// driver optimized away are logged; setting them later is a no-op.
func (r *Renderer) lookupUniforms() {
	l := locator{program: r.program}
	r.loc = locations{
		meshlets:          l.uniform("uMeshlets"),
		primitives:        l.uniform("uPrimitives"),
		uniqueIndices:     l.uniform("uUniqueIndices"),
		vertices:          l.uniform("uVertices"),
		viewProj:          l.uniform("uViewProj"),
		world:             l.uniform("uWorld"),
		worldInvTranspose: l.uniform("uWorldInvTranspose"),
		vertexStride:      l.uniform("uVertexStride"),
		normalOffset:      l.uniform("uNormalOffset"),
		maxPrims:          l.uniform("uMaxPrims"),
		renderMode:        l.uniform("uRenderMode"),
		level:             l.uniform("uLevel"),
		viewPosition:      l.uniform("uViewPosition"),
	}
	if len(l.missing) > 0 {
		r.log.Warn("inactive uniforms", zap.Strings("names", l.missing))
	}
}

// Close releases renderer resources. Buffers belong to the Uploader.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	gl.DeleteTextures(unitCount, &r.textures[0])
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	if r.program != 0 {
		gl.DeleteProgram(r.program)
	}
}

// Resize handles a window resize.
func (r *Renderer) Resize(width, height int) {
	r.config.Width = width
	r.config.Height = height
	gl.Viewport(0, 0, int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Aspect returns the viewport aspect ratio.
func (r *Renderer) Aspect() float32 {
	if r.config.Height == 0 {
		return 1
	}
	return float32(r.config.Width) / float32(r.config.Height)
}

// Begin clears the frame.
func (r *Renderer) Begin() {
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// DrawChain draws every instance whose bounding sphere intersects the view
// frustum, each with the level chosen by lod.SelectLevel.
func (r *Renderer) DrawChain(up *Uploader, chain *lod.Chain, instances []lod.Instance, f Frame) (FrameStats, error) {
	var stats FrameStats
	viewProj := f.Proj.Mul4(f.View)
	frustum := lod.NewFrustum(viewProj)

	gl.UseProgram(r.program)
	gl.BindVertexArray(r.vao)
	defer gl.BindVertexArray(0)

	gl.UniformMatrix4fv(r.loc.viewProj, 1, false, &viewProj[0])
	gl.Uniform3fv(r.loc.viewPosition, 1, &f.Eye[0])
	gl.Uniform1i(r.loc.renderMode, int32(f.Mode))
	gl.Uniform1i(r.loc.maxPrims, int32(r.config.MaxGroupPrims))
	gl.Uniform1i(r.loc.meshlets, unitMeshlets)
	gl.Uniform1i(r.loc.primitives, unitPrimitives)
	gl.Uniform1i(r.loc.uniqueIndices, unitUniqueIndices)
	gl.Uniform1i(r.loc.vertices, unitVertices)

	for _, in := range instances {
		s := in.Sphere()
		if !frustum.ContainsSphere(s) {
			stats.Culled++
			continue
		}
		level := lod.SelectLevel(s, f.Eye, f.RecipTanHalfFovy, chain.Len())
		model := chain.Levels[level]

		gl.UniformMatrix4fv(r.loc.world, 1, false, &in.World[0])
		gl.UniformMatrix4fv(r.loc.worldInvTranspose, 1, false, &in.WorldInvTranspose[0])
		gl.Uniform1i(r.loc.level, int32(level))

		for i, mesh := range model.Meshes {
			n, err := r.drawMesh(up, mesh)
			if err != nil {
				return stats, fmt.Errorf("level %d mesh %d: %w", level, i, err)
			}
			stats.Meshlets += n
		}
		stats.Instances++
		stats.PerLevel[level]++
	}
	return stats, nil
}

func (r *Renderer) drawMesh(up *Uploader, mesh *meshlet.Mesh) (int, error) {
	if err := lod.CheckLayout(mesh.Layout); err != nil {
		return 0, err
	}
	_, normalOffset, _ := mesh.ElementOffset(meshlet.SemanticNormal)

	ids := [unitCount]uint32{}
	keys := [unitCount]meshlet.BufferKey{
		unitMeshlets:      {Usage: meshlet.UsageMeshlet},
		unitPrimitives:    {Usage: meshlet.UsagePrimitiveIndex},
		unitUniqueIndices: {Usage: meshlet.UsageUniqueVertexIndex},
		unitVertices:      {Usage: meshlet.UsageVertex, Slot: 0},
	}
	for unit, key := range keys {
		h, ok := mesh.GPUHandle(key)
		if !ok {
			return 0, fmt.Errorf("%w: no %s buffer", ErrNotResident, key.Usage)
		}
		if ids[unit], ok = up.BufferID(h); !ok {
			return 0, fmt.Errorf("%w: %s buffer handle %d", ErrUnknownHandle, key.Usage, h)
		}
	}

	indexFormat := uint32(gl.R32UI)
	if mesh.IndexSize == 2 {
		indexFormat = gl.R16UI
	}
	formats := [unitCount]uint32{
		unitMeshlets:      gl.RGBA32UI,
		unitPrimitives:    gl.R32UI,
		unitUniqueIndices: indexFormat,
		unitVertices:      gl.R32F,
	}
	for unit := range unitCount {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
		gl.BindTexture(gl.TEXTURE_BUFFER, r.textures[unit])
		gl.TexBuffer(gl.TEXTURE_BUFFER, formats[unit], ids[unit])
	}

	gl.Uniform1i(r.loc.vertexStride, int32(mesh.VertexStrides[0]/4))
	gl.Uniform1i(r.loc.normalOffset, int32(normalOffset/4))

	count := mesh.Meshlets.Len()
	if count > 0 {
		gl.DrawArrays(gl.TRIANGLES, 0, int32(count)*int32(r.config.MaxGroupPrims)*3)
	}
	return count, nil
}

// ReadPixels reads the back buffer as bottom-up RGBA rows.
func (r *Renderer) ReadPixels() ([]byte, int, int) {
	w, h := r.config.Width, r.config.Height
	pixels := make([]byte, w*h*4)
	if len(pixels) == 0 {
		return pixels, w, h
	}
	gl.ReadBuffer(gl.BACK)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return pixels, w, h
}
