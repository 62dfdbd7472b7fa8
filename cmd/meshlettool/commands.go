package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/internal/upload"
	"github.com/Faultbox/meshlod/pkg/lod"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

func loadOptions(path string) meshlet.LoadOptions {
	return meshlet.LoadOptions{Logger: logger.Model(path)}
}

func layoutString(layout []meshlet.InputElement) string {
	parts := make([]string, len(layout))
	for i, e := range layout {
		parts[i] = fmt.Sprintf("%s:%s@%d", e.SemanticName, e.Format, e.InputSlot)
	}
	return strings.Join(parts, " ")
}

func sphereString(s meshlet.Sphere) string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f) r=%.3f", s.Center.X(), s.Center.Y(), s.Center.Z(), s.Radius)
}

func cmdInfo(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("info")
	if err := parse(fs, verbose, args, 1, "info <file.bin>"); err != nil {
		return err
	}
	path := fs.Arg(0)

	c, err := meshlet.ReadContainerFile(path)
	if err != nil {
		return err
	}
	m, err := meshlet.NewModel(c, loadOptions(path))
	if err != nil {
		return err
	}
	defer m.Release()

	var verts, indices, meshlets, prims int
	for _, mesh := range m.Meshes {
		verts += int(mesh.VertexCount)
		indices += int(mesh.IndexCount)
		meshlets += mesh.Meshlets.Len()
		prims += mesh.PrimitiveIndices.Len()
	}

	fmt.Fprintf(out, "File:         %s\n", path)
	fmt.Fprintf(out, "Version:      %d\n", c.Header.Version)
	fmt.Fprintf(out, "Meshes:       %d\n", c.Header.MeshCount)
	fmt.Fprintf(out, "Accessors:    %d\n", c.Header.AccessorCount)
	fmt.Fprintf(out, "Buffer views: %d\n", c.Header.BufferViewCount)
	fmt.Fprintf(out, "Buffer size:  %d bytes\n", c.Header.BufferSize)
	fmt.Fprintf(out, "Vertices:     %d\n", verts)
	fmt.Fprintf(out, "Indices:      %d\n", indices)
	fmt.Fprintf(out, "Meshlets:     %d\n", meshlets)
	fmt.Fprintf(out, "Primitives:   %d\n", prims)
	fmt.Fprintf(out, "Bounds:       %s\n", sphereString(m.BoundingSphere))
	return nil
}

func cmdMeshes(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("meshes")
	if err := parse(fs, verbose, args, 1, "meshes <file.bin>"); err != nil {
		return err
	}

	m, err := meshlet.LoadModelFile(fs.Arg(0), loadOptions(fs.Arg(0)))
	if err != nil {
		return err
	}
	defer m.Release()

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESH\tVERTS\tINDICES\tMESHLETS\tSUBSETS\tSLOTS\tLAYOUT\tBOUNDS")
	for i, mesh := range m.Meshes {
		fmt.Fprintf(tw, "%d\t%d\t%dx%d\t%d\t%d\t%d\t%s\t%s\n",
			i, mesh.VertexCount, mesh.IndexCount, mesh.IndexSize,
			mesh.Meshlets.Len(), mesh.MeshletSubsets.Len(), mesh.NumVertexViews(),
			layoutString(mesh.Layout), sphereString(mesh.BoundingSphere))
	}
	return tw.Flush()
}

func cmdValidate(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("validate")
	jobs := fs.Int("j", 4, "Number of files loaded in parallel")
	if err := parse(fs, verbose, args, 1, "validate [-j N] <file.bin>..."); err != nil {
		return err
	}

	paths := fs.Args()
	results := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(max(1, *jobs))
	for i, path := range paths {
		g.Go(func() error {
			m, err := meshlet.LoadModelFile(path, loadOptions(path))
			if err == nil {
				err = m.Release()
			}
			results[i] = err
			return nil
		})
	}
	g.Wait()

	failed := 0
	for i, err := range results {
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL  %s: %v\n", paths[i], err)
		} else {
			fmt.Fprintf(out, "OK    %s\n", paths[i])
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(paths))
	}
	return nil
}

func cmdRewrite(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("rewrite")
	if err := parse(fs, verbose, args, 2, "rewrite <in.bin> <out.bin>"); err != nil {
		return err
	}

	m, err := meshlet.LoadModelFile(fs.Arg(0), loadOptions(fs.Arg(0)))
	if err != nil {
		return err
	}
	defer m.Release()

	c, err := m.Container()
	if err != nil {
		return err
	}
	if err := meshlet.WriteContainerFile(fs.Arg(1), c); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (%d meshes, %d payload bytes)\n", fs.Arg(1), len(c.Meshes), len(c.Buffer))
	return nil
}

func cmdPackCount(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("packcount")
	meshIndex := fs.Int("mesh", 0, "Mesh index")
	subset := fs.Uint("subset", 0, "Meshlet subset index")
	maxVerts := fs.Uint("verts", lod.MaxGroupVerts, "Vertex capacity of a threadgroup")
	maxPrims := fs.Uint("prims", lod.MaxGroupPrims, "Primitive capacity of a threadgroup")
	if err := parse(fs, verbose, args, 1, "packcount [-mesh i] [-subset j] <file.bin>"); err != nil {
		return err
	}

	m, err := meshlet.LoadModelFile(fs.Arg(0), loadOptions(fs.Arg(0)))
	if err != nil {
		return err
	}
	defer m.Release()

	if *meshIndex < 0 || *meshIndex >= len(m.Meshes) {
		return fmt.Errorf("%w: mesh %d of %d", meshlet.ErrIndexOutOfRange, *meshIndex, len(m.Meshes))
	}
	mesh := m.Meshes[*meshIndex]

	n, err := meshlet.LastMeshletPackCount(mesh.Meshlets, mesh.MeshletSubsets,
		uint32(*subset), uint32(*maxVerts), uint32(*maxPrims))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d\n", n)
	return nil
}

func cmdUpload(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("upload")
	budget := fs.Uint64("budget", 0, "Staging budget in bytes (0 = unlimited)")
	if err := parse(fs, verbose, args, 1, "upload [-budget bytes] <file.bin>"); err != nil {
		return err
	}

	m, err := meshlet.LoadModelFile(fs.Arg(0), loadOptions(fs.Arg(0)))
	if err != nil {
		return err
	}
	defer m.Release()

	staging := upload.NewStaging(upload.WithBudget(*budget), upload.WithLogger(logger.Named("staging")))
	if err := m.Upload(context.Background(), staging); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESH\tBUFFER\tSLOT\tSTRIDE\tSIZE")
	for i, mesh := range m.Meshes {
		bufs, err := mesh.LogicalBuffers()
		if err != nil {
			return err
		}
		for _, b := range bufs {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n", i, b.Usage, b.Slot, b.Stride, b.Size)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	st := staging.Stats()
	fmt.Fprintf(out, "Staged %d buffers, %d bytes\n", st.Buffers, st.Bytes)
	return m.Release()
}

func cmdLODs(out io.Writer, args []string) error {
	fs, verbose := newFlagSet("lods")
	level := fs.Uint("level", 0, "Instance grid level")
	jobs := fs.Int("j", 0, "Number of levels loaded in parallel (0 = GOMAXPROCS)")
	if err := parse(fs, verbose, args, 1, "lods [-level n] <lod0.bin>..."); err != nil {
		return err
	}
	if *level > lod.MaxGridLevel {
		return fmt.Errorf("%w: -level %d is above %d", errUsage, *level, lod.MaxGridLevel)
	}

	chain, err := lod.LoadChain(context.Background(), fs.Args(), lod.Options{
		LoadOptions: meshlet.LoadOptions{Logger: logger.Named("lod")},
		Concurrency: *jobs,
	})
	if err != nil {
		return err
	}
	defer chain.Release()

	if err := chain.ValidateLayout(); err != nil {
		return err
	}
	infos, err := chain.MeshInfos()
	if err != nil {
		return err
	}
	packs, err := chain.PackCounts()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEVEL\tMESHLETS\tINDEX\tLAST\tPACK\tRADIUS\tFILE")
	for i, info := range infos {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d/%d\t%d\t%.3f\t%s\n",
			i, info.MeshletCount, info.IndexSize,
			info.LastMeshletVertCount, info.LastMeshletPrimCount, packs[i],
			chain.Levels[i].BoundingSphere.Radius, chain.Paths[i])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Instances at level %d: %d (grid %d)\n",
		*level, lod.InstanceCount(uint32(*level)), lod.GridWidth(uint32(*level)))
	return nil
}
