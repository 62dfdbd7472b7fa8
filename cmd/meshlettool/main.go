// meshlettool is a CLI utility for inspecting and checking meshlet model files.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/meshlod/internal/logger"
)

var errUsage = errors.New("usage")

func main() {
	err := run(os.Args[1:], os.Stdout)
	logger.Sync()
	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return errUsage
	}

	command := args[0]
	args = args[1:]

	switch command {
	case "info":
		return cmdInfo(out, args)
	case "meshes", "ls":
		return cmdMeshes(out, args)
	case "validate", "check":
		return cmdValidate(out, args)
	case "rewrite":
		return cmdRewrite(out, args)
	case "packcount":
		return cmdPackCount(out, args)
	case "upload":
		return cmdUpload(out, args)
	case "lods":
		return cmdLODs(out, args)
	case "help", "-h", "--help":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		return errUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `meshlettool - meshlet model file utility

Usage:
  meshlettool <command> [options]

Commands:
  info <file.bin>                       Show container and model summary
  meshes <file.bin>                     List meshes with layout and bounds
  validate [-j N] <file.bin>...         Load files concurrently and report failures
  rewrite <in.bin> <out.bin>            Load and re-serialize a model
  packcount [-mesh i] [-subset j] <file.bin>
                                        Copies of the last meshlet per threadgroup
  upload [-budget bytes] <file.bin>     Stage a model in host memory and list its buffers
  lods [-level n] <lod0.bin>...         Load an LOD chain and check it against the shader layout

All commands accept -v for debug logging.

Examples:
  meshlettool info assets/dragon_lod0.bin
  meshlettool validate -j 4 assets/*.bin
  meshlettool lods -level 3 assets/dragon_lod*.bin`)
}

// newFlagSet returns a flag set carrying the shared -v flag.
func newFlagSet(name string) (*flag.FlagSet, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	verbose := fs.Bool("v", false, "Enable debug logging")
	return fs, verbose
}

// parse parses args and enables logging when -v was given.
func parse(fs *flag.FlagSet, verbose *bool, args []string, minArgs int, usage string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Usage: meshlettool "+usage)
		return errUsage
	}
	if *verbose {
		if err := logger.Init("debug", ""); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}
	return nil
}
