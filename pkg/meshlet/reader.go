package meshlet

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxBufferSize bounds the raw payload a container may declare.
const DefaultMaxBufferSize uint32 = 1 << 30

const (
	// tableChunk is the number of table records decoded per read.
	tableChunk = 4096
	// preallocLimit caps the up-front payload allocation; larger payloads grow
	// as bytes actually arrive so a lying header cannot force a huge allocation.
	preallocLimit = 64 << 20
)

// ReadContainer reads a meshlet container from r. It validates the header and
// the section lengths but not the cross-references between tables.
func ReadContainer(r io.Reader) (*Container, error) {
	return readContainer(r, DefaultMaxBufferSize)
}

// ReadContainerFile reads a meshlet container from disk.
func ReadContainerFile(path string) (*Container, error) {
	return readContainerFile(path, DefaultMaxBufferSize)
}

func readContainerFile(path string, maxBufferSize uint32) (*Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening meshlet file: %w", err)
	}
	defer f.Close()

	return readContainer(bufio.NewReader(f), maxBufferSize)
}

func readContainer(r io.Reader, maxBufferSize uint32) (*Container, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, readErr("header", err)
	}

	h := decodeHeader(hdr[:])
	if h.Prolog != Prolog {
		return nil, fmt.Errorf("%w: got 0x%08X", ErrInvalidProlog, h.Prolog)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	c := &Container{Header: h}

	var err error
	c.Meshes, err = readTable(r, h.MeshCount, MeshHeaderSize, decodeMeshHeader, "mesh headers")
	if err != nil {
		return nil, err
	}
	c.Accessors, err = readTable(r, h.AccessorCount, AccessorSize, decodeAccessor, "accessors")
	if err != nil {
		return nil, err
	}
	c.BufferViews, err = readTable(r, h.BufferViewCount, BufferViewSize, decodeBufferView, "buffer views")
	if err != nil {
		return nil, err
	}

	if maxBufferSize == 0 {
		maxBufferSize = DefaultMaxBufferSize
	}
	if h.BufferSize > maxBufferSize {
		return nil, fmt.Errorf("%w: buffer size %d exceeds limit %d", ErrOutOfMemory, h.BufferSize, maxBufferSize)
	}

	var raw bytes.Buffer
	raw.Grow(min(int(h.BufferSize), preallocLimit))
	n, err := raw.ReadFrom(io.LimitReader(r, int64(h.BufferSize)))
	if err != nil {
		return nil, readErr("buffer", err)
	}
	if n != int64(h.BufferSize) {
		return nil, fmt.Errorf("%w: buffer has %d of %d bytes", ErrTruncated, n, h.BufferSize)
	}
	c.Buffer = raw.Bytes()

	// A single byte probe past the payload. Anything readable is rejected.
	var probe [1]byte
	n2, err := io.ReadFull(r, probe[:])
	if n2 > 0 {
		return nil, ErrTrailingData
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("checking end of file: %w", err)
	}

	return c, nil
}

func readTable[T any](r io.Reader, count uint32, recSize int, decode func([]byte) T, section string) ([]T, error) {
	total := int(count)
	out := make([]T, 0, min(total, tableChunk))
	buf := make([]byte, recSize*min(total, tableChunk))

	for remaining := total; remaining > 0; {
		n := min(remaining, tableChunk)
		chunk := buf[:n*recSize]
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, readErr(section, err)
		}
		for i := 0; i < n; i++ {
			out = append(out, decode(chunk[i*recSize:]))
		}
		remaining -= n
	}
	return out, nil
}

func readErr(section string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: reading %s", ErrTruncated, section)
	}
	return fmt.Errorf("reading %s: %w", section, err)
}
