// Package upload provides a host-memory implementation of meshlet.Uploader.
// It copies every logical buffer into its own zero-padded allocation, which
// is what a GPU upload heap would receive, and is used for dry runs and tests.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/pkg/meshlet"
)

var (
	ErrUnknownHandle = errors.New("unknown buffer handle")
	ErrBudget        = errors.New("staging budget exceeded")
)

// Buffer is one staged buffer.
type Buffer struct {
	Mesh int
	meshlet.BufferKey
	Stride uint32
	Data   []byte
}

// Stats summarizes live staged buffers.
type Stats struct {
	Buffers int
	Bytes   uint64
	ByUsage map[meshlet.Usage]uint64
}

// Staging is a meshlet.Uploader backed by host memory. It is safe for
// concurrent use.
type Staging struct {
	mu      sync.Mutex
	bufs    map[meshlet.Handle]*Buffer
	next    meshlet.Handle
	bytes   uint64
	budget  uint64
	log     *zap.Logger
	uploads int
}

// Option configures a Staging uploader.
type Option func(*Staging)

// WithBudget limits the total live bytes. Zero means unlimited.
func WithBudget(n uint64) Option {
	return func(s *Staging) { s.budget = n }
}

// WithLogger sets the logger used for upload summaries.
func WithLogger(l *zap.Logger) Option {
	return func(s *Staging) { s.log = l }
}

// NewStaging creates an empty staging uploader.
func NewStaging(opts ...Option) *Staging {
	s := &Staging{
		bufs: make(map[meshlet.Handle]*Buffer),
		log:  zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Upload copies bufs and returns one handle per buffer. Either every buffer
// is staged or none is.
func (s *Staging) Upload(ctx context.Context, mesh int, bufs []meshlet.LogicalBuffer) ([]meshlet.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var total uint64
	for i, b := range bufs {
		if uint32(len(b.Data)) > b.Size {
			return nil, fmt.Errorf("buffer %d (%s): %d bytes of data exceed size %d", i, b.Usage, len(b.Data), b.Size)
		}
		total += uint64(b.Size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.budget > 0 && s.bytes+total > s.budget {
		return nil, fmt.Errorf("%w: mesh %d needs %d bytes, %d of %d in use", ErrBudget, mesh, total, s.bytes, s.budget)
	}

	handles := make([]meshlet.Handle, len(bufs))
	for i, b := range bufs {
		data := make([]byte, b.Size)
		copy(data, b.Data)

		s.next++
		s.bufs[s.next] = &Buffer{Mesh: mesh, BufferKey: b.BufferKey, Stride: b.Stride, Data: data}
		handles[i] = s.next
	}
	s.bytes += total
	s.uploads++

	s.log.Debug("mesh staged",
		zap.Int("mesh", mesh),
		zap.Int("buffers", len(bufs)),
		zap.Uint64("bytes", total))
	return handles, nil
}

// Release frees a staged buffer.
func (s *Staging) Release(h meshlet.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bufs[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	delete(s.bufs, h)
	s.bytes -= uint64(len(b.Data))
	return nil
}

// Buffer returns the staged buffer for h.
func (s *Staging) Buffer(h meshlet.Handle) (*Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bufs[h]
	return b, ok
}

// Uploads returns how many successful Upload calls were made.
func (s *Staging) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

// Stats returns a snapshot of the live buffers.
func (s *Staging) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Buffers: len(s.bufs),
		Bytes:   s.bytes,
		ByUsage: make(map[meshlet.Usage]uint64),
	}
	for _, b := range s.bufs {
		st.ByUsage[b.Usage] += uint64(len(b.Data))
	}
	return st
}
