// Package gpu implements the meshlet upload boundary and a meshlet renderer on
// OpenGL 4.1. Every function must be called on the thread that owns the GL
// context.
package gpu

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshlod/internal/logger"
	"github.com/Faultbox/meshlod/pkg/meshlet"
)

var (
	ErrUnknownHandle = errors.New("unknown buffer handle")
	ErrFence         = errors.New("waiting for upload fence failed")
)

// fenceTimeout is how long one ClientWaitSync call may block before the
// context is checked again.
const fenceTimeout = 100 * time.Millisecond

type buffer struct {
	id   uint32
	size uint32
	key  meshlet.BufferKey
}

// Uploader creates one GL buffer object per logical buffer.
type Uploader struct {
	buffers map[meshlet.Handle]buffer
	next    meshlet.Handle
	bytes   uint64
	log     *zap.Logger
}

// NewUploader returns an uploader for the current GL context.
func NewUploader() *Uploader {
	return &Uploader{
		buffers: make(map[meshlet.Handle]buffer),
		log:     logger.Named("gpu"),
	}
}

// Upload copies bufs into new buffer objects and blocks on a fence until the
// copies have completed.
func (u *Uploader) Upload(ctx context.Context, mesh int, bufs []meshlet.LogicalBuffer) ([]meshlet.Handle, error) {
	if len(bufs) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make([]uint32, len(bufs))
	gl.GenBuffers(int32(len(ids)), &ids[0])

	var total uint64
	for i, b := range bufs {
		data := b.Data
		if uint32(len(data)) < b.Size {
			data = make([]byte, b.Size)
			copy(data, b.Data)
		}

		gl.BindBuffer(gl.COPY_WRITE_BUFFER, ids[i])
		if len(data) == 0 {
			gl.BufferData(gl.COPY_WRITE_BUFFER, 0, nil, gl.STATIC_DRAW)
		} else {
			gl.BufferData(gl.COPY_WRITE_BUFFER, int(b.Size), gl.Ptr(data), gl.STATIC_DRAW)
		}
		total += uint64(b.Size)
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		gl.DeleteBuffers(int32(len(ids)), &ids[0])
		return nil, fmt.Errorf("mesh %d: glBufferData failed with 0x%x", mesh, code)
	}

	if err := waitFence(ctx); err != nil {
		gl.DeleteBuffers(int32(len(ids)), &ids[0])
		return nil, fmt.Errorf("mesh %d: %w", mesh, err)
	}

	handles := make([]meshlet.Handle, len(bufs))
	for i, b := range bufs {
		u.next++
		u.buffers[u.next] = buffer{id: ids[i], size: b.Size, key: b.BufferKey}
		handles[i] = u.next
	}
	u.bytes += total

	u.log.Debug("mesh uploaded",
		zap.Int("mesh", mesh),
		zap.Int("buffers", len(bufs)),
		zap.Uint64("bytes", total))
	return handles, nil
}

// waitFence blocks until all previously issued GL commands have completed.
func waitFence(ctx context.Context) error {
	sync := gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	defer gl.DeleteSync(sync)

	flags := uint32(gl.SYNC_FLUSH_COMMANDS_BIT)
	for {
		switch gl.ClientWaitSync(sync, flags, uint64(fenceTimeout.Nanoseconds())) {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
			return nil
		case gl.WAIT_FAILED:
			return ErrFence
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		flags = 0
	}
}

// Release deletes the buffer object behind h.
func (u *Uploader) Release(h meshlet.Handle) error {
	b, ok := u.buffers[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	gl.DeleteBuffers(1, &b.id)
	delete(u.buffers, h)
	u.bytes -= uint64(b.size)
	return nil
}

// BufferID returns the GL name of the buffer behind h.
func (u *Uploader) BufferID(h meshlet.Handle) (uint32, bool) {
	b, ok := u.buffers[h]
	return b.id, ok
}

// Resident returns the number of live buffers and their total size.
func (u *Uploader) Resident() (buffers int, bytes uint64) {
	return len(u.buffers), u.bytes
}

// Close deletes every remaining buffer.
func (u *Uploader) Close() {
	if len(u.buffers) > 0 {
		u.log.Warn("deleting buffers still resident", zap.Int("buffers", len(u.buffers)))
	}
	for h, b := range u.buffers {
		gl.DeleteBuffers(1, &b.id)
		delete(u.buffers, h)
	}
	u.bytes = 0
}
