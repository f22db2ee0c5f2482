package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/franksops/grabsync/content"
	"github.com/franksops/grabsync/provider"
)

// DefaultBufferSize is the default size of byte buffers allocated for file transfers.
const DefaultBufferSize = 1 * 1024 * 1024

// bufferPool manages reusable copy buffers shared by all workers.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool(size int) *bufferPool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &bufferPool{
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

func (bp *bufferPool) get() *[]byte { return bp.pool.Get().(*[]byte) }

func (bp *bufferPool) put(b *[]byte) {
	if b != nil {
		bp.pool.Put(b)
	}
}

// transferResult describes one written file.
type transferResult struct {
	Bytes   int64
	Dropped int
}

// transferer copies single items between providers. Node property documents
// are filtered so only transferable properties reach the destination.
type transferer struct {
	src     provider.Provider
	dst     provider.Provider
	buffers *bufferPool
}

func (t *transferer) transfer(ctx context.Context, job TransferJob) (transferResult, error) {
	r, err := t.src.OpenRead(ctx, job.Path)
	if err != nil {
		return transferResult{}, fmt.Errorf("failed to open source %s: %w", job.Path, err)
	}
	defer r.Close()

	if content.IsDocument(job.Path) {
		return t.transferDocument(ctx, job, r)
	}

	w, err := t.dst.OpenWrite(ctx, job.Path, job.FileInfo)
	if err != nil {
		return transferResult{}, fmt.Errorf("failed to open destination %s: %w", job.Path, err)
	}

	buf := t.buffers.get()
	defer t.buffers.put(buf)

	n, err := io.CopyBuffer(w, r, *buf)
	if err != nil {
		w.Close()
		return transferResult{}, fmt.Errorf("transfer of %s failed: %w", job.Path, err)
	}
	if err := w.Close(); err != nil {
		return transferResult{}, fmt.Errorf("failed to close destination %s: %w", job.Path, err)
	}
	return transferResult{Bytes: n}, nil
}

func (t *transferer) transferDocument(ctx context.Context, job TransferJob, r io.Reader) (transferResult, error) {
	node, err := content.Decode(r)
	if err != nil {
		return transferResult{}, fmt.Errorf("%s: %w", job.Path, err)
	}
	filtered, dropped := node.Filter()

	var out bytes.Buffer
	if err := filtered.Encode(&out); err != nil {
		return transferResult{}, fmt.Errorf("failed to encode %s: %w", job.Path, err)
	}

	w, err := t.dst.OpenWrite(ctx, job.Path, job.FileInfo)
	if err != nil {
		return transferResult{}, fmt.Errorf("failed to open destination %s: %w", job.Path, err)
	}
	n, err := out.WriteTo(w)
	if err != nil {
		w.Close()
		return transferResult{}, fmt.Errorf("transfer of %s failed: %w", job.Path, err)
	}
	if err := w.Close(); err != nil {
		return transferResult{}, fmt.Errorf("failed to close destination %s: %w", job.Path, err)
	}
	return transferResult{Bytes: n, Dropped: dropped}, nil
}

// WorkflowTrigger starts a post-transfer workflow on the client repository.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, workflowConfigID, path string) error
}

// LogWorkflowTrigger records workflow requests in the log. It is used when no
// workflow engine is configured.
type LogWorkflowTrigger struct {
	Logger *slog.Logger
}

func (l LogWorkflowTrigger) Trigger(ctx context.Context, workflowConfigID, path string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "workflow requested", "workflow", workflowConfigID, "path", path)
	return nil
}
