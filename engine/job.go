package engine

import (
	"github.com/franksops/grabsync/provider"
)

// TransferJob is one file of a content tree to copy from the source to the
// client repository. Node property documents are filtered on the way.
type TransferJob struct {
	// ID identifies this item in logs.
	ID string

	// ExecutionID is the job execution the item belongs to.
	ExecutionID int64

	// Path is the content path, identical on source and destination.
	Path string

	// FileInfo holds the source metadata preserved at the destination.
	FileInfo provider.FileInfo
}

// JobChannel is a channel used to queue and dispatch TransferJobs to workers
// in the worker pool.
type JobChannel chan TransferJob
