package fileops

import (
	"context"

	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
)

// CopyOptions controls CopyFile
type CopyOptions struct {
	Overwrite     bool // replace an existing destination
	PreserveTimes bool // copy the source modification time
	Sync          bool // fsync the copy before it becomes visible
}

// FileOperations defines the interface for the file operations used by
// the snapshot store
type FileOperations interface {
	common.PerformanceMetrics
	CopyFile(ctx context.Context, srcPath, dstPath string, opts CopyOptions) (int64, error)
	DeleteFile(ctx context.Context, path string) error
}

var _ FileOperations = (*FileOps)(nil)
