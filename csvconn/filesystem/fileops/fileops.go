package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/openstandia/connector-csv/csvconn/filesystem/common"
)

// ErrDestinationExists is returned when CopyFile would overwrite a file
var ErrDestinationExists = errors.New("destination already exists")

// FileOps provides low-level file system operations
type FileOps struct {
	metrics    *common.FileOperationMetrics
	pathUtils  *common.PathUtils
	validation *common.ValidationUtils
}

// NewFileOps creates a new file operations instance
func NewFileOps() *FileOps {
	return &FileOps{
		metrics:    &common.FileOperationMetrics{},
		pathUtils:  common.NewPathUtils(),
		validation: common.NewValidationUtils(),
	}
}

// CopyFile copies srcPath to dstPath through a temporary file in the
// destination directory, so dstPath only ever holds a complete copy.
// It returns the number of bytes copied.
func (fo *FileOps) CopyFile(ctx context.Context, srcPath, dstPath string, opts CopyOptions) (n int64, err error) {
	start := time.Now()
	defer func() { fo.metrics.UpdateMetrics(start, err == nil, n) }()

	if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
		return 0, err
	}
	if err := fo.pathUtils.ValidatePath(srcPath); err != nil {
		return 0, fmt.Errorf("invalid source path: %w", err)
	}
	if err := fo.pathUtils.ValidatePath(dstPath); err != nil {
		return 0, fmt.Errorf("invalid destination path: %w", err)
	}
	if fo.pathUtils.NormalizePath(srcPath) == fo.pathUtils.NormalizePath(dstPath) {
		return 0, fmt.Errorf("source and destination are the same: %s", srcPath)
	}
	if !opts.Overwrite {
		if _, statErr := os.Stat(dstPath); statErr == nil {
			return 0, fmt.Errorf("%w: %s", ErrDestinationExists, dstPath)
		}
	}

	src, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", common.ErrSourceNotExist, srcPath)
		}
		return 0, fmt.Errorf("failed to open source file: %w", err)
	}
	defer src.Close()

	srcInfo, err := src.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat source file: %w", err)
	}

	dstDir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(dstDir, "."+filepath.Base(dstPath)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	n, err = io.Copy(tmp, &contextReader{ctx: ctx, r: src})
	if err != nil {
		return n, fmt.Errorf("failed to copy file from %s to %s: %w", srcPath, dstPath, err)
	}
	if opts.Sync {
		if err = tmp.Sync(); err != nil {
			return n, fmt.Errorf("failed to sync %s: %w", tmpPath, err)
		}
	}
	if err = tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if opts.PreserveTimes {
		if err = os.Chtimes(tmpPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
			return n, fmt.Errorf("failed to preserve times: %w", err)
		}
	}
	if err = os.Rename(tmpPath, dstPath); err != nil {
		return n, fmt.Errorf("failed to move %s into place: %w", tmpPath, err)
	}

	return n, nil
}

// DeleteFile deletes a single file
func (fo *FileOps) DeleteFile(ctx context.Context, path string) (err error) {
	start := time.Now()
	defer func() { fo.metrics.UpdateMetrics(start, err == nil, 0) }()

	if err := fo.validation.ValidateContextCancellation(ctx); err != nil {
		return err
	}
	if err := fo.pathUtils.ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s: %w", path, err)
		}
		return fmt.Errorf("failed to delete file %s: %w", path, err)
	}

	return nil
}

// GetMetrics returns performance metrics
func (fo *FileOps) GetMetrics() map[string]interface{} {
	return fo.metrics.GetMetrics()
}

// contextReader stops a copy once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
