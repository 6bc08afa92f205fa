package common

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ChecksumSHA256 is the digest algorithm accepted by FileUtils.CalculateChecksum
const ChecksumSHA256 = "sha256"

// PathUtils provides path manipulation utilities used across filesystem packages
type PathUtils struct{}

// NewPathUtils creates a new PathUtils instance
func NewPathUtils() *PathUtils {
	return &PathUtils{}
}

// NormalizePath normalizes a file path for cross-platform compatibility
func (pu *PathUtils) NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// ValidatePath validates that a path is safe and accessible
func (pu *PathUtils) ValidatePath(path string) error {
	if path == "" {
		return ErrPathEmpty
	}
	if strings.Contains(path, "\x00") {
		return ErrPathInvalid
	}
	if len(path) > 4096 {
		return ErrPathTooLong
	}
	return nil
}

// FileUtils provides file content helpers
type FileUtils struct{}

// NewFileUtils creates a new FileUtils instance
func NewFileUtils() *FileUtils {
	return &FileUtils{}
}

// CalculateChecksum returns the hex digest of the file content
func (fu *FileUtils) CalculateChecksum(path string, algorithm string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	var hasher hash.Hash
	switch strings.ToLower(algorithm) {
	case ChecksumSHA256:
		hasher = sha256.New()
	default:
		return "", fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}

	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum for %s: %w", path, err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// SameContent reports whether two files have equal digests
func (fu *FileUtils) SameContent(a, b, algorithm string) (bool, error) {
	da, err := fu.CalculateChecksum(a, algorithm)
	if err != nil {
		return false, err
	}
	db, err := fu.CalculateChecksum(b, algorithm)
	if err != nil {
		return false, err
	}
	return da == db, nil
}
