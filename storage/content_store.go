package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ContentStore is the content-addressed audio file store. Files are named by
// their hash and sharded by the first two hash characters to bound directory
// fan-out:
//
//	<root>/ab/abcdef...123.mp3
type ContentStore struct {
	root string
}

// NewContentStore creates the store root if needed.
func NewContentStore(root string) (*ContentStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content store root %s: %w", root, err)
	}
	return &ContentStore{root: root}, nil
}

// Root returns the store root directory.
func (s *ContentStore) Root() string { return s.root }

// HashFile stream-hashes a file with SHA-1. Collision resistance is the goal
// here, not security.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// PathFor returns the canonical store path for a hash and source filename.
// The original extension is preserved, lower-cased.
func (s *ContentStore) PathFor(hash, srcPath string) string {
	ext := strings.ToLower(filepath.Ext(srcPath))
	return filepath.Join(s.root, hash[:2], hash+ext)
}

// Put copies srcPath into the store under the given hash. The copy goes to a
// temp file first and is renamed into place, so a failure mid-write never
// leaves a partial file at the canonical path. Putting an already-stored hash
// is a no-op.
func (s *ContentStore) Put(srcPath, hash string) (string, error) {
	dest := s.PathFor(hash, srcPath)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create shard directory for %s: %w", hash, err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file %s: %w", srcPath, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+hash+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", hash, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to copy %s into content store: %w", srcPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to finalize copy of %s: %w", srcPath, err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move %s into place: %w", srcPath, err)
	}
	return dest, nil
}

// ObjectName returns the bucket object key used by the archive mirror for a
// stored file.
func (s *ContentStore) ObjectName(storePath string) string {
	rel, err := filepath.Rel(s.root, storePath)
	if err != nil {
		return filepath.Base(storePath)
	}
	return filepath.ToSlash(rel)
}
