// Package blobstore keeps receipt and Z-read documents as opaque blobs.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"go.uber.org/zap"
)

var (
	ErrInvalidPath  = errors.New("invalid_blob_path")
	ErrBlobNotFound = errors.New("blob_not_found")
	ErrEmptyBlob    = errors.New("empty_blob")
)

const defaultRoot = "storage/documents"

// Store persists bytes under a name and returns the path to read them back with.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
}

type FileStore struct {
	root  string
	clock clock.Clock
	log   *zap.Logger
}

func NewFileStore(cfg config.Config, clk clock.Clock, log *zap.Logger) (Store, error) {
	root := strings.TrimSpace(cfg.BlobStorageDir)
	if root == "" {
		root = defaultRoot
	}
	return newFileStore(root, clk, log)
}

func newFileStore(root string, clk clock.Clock, log *zap.Logger) (*FileStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FileStore{root: abs, clock: clk, log: log.Named("blobstore")}, nil
}

// Put writes to a temp file and renames it into place, so readers never see a partial
// blob. The same name on the same day overwrites.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", ErrEmptyBlob
	}

	file := blobName(name)
	if file == "" {
		return "", ErrInvalidPath
	}
	rel := path.Join(s.clock.Now().Format("2006/01/02"), file)

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, full); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	s.log.Debug("blob stored", zap.String("path", rel), zap.Int("bytes", len(data)))
	return rel, nil
}

func (s *FileStore) Get(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return data, err
}

func (s *FileStore) resolve(rel string) (string, error) {
	rel = strings.TrimSpace(rel)
	if rel == "" || strings.HasPrefix(rel, "/") || strings.Contains(rel, "\\") {
		return "", ErrInvalidPath
	}
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// blobName slugs the base name and keeps a short lowercase extension.
func blobName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	ext := strings.ToLower(path.Ext(name))
	base := slug.Make(strings.TrimSuffix(name, path.Ext(name)))
	if base == "" {
		return ""
	}
	if len(ext) < 2 || len(ext) > 6 || slug.Make(ext[1:]) != ext[1:] {
		ext = ".bin"
	}
	return base + ext
}
