// Package storage provides the object store that holds uploaded images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"inkwell/internal/observability"

	"github.com/rs/xid"
)

var (
	// ErrObjectExists is returned by Upload without upsert when the path is taken.
	ErrObjectExists = errors.New("storage: object already exists")
	// ErrInvalidPath is returned for empty, absolute or escaping object paths.
	ErrInvalidPath = errors.New("storage: invalid object path")
)

// UploadResult describes a stored object.
type UploadResult struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	PublicURL string `json:"public_url"`
}

// ObjectStorage is an upload/remove object store. Removes are idempotent.
type ObjectStorage interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string, upsert bool) (*UploadResult, error)
	Remove(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
}

// LocalStorage keeps objects on the local filesystem below root.
type LocalStorage struct {
	root      string
	publicURL string
}

// NewLocalStorage creates root if needed. publicURL is the prefix objects are served under.
func NewLocalStorage(root, publicURL string) (*LocalStorage, error) {
	if root == "" {
		return nil, errors.New("storage: root directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &LocalStorage{root: root, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// Root returns the directory objects are written to.
func (s *LocalStorage) Root() string {
	return s.root
}

// NewObjectPath returns a fresh collision-free object path under prefix.
func NewObjectPath(prefix, ext string) string {
	return path.Join(prefix, xid.New().String()+ext)
}

// resolve accepts only clean relative slash paths that stay below root.
func (s *LocalStorage) resolve(objectPath string) (string, string, error) {
	if objectPath == "" || strings.HasPrefix(objectPath, "/") || strings.Contains(objectPath, "\\") {
		return "", "", ErrInvalidPath
	}
	clean := path.Clean(objectPath)
	if clean != objectPath || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", ErrInvalidPath
	}
	return clean, filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Upload(ctx context.Context, objectPath string, data []byte, _ string, upsert bool) (result *UploadResult, err error) {
	defer func() {
		observability.StorageOperations.WithLabelValues("upload", observability.Outcome(err)).Inc()
	}()

	if err = ctx.Err(); err != nil {
		return nil, err
	}
	clean, full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return nil, fmt.Errorf("storage: create dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	// #nosec G304: full is confined to root by resolve
	f, err := os.OpenFile(full, flags, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrObjectExists
		}
		return nil, fmt.Errorf("storage: open object: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("storage: write object: %w", err)
	}
	if err = f.Close(); err != nil {
		return nil, fmt.Errorf("storage: close object: %w", err)
	}

	return &UploadResult{
		ID:        xid.New().String(),
		Path:      clean,
		PublicURL: s.PublicURL(clean),
	}, nil
}

// Remove deletes the object. A missing object is not an error.
func (s *LocalStorage) Remove(ctx context.Context, objectPath string) (err error) {
	defer func() {
		observability.StorageOperations.WithLabelValues("remove", observability.Outcome(err)).Inc()
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	_, full, err := s.resolve(objectPath)
	if err != nil {
		return err
	}
	if err = os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove object: %w", err)
	}
	return nil
}

func (s *LocalStorage) PublicURL(objectPath string) string {
	return s.publicURL + "/" + strings.TrimPrefix(objectPath, "/")
}
