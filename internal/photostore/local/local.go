package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbonduro/obrafix/internal/photostore"
)

// LocalPhotoStore serves a mirrored bucket from a directory. Object names are
// slash-separated paths relative to basePath.
type LocalPhotoStore struct {
	basePath   string
	publicBase string
}

func NewLocalPhotoStore(basePath, publicBase string) (*LocalPhotoStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &LocalPhotoStore{basePath: basePath, publicBase: publicBase}, nil
}

func (s *LocalPhotoStore) List(ctx context.Context, prefix string, opts photostore.ListOptions) ([]photostore.Object, error) {
	objs := make([]photostore.Object, 0)
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objs = append(objs, photostore.Object{
			Name:        name,
			Size:        info.Size(),
			ContentType: extToMimeType(name),
			Created:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photostore.Apply(objs, opts), nil
}

func (s *LocalPhotoStore) Open(ctx context.Context, name string) (io.ReadCloser, string, error) {
	filePath, err := s.safeJoin(name)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", fmt.Errorf("%w: %s", photostore.ErrObjectNotFound, name)
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, extToMimeType(filePath), nil
}

func (s *LocalPhotoStore) PublicURL(name string) string {
	return photostore.JoinURL(s.publicBase, name)
}

func (s *LocalPhotoStore) ObjectName(publicURL string) (string, bool) {
	return photostore.TrimURL(s.publicBase, publicURL)
}

// safeJoin resolves name relative to basePath and rejects directory traversal.
func (s *LocalPhotoStore) safeJoin(name string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func extToMimeType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
