// Package fsmedia is a media library kept in a directory: assets live under
// assets/ and each album is a directory under albums/ holding copies.
package fsmedia

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/vbonduro/obrafix/internal/gallery"
)

type Library struct {
	root string
}

func New(root string) *Library {
	return &Library{root: root}
}

func (l *Library) assetsDir() string { return filepath.Join(l.root, "assets") }
func (l *Library) albumsDir() string { return filepath.Join(l.root, "albums") }

// RequestPermission makes sure the library directories exist and are writable.
func (l *Library) RequestPermission(ctx context.Context) error {
	for _, dir := range []string{l.assetsDir(), l.albumsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", gallery.ErrPermissionDenied, err)
		}
	}
	f, err := os.CreateTemp(l.assetsDir(), ".writable-*")
	if err != nil {
		return fmt.Errorf("%w: %v", gallery.ErrPermissionDenied, err)
	}
	_ = f.Close()
	return os.Remove(f.Name())
}

// Asset IDs are a uuid, an underscore and the sanitized source name.
const assetIDPrefixLen = 36 + 1

func (l *Library) CreateAsset(ctx context.Context, name string, r io.Reader) (gallery.Asset, error) {
	id := uuid.NewString() + "_" + safeName(name)
	filePath := filepath.Join(l.assetsDir(), id)

	if err := writeFile(filePath, r); err != nil {
		return gallery.Asset{}, err
	}
	return gallery.Asset{ID: id, Name: name}, nil
}

func (l *Library) Album(ctx context.Context, title string) (*gallery.Album, error) {
	dir := filepath.Join(l.albumsDir(), safeName(title))
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat album: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("album path %s is not a directory", dir)
	}
	return &gallery.Album{ID: safeName(title), Title: title}, nil
}

func (l *Library) CreateAlbum(ctx context.Context, title string, first gallery.Asset) (*gallery.Album, error) {
	album := &gallery.Album{ID: safeName(title), Title: title}
	if err := os.MkdirAll(filepath.Join(l.albumsDir(), album.ID), 0755); err != nil {
		return nil, fmt.Errorf("failed to create album directory: %w", err)
	}
	if err := l.AddAssets(ctx, album, []gallery.Asset{first}); err != nil {
		return nil, err
	}
	return album, nil
}

func (l *Library) AddAssets(ctx context.Context, album *gallery.Album, assets []gallery.Asset) error {
	dir := filepath.Join(l.albumsDir(), album.ID)
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := os.Open(filepath.Join(l.assetsDir(), a.ID))
		if err != nil {
			return fmt.Errorf("failed to open asset %s: %w", a.ID, err)
		}
		err = writeFile(filepath.Join(dir, a.ID), src)
		if cerr := src.Close(); cerr != nil {
			slog.Error("failed to close asset", "asset", a.ID, "error", cerr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Contains matches name against the source names of the assets in album.
func (l *Library) Contains(ctx context.Context, album *gallery.Album, name string) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(l.albumsDir(), album.ID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read album: %w", err)
	}
	want := safeName(name)
	for _, e := range entries {
		id := e.Name()
		if len(id) > assetIDPrefixLen && id[assetIDPrefixLen:] == want {
			return true, nil
		}
	}
	return false, nil
}

// writeFile copies r to filePath, removing the partial file on failure.
func writeFile(filePath string, r io.Reader) error {
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._ -]+`)

func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(filepath.Base(s), "_")
	s = strings.Trim(s, ". ")
	if s == "" {
		return "untitled"
	}
	return s
}
