// Package gallery copies an obra's photos into a named album of a media
// library.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/vbonduro/obrafix/internal/domain"
	"github.com/vbonduro/obrafix/internal/jsontree"
	"github.com/vbonduro/obrafix/internal/photo"
	"github.com/vbonduro/obrafix/internal/photostore"
	"github.com/vbonduro/obrafix/internal/report"
)

var ErrPermissionDenied = errors.New("media library permission denied")

type Asset struct {
	ID   string
	Name string
}

type Album struct {
	ID    string
	Title string
}

// MediaLibrary is the device photo library the export writes into.
type MediaLibrary interface {
	RequestPermission(ctx context.Context) error
	CreateAsset(ctx context.Context, name string, r io.Reader) (Asset, error)
	// Album returns nil when no album has that title.
	Album(ctx context.Context, title string) (*Album, error)
	CreateAlbum(ctx context.Context, title string, first Asset) (*Album, error)
	AddAssets(ctx context.Context, album *Album, assets []Asset) error
	// Contains reports whether album already holds an asset created under name.
	Contains(ctx context.Context, album *Album, name string) (bool, error)
}

type Result struct {
	Album    string
	Exported int
	Skipped  int
	Failed   int
}

type Exporter struct {
	library    MediaLibrary
	photos     photostore.PhotoStore
	normalizer *photo.Normalizer
	reporter   report.Reporter
	logger     *slog.Logger
}

func NewExporter(library MediaLibrary, photos photostore.PhotoStore, reporter report.Reporter, logger *slog.Logger) *Exporter {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &Exporter{
		library:    library,
		photos:     photos,
		normalizer: photo.NewNormalizer(reporter),
		reporter:   reporter,
		logger:     logger,
	}
}

func AlbumTitle(obra *domain.Obra) string {
	return "Obra " + obra.Key
}

// Export adds every photo of obra to its album, creating the album on first
// use. Photos whose file name is already in the album are skipped, so running
// it again only adds what is new. One unreadable photo does not stop the rest;
// a denied permission does.
func (e *Exporter) Export(ctx context.Context, obra *domain.Obra) (*Result, error) {
	if err := e.library.RequestPermission(ctx); err != nil {
		return nil, fmt.Errorf("failed to get media library permission: %w", err)
	}

	res := &Result{Album: AlbumTitle(obra)}
	album, err := e.library.Album(ctx, res.Album)
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}

	var assets []Asset
	seen := make(map[string]bool)

	for _, col := range domain.PhotoColumns {
		raw, ok := obra.Columns[col]
		if !ok || !domain.IsPhotoList(col) {
			continue
		}
		v, err := jsontree.Decode(raw)
		if err != nil {
			e.reporter.CaptureError(ctx, err, "obra", obra.Key, "column", col)
			res.Failed++
			continue
		}
		norm := e.normalizer.NormalizeList(ctx, obra.Key, col, v)
		for _, rec := range norm.Records {
			src, err := e.locate(rec)
			if err == nil && src != nil {
				err = e.skipExisting(ctx, album, src, seen)
			}
			if err != nil {
				e.logger.Error("failed to export photo", "obra", obra.Key, "column", col, "url", rec.URL, "error", err)
				e.reporter.CaptureError(ctx, err, "obra", obra.Key, "url", rec.URL)
				res.Failed++
				continue
			}
			if src == nil || src.exists {
				res.Skipped++
				continue
			}

			asset, err := e.exportOne(ctx, src)
			if err != nil {
				e.logger.Error("failed to export photo", "obra", obra.Key, "column", col, "url", rec.URL, "error", err)
				e.reporter.CaptureError(ctx, err, "obra", obra.Key, "url", rec.URL)
				res.Failed++
				continue
			}
			assets = append(assets, asset)
		}
	}

	if len(assets) == 0 {
		e.logger.Info("no new photos to export", "obra", obra.Key, "skipped", res.Skipped)
		return res, nil
	}

	if err := e.addToAlbum(ctx, album, res.Album, assets); err != nil {
		return nil, err
	}
	res.Exported = len(assets)
	e.logger.Info("gallery export complete", "obra", obra.Key, "album", res.Album,
		"exported", res.Exported, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

// source is where one photo's bytes come from.
type source struct {
	name   string
	// path is set for photos still on the device, object for stored ones.
	path   string
	object string
	exists bool
}

// locate returns nil without error for synced photos stored outside the
// configured bucket.
func (e *Exporter) locate(rec domain.PhotoRecord) (*source, error) {
	if rec.Pending() {
		if !strings.HasPrefix(rec.URL, domain.SchemeLocal) {
			return nil, fmt.Errorf("photo only exists in the capturing device's library: %s", rec.URL)
		}
		u, err := url.Parse(rec.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid local photo url: %w", err)
		}
		return &source{name: path.Base(u.Path), path: u.Path}, nil
	}

	name, ok := e.photos.ObjectName(rec.URL)
	if !ok {
		e.logger.Warn("photo is not in the configured bucket, skipping", "url", rec.URL)
		return nil, nil
	}
	return &source{name: path.Base(name), object: name}, nil
}

// skipExisting marks src when an earlier run or an earlier record of this run
// already exported a file with the same name.
func (e *Exporter) skipExisting(ctx context.Context, album *Album, src *source, seen map[string]bool) error {
	if seen[src.name] {
		src.exists = true
		return nil
	}
	seen[src.name] = true
	if album == nil {
		return nil
	}
	found, err := e.library.Contains(ctx, album, src.name)
	if err != nil {
		return fmt.Errorf("failed to check album: %w", err)
	}
	src.exists = found
	return nil
}

func (e *Exporter) exportOne(ctx context.Context, src *source) (Asset, error) {
	r, err := e.open(ctx, src)
	if err != nil {
		return Asset{}, err
	}
	defer r.Close()

	asset, err := e.library.CreateAsset(ctx, src.name, r)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to create asset: %w", err)
	}
	return asset, nil
}

func (e *Exporter) open(ctx context.Context, src *source) (io.ReadCloser, error) {
	if src.path != "" {
		f, err := os.Open(src.path)
		if err != nil {
			return nil, fmt.Errorf("failed to open local photo: %w", err)
		}
		return f, nil
	}
	r, _, err := e.photos.Open(ctx, src.object)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (e *Exporter) addToAlbum(ctx context.Context, album *Album, title string, assets []Asset) error {
	rest := assets
	if album == nil {
		created, err := e.library.CreateAlbum(ctx, title, assets[0])
		if err != nil {
			return fmt.Errorf("failed to create album: %w", err)
		}
		album = created
		rest = assets[1:]
	}
	if len(rest) == 0 {
		return nil
	}
	if err := e.library.AddAssets(ctx, album, rest); err != nil {
		return fmt.Errorf("failed to add assets to album: %w", err)
	}
	return nil
}
