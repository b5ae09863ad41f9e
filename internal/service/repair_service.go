package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vbonduro/obrafix/internal/domain"
	"github.com/vbonduro/obrafix/internal/gallery"
	"github.com/vbonduro/obrafix/internal/jsontree"
	"github.com/vbonduro/obrafix/internal/photo"
	"github.com/vbonduro/obrafix/internal/photostore"
	"github.com/vbonduro/obrafix/internal/report"
	"github.com/vbonduro/obrafix/internal/scan"
	"github.com/vbonduro/obrafix/internal/section"
)

// ErrObraRequired is returned by operations that act on a single obra when no
// key was given.
var ErrObraRequired = errors.New("obra key is required")

// obraRepository is the subset of the obra stores that RepairService requires.
type obraRepository interface {
	GetByKey(ctx context.Context, key string) (*domain.Obra, error)
	List(ctx context.Context) ([]*domain.Obra, error)
	UpdateColumns(ctx context.Context, id string, cols map[string]json.RawMessage) error
}

// galleryExporter is the subset of gallery.Exporter that RepairService requires.
type galleryExporter interface {
	Export(ctx context.Context, obra *domain.Obra) (*gallery.Result, error)
}

type RepairService struct {
	obras      obraRepository
	photos     photostore.PhotoStore
	exporter   galleryExporter
	normalizer *photo.Normalizer
	reporter   report.Reporter
	quotas     []section.Quota
	listing    photostore.ListOptions
	logger     *slog.Logger
}

func NewRepairService(
	obras obraRepository,
	photos photostore.PhotoStore,
	exporter galleryExporter,
	reporter report.Reporter,
	listing photostore.ListOptions,
	logger *slog.Logger,
) *RepairService {
	if reporter == nil {
		reporter = report.Nop{}
	}
	return &RepairService{
		obras:      obras,
		photos:     photos,
		exporter:   exporter,
		normalizer: photo.NewNormalizer(reporter),
		reporter:   reporter,
		quotas:     section.DefaultQuotas,
		listing:    listing,
		logger:     logger,
	}
}

// LocalRefReport lists the device-local references left in one obra.
type LocalRefReport struct {
	Obra string
	Hits []scan.Hit
}

// ScanLocal finds photo references that never left the device. An empty key
// scans every obra; only obras with at least one hit are returned.
func (s *RepairService) ScanLocal(ctx context.Context, key string) ([]LocalRefReport, error) {
	obras, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	reports := make([]LocalRefReport, 0)
	total := 0
	for _, obra := range obras {
		hits := make([]scan.Hit, 0)
		for _, col := range domain.PhotoColumns {
			raw, ok := obra.Columns[col]
			if !ok {
				continue
			}
			v, err := jsontree.Decode(raw)
			if err != nil {
				s.logger.Warn("column is not valid JSON", "obra", obra.Key, "column", col, "error", err)
				s.reporter.CaptureError(ctx, err, "obra", obra.Key, "column", col)
				continue
			}
			hits = append(hits, scan.LocalRefsFrom(col, v)...)
		}
		if len(hits) == 0 {
			continue
		}
		total += len(hits)
		reports = append(reports, LocalRefReport{Obra: obra.Key, Hits: hits})
	}

	s.logger.Info("local reference scan complete", "obras", len(obras), "affected", len(reports), "refs", total)
	return reports, nil
}

// ColumnChange summarizes the normalization of one column.
type ColumnChange struct {
	Column    string
	Records   int
	Pending   int
	Malformed int
	// Changed is set when the normalized form differs from what is stored.
	Changed bool
	// Held is set when the column has malformed values and is left untouched
	// so nothing is lost on write.
	Held bool
}

type NormalizeReport struct {
	Obra    string
	Columns []ColumnChange
	Applied bool
}

// Normalize rewrites every photo list of the selected obras into the canonical
// record shape. Nothing is written unless apply is set.
func (s *RepairService) Normalize(ctx context.Context, key string, apply bool) ([]NormalizeReport, error) {
	obras, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	reports := make([]NormalizeReport, 0, len(obras))
	for _, obra := range obras {
		rep := NormalizeReport{Obra: obra.Key}
		updates := make(map[string]json.RawMessage)

		for _, col := range domain.PhotoColumns {
			raw, ok := obra.Columns[col]
			if !ok || !domain.IsPhotoList(col) {
				continue
			}
			change, encoded, err := s.normalizeColumn(ctx, obra.Key, col, raw)
			if err != nil {
				s.logger.Warn("skipping column", "obra", obra.Key, "column", col, "error", err)
				s.reporter.CaptureError(ctx, err, "obra", obra.Key, "column", col)
				continue
			}
			if change == nil {
				continue
			}
			rep.Columns = append(rep.Columns, *change)
			if change.Changed && !change.Held {
				updates[col] = encoded
			}
		}

		if apply && len(updates) > 0 {
			if err := s.obras.UpdateColumns(ctx, obra.ID, updates); err != nil {
				return reports, s.fail(ctx, "failed to write normalized columns", err, "obra", obra.Key)
			}
			rep.Applied = true
			s.logger.Info("normalized columns written", "obra", obra.Key, "columns", len(updates))
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// normalizeColumn returns nil for a column holding JSON null.
func (s *RepairService) normalizeColumn(ctx context.Context, obra, col string, raw json.RawMessage) (*ColumnChange, json.RawMessage, error) {
	v, err := jsontree.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode column: %w", err)
	}
	if v == nil {
		return nil, nil, nil
	}

	res := s.normalizer.NormalizeList(ctx, obra, col, v)
	encoded, err := jsontree.Encode(res.Records)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode column: %w", err)
	}

	var stored bytes.Buffer
	if err := json.Compact(&stored, raw); err != nil {
		return nil, nil, fmt.Errorf("failed to compact column: %w", err)
	}

	change := &ColumnChange{
		Column:    col,
		Records:   len(res.Records),
		Pending:   len(res.Pending),
		Malformed: len(res.Anomalies) - len(res.Pending),
		Changed:   !bytes.Equal(stored.Bytes(), encoded),
	}
	change.Held = change.Changed && change.Malformed > 0
	return change, encoded, nil
}

type ReconstructReport struct {
	Obra    string
	Objects []photostore.Object
	Plan    section.Plan
	// Merged maps each written column to the number of records added.
	Merged  map[string]int
	Applied bool
}

// Reconstruct guesses section membership for the obra's stored photos from
// their listing order. The plan is always returned for review; it is merged
// into the obra only when apply is set.
func (s *RepairService) Reconstruct(ctx context.Context, key string, apply bool) (*ReconstructReport, error) {
	if key == "" {
		return nil, ErrObraRequired
	}
	if err := section.ValidateQuotas(s.quotas); err != nil {
		return nil, err
	}

	obra, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}

	prefix := obra.ID + "/"
	objs, err := s.photos.List(ctx, prefix, s.listing)
	if err != nil {
		return nil, s.fail(ctx, "failed to list stored photos", err, "obra", key, "prefix", prefix)
	}

	names := make([]string, 0, len(objs))
	for _, o := range objs {
		names = append(names, o.Name)
	}
	plan := section.Reconstruct(names, s.quotas)
	s.logger.Info("section reconstruction planned",
		"obra", key, "objects", len(names), "assigned", plan.AssignedCount(), "omitted", plan.Omitted)

	rep := &ReconstructReport{Obra: key, Objects: objs, Plan: plan, Merged: make(map[string]int)}
	if !apply {
		return rep, nil
	}

	updates := make(map[string]json.RawMessage)
	for _, b := range plan.Buckets {
		col := domain.SectionColumn(b.Section)
		merged, added, err := s.mergeBucket(ctx, obra, col, b)
		if err != nil {
			return rep, s.fail(ctx, "failed to merge section", err, "obra", key, "column", col)
		}
		if added == 0 {
			continue
		}
		updates[col] = merged
		rep.Merged[col] = added
	}

	if len(updates) == 0 {
		s.logger.Info("reconstruction added nothing new", "obra", key)
		return rep, nil
	}
	if err := s.obras.UpdateColumns(ctx, obra.ID, updates); err != nil {
		return rep, s.fail(ctx, "failed to write reconstructed sections", err, "obra", key)
	}
	rep.Applied = true
	s.logger.Info("reconstructed sections written", "obra", key, "columns", len(updates))
	return rep, nil
}

// mergeBucket appends the bucket's photos after the column's existing records,
// skipping URLs already present.
func (s *RepairService) mergeBucket(ctx context.Context, obra *domain.Obra, col string, b section.Bucket) (json.RawMessage, int, error) {
	records := make([]domain.PhotoRecord, 0)
	if raw, ok := obra.Columns[col]; ok {
		v, err := jsontree.Decode(raw)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to decode column: %w", err)
		}
		if v != nil {
			res := s.normalizer.NormalizeList(ctx, obra.Key, col, v)
			if len(res.Anomalies) > len(res.Pending) {
				return nil, 0, errors.New("column has malformed values, fix them first")
			}
			records = res.Records
		}
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.URL] = true
	}
	added := 0
	for _, name := range b.Objects() {
		u := s.photos.PublicURL(name)
		if seen[u] {
			continue
		}
		seen[u] = true
		records = append(records, domain.PhotoRecord{ID: photo.DeriveID(u), URL: u})
		added++
	}

	encoded, err := jsontree.Encode(records)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode column: %w", err)
	}
	return encoded, added, nil
}

// ExportGallery copies the obra's photos into its device album.
func (s *RepairService) ExportGallery(ctx context.Context, key string) (*gallery.Result, error) {
	if key == "" {
		return nil, ErrObraRequired
	}
	obra, err := s.get(ctx, key)
	if err != nil {
		return nil, err
	}
	res, err := s.exporter.Export(ctx, obra)
	if err != nil {
		return nil, s.fail(ctx, "failed to export gallery", err, "obra", key)
	}
	return res, nil
}

func (s *RepairService) load(ctx context.Context, key string) ([]*domain.Obra, error) {
	if key != "" {
		obra, err := s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		return []*domain.Obra{obra}, nil
	}
	obras, err := s.obras.List(ctx)
	if err != nil {
		return nil, s.fail(ctx, "failed to list obras", err)
	}
	return obras, nil
}

func (s *RepairService) get(ctx context.Context, key string) (*domain.Obra, error) {
	obra, err := s.obras.GetByKey(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		s.logger.Error("obra not found", "obra", key)
		return nil, err
	}
	if err != nil {
		return nil, s.fail(ctx, "failed to get obra", err, "obra", key)
	}
	return obra, nil
}

// fail logs and reports err, then wraps it with msg.
func (s *RepairService) fail(ctx context.Context, msg string, err error, attrs ...any) error {
	s.reporter.CaptureError(ctx, err, attrs...)
	s.logger.Error(msg, append(attrs, "error", err)...)
	return fmt.Errorf("%s: %w", msg, err)
}
