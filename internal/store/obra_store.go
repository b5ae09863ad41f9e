package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vbonduro/obrafix/internal/domain"
)

// ObraStore reads and patches obra snapshots in the local sqlite database.
type ObraStore struct {
	db *sql.DB
}

func NewObraStore(db *sql.DB) *ObraStore {
	return &ObraStore{db: db}
}

func selectColumns() string {
	return "id, obra, " + strings.Join(domain.PhotoColumns, ", ") + ", updated_at"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObra(row rowScanner) (*domain.Obra, error) {
	obra := &domain.Obra{Columns: make(map[string]json.RawMessage)}
	values := make([]sql.NullString, len(domain.PhotoColumns))

	dest := []any{&obra.ID, &obra.Key}
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &obra.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, col := range domain.PhotoColumns {
		if values[i].Valid && values[i].String != "" {
			obra.Columns[col] = json.RawMessage(values[i].String)
		}
	}
	return obra, nil
}

func (s *ObraStore) GetByKey(ctx context.Context, key string) (*domain.Obra, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns()+` FROM obras WHERE obra = ?`, key)
	obra, err := scanObra(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get obra: %w", err)
	}
	return obra, nil
}

func (s *ObraStore) List(ctx context.Context) ([]*domain.Obra, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns()+` FROM obras ORDER BY obra ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list obras: %w", err)
	}
	defer rows.Close()

	var obras []*domain.Obra
	for rows.Next() {
		obra, err := scanObra(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan obra: %w", err)
		}
		obras = append(obras, obra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating obras: %w", err)
	}
	return obras, nil
}

// UpdateColumns overwrites the given JSON columns. The last writer wins.
func (s *ObraStore) UpdateColumns(ctx context.Context, id string, cols map[string]json.RawMessage) error {
	names, err := columnNames(cols)
	if err != nil {
		return err
	}

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		sets = append(sets, name+" = ?")
		args = append(args, string(cols[name]))
	}
	sets = append(sets, "updated_at = datetime('now')")
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, `UPDATE obras SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update obra: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: id %s", domain.ErrNotFound, id)
	}
	return nil
}

// Insert seeds a snapshot row, used when rehearsing a repair offline.
func (s *ObraStore) Insert(ctx context.Context, obra *domain.Obra) error {
	names, err := columnNames(obra.Columns)
	if err != nil {
		return err
	}

	cols := append([]string{"id", "obra"}, names...)
	args := []any{obra.ID, obra.Key}
	for _, name := range names {
		args = append(args, string(obra.Columns[name]))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO obras (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert obra: %w", err)
	}
	return nil
}

// columnNames returns the keys of cols in a stable order, rejecting anything
// that is not a known photo column so names can be placed in SQL.
func columnNames(cols map[string]json.RawMessage) ([]string, error) {
	names := make([]string, 0, len(cols))
	for name := range cols {
		if !domain.IsPhotoColumn(name) {
			return nil, fmt.Errorf("unknown obra column %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
