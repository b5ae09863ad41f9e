// Package postgres reads and patches obra rows in the hosted Postgres database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vbonduro/obrafix/internal/domain"
)

// querier is the part of *pgxpool.Pool the repository uses.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type ObraRepo struct {
	db querier
}

// NewPool connects to the database and checks the connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

func NewObraRepo(pool *pgxpool.Pool) *ObraRepo {
	return &ObraRepo{db: pool}
}

func selectColumns() string {
	cols := make([]string, 0, len(domain.PhotoColumns)+3)
	cols = append(cols, "id::text", "obra")
	for _, c := range domain.PhotoColumns {
		cols = append(cols, c+"::text")
	}
	cols = append(cols, "updated_at")
	return strings.Join(cols, ", ")
}

func scanObra(row pgx.Row) (*domain.Obra, error) {
	obra := &domain.Obra{Columns: make(map[string]json.RawMessage)}
	values := make([]*string, len(domain.PhotoColumns))

	dest := []any{&obra.ID, &obra.Key}
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &obra.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	for i, col := range domain.PhotoColumns {
		if values[i] != nil && *values[i] != "" {
			obra.Columns[col] = json.RawMessage(*values[i])
		}
	}
	return obra, nil
}

func (r *ObraRepo) GetByKey(ctx context.Context, key string) (*domain.Obra, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns()+` FROM obras WHERE obra = $1`, key)
	obra, err := scanObra(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get obra %s: %w", key, err)
	}
	return obra, nil
}

func (r *ObraRepo) List(ctx context.Context) ([]*domain.Obra, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns()+` FROM obras ORDER BY obra ASC`)
	if err != nil {
		return nil, fmt.Errorf("list obras: %w", err)
	}
	defer rows.Close()

	var obras []*domain.Obra
	for rows.Next() {
		obra, err := scanObra(rows)
		if err != nil {
			return nil, fmt.Errorf("scan obra: %w", err)
		}
		obras = append(obras, obra)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate obras: %w", err)
	}
	return obras, nil
}

// UpdateColumns overwrites the given jsonb columns. There is no version
// check; the last writer wins.
func (r *ObraRepo) UpdateColumns(ctx context.Context, id string, cols map[string]json.RawMessage) error {
	names := make([]string, 0, len(cols))
	for name := range cols {
		if !domain.IsPhotoColumn(name) {
			return fmt.Errorf("unknown obra column %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := make([]any, 0, len(names)+1)
	for i, name := range names {
		sets = append(sets, fmt.Sprintf("%s = $%d::jsonb", name, i+1))
		args = append(args, string(cols[name]))
	}
	sets = append(sets, "updated_at = now()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE obras SET %s WHERE id::text = $%d`, strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update obra %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %s", domain.ErrNotFound, id)
	}
	return nil
}
