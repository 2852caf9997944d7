package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mskdash/mskdash/internal/platform/table"
)

// Importer replaces Postgres tables with the contents of loaded input
// tables, so the postgres source can serve data that arrived as files.
type Importer struct {
	pool *pgxpool.Pool
}

// NewImporter creates an Importer. The pool must not be read-only.
func NewImporter(pool *pgxpool.Pool) *Importer {
	return &Importer{pool: pool}
}

// Identifier splits a possibly schema-qualified relation name.
func Identifier(relation string) pgx.Identifier {
	return pgx.Identifier(strings.Split(relation, "."))
}

// ColumnNames turns headers into unique, non-empty column names. Headers
// are kept verbatim apart from trimming so the column rules still match
// them when read back.
func ColumnNames(headers []string) []string {
	out := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		key := strings.ToLower(name)
		if n := seen[key]; n > 0 {
			name = name + "_" + strconv.Itoa(n+1)
		}
		seen[key]++
		out[i] = name
	}
	return out
}

// CreateTableSQL returns DDL for a text-typed table with the given columns.
func CreateTableSQL(relation string, columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", Identifier(relation).Sanitize(), strings.Join(defs, ", "))
}

// Import drops and recreates relation from t in one transaction and returns
// the number of rows copied. Empty cells are stored as NULL.
func (im *Importer) Import(ctx context.Context, relation string, t *table.Table) (int64, error) {
	if t == nil {
		return 0, fmt.Errorf("import %s: table is not loaded", relation)
	}
	columns := ColumnNames(t.Headers)

	tx, err := im.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+Identifier(relation).Sanitize()); err != nil {
		return 0, fmt.Errorf("drop %s: %w", relation, err)
	}
	if _, err := tx.Exec(ctx, CreateTableSQL(relation, columns)); err != nil {
		return 0, fmt.Errorf("create %s: %w", relation, err)
	}

	n, err := tx.CopyFrom(ctx, Identifier(relation), columns, pgx.CopyFromRows(CopyRows(t)))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", relation, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", relation, err)
	}
	return n, nil
}

// CopyRows converts cells for COPY; blank cells become NULL.
func CopyRows(t *table.Table) [][]any {
	out := make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		vals := make([]any, len(row))
		for i, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			vals[i] = cell
		}
		out[r] = vals
	}
	return out
}
