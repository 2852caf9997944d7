package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mskdash/mskdash/internal/platform/table"
)

// Querier is the subset of *pgxpool.Pool the Postgres source needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresTables names the relation behind each input. Names may be schema
// qualified ("reporting.timeseries").
type PostgresTables struct {
	Demographics string
	Alerts       string
	TimeSeries   string
	AlertFactors string
}

// PostgresSource reads each input with SELECT * and keeps the result
// column names as headers, so the same column rules apply as for files.
type PostgresSource struct {
	pool   Querier
	tables PostgresTables
}

func NewPostgresSource(pool Querier, tables PostgresTables) *PostgresSource {
	return &PostgresSource{pool: pool, tables: tables}
}

func (s *PostgresSource) Kind() string { return "postgres" }

func (s *PostgresSource) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{LoadedAt: time.Now()}
	var err error
	if ds.Demographics, err = s.readTable(ctx, Demographics, s.tables.Demographics); err != nil {
		return nil, err
	}
	if ds.Alerts, err = s.readTable(ctx, Alerts, s.tables.Alerts); err != nil {
		return nil, err
	}
	if ds.TimeSeries, err = s.readTable(ctx, TimeSeries, s.tables.TimeSeries); err != nil {
		return nil, err
	}
	if s.tables.AlertFactors != "" {
		ds.AlertFactors, err = s.readTable(ctx, AlertFactors, s.tables.AlertFactors)
		if err != nil && !errors.Is(err, ErrTableNotFound) {
			return nil, err
		}
	}
	return ds, nil
}

func (s *PostgresSource) readTable(ctx context.Context, name, relation string) (*table.Table, error) {
	sql := "SELECT * FROM " + pgx.Identifier(strings.Split(relation, ".")).Sanitize()
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, fmt.Errorf("%s (%s): %w", name, relation, ErrTableNotFound)
		}
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	headers := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		headers[i] = fd.Name
	}

	t := table.New(name, headers, nil)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		t.Append(FormatRow(values))
	}
	if err := rows.Err(); err != nil {
		// Undefined tables can surface on the first Next rather than Query.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
			return nil, fmt.Errorf("%s (%s): %w", name, relation, ErrTableNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return t, nil
}

// FormatRow converts driver values into cells.
func FormatRow(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = FormatCell(v)
	}
	return out
}

// FormatCell renders a single driver value the way a CSV export would:
// NULL is empty, booleans are 1/0 so flag columns stay numeric.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return strconv.FormatFloat(f.Float64, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
