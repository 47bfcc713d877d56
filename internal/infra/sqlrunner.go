package infra

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"ravelon/internal/metrics"
)

// SQLExecutor is the query surface repositories depend on. *pgxpool.Pool,
// pgx.Tx and *SQLRunner all satisfy it.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// ErrSQLMarker rejects statements without a leading `--sql <uuid>` line.
var ErrSQLMarker = errors.New("sql marker missing or invalid")

var markerRegexp = regexp.MustCompile(`^--sql ([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})$`)

type statement struct {
	marker string
	body   string
}

// SQLRunner strips the marker from each statement before handing it to the
// database, and logs and times every call under that marker.
type SQLRunner struct {
	db     SQLExecutor
	logger zerolog.Logger
	parsed sync.Map // query text -> statement
}

func NewSQLRunner(db SQLExecutor, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{db: db, logger: Component(logger, "sql")}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	st, err := r.statement(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.db.Exec(ctx, st.body, args...)
	r.observe("exec", st.marker, start, err)
	if err == nil {
		r.logger.Debug().Str("sql", st.marker).Int64("rows", tag.RowsAffected()).Msg("exec")
	}
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	st, err := r.statement(query)
	if err != nil {
		return errorRow{err: err}
	}
	return &timedRow{row: r.db.QueryRow(ctx, st.body, args...), runner: r, marker: st.marker, start: time.Now()}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	st, err := r.statement(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.db.Query(ctx, st.body, args...)
	if err != nil {
		r.observe("query", st.marker, start, err)
		return nil, err
	}
	return &timedRows{Rows: rows, runner: r, marker: st.marker, start: start}, nil
}

func (r *SQLRunner) statement(query string) (statement, error) {
	if v, ok := r.parsed.Load(query); ok {
		return v.(statement), nil
	}
	marker, body, err := extractMarker(query)
	if err != nil {
		r.logger.Error().Err(err).Msg("rejected untagged statement")
		return statement{}, err
	}
	st := statement{marker: marker, body: body}
	r.parsed.Store(query, st)
	return st, nil
}

func (r *SQLRunner) observe(op, marker string, start time.Time, err error) {
	took := time.Since(start)
	metrics.StoreQueryDuration.WithLabelValues(op).Observe(took.Seconds())
	if err != nil && !IsNoRows(err) {
		r.logger.Error().Err(err).Str("sql", marker).Str("op", op).Dur("took", took).Msg("statement failed")
	}
}

type timedRow struct {
	row    pgx.Row
	runner *SQLRunner
	marker string
	start  time.Time
}

func (t *timedRow) Scan(dest ...any) error {
	err := t.row.Scan(dest...)
	t.runner.observe("query_row", t.marker, t.start, err)
	return err
}

type timedRows struct {
	pgx.Rows
	runner *SQLRunner
	marker string
	start  time.Time
	once   sync.Once
}

func (t *timedRows) Close() {
	t.Rows.Close()
	t.once.Do(func() { t.runner.observe("query", t.marker, t.start, t.Rows.Err()) })
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error {
	return e.err
}

// extractMarker splits a tagged statement into its marker id and SQL body.
func extractMarker(query string) (string, string, error) {
	head, body, _ := strings.Cut(strings.TrimSpace(query), "\n")
	m := markerRegexp.FindStringSubmatch(strings.TrimSpace(head))
	if m == nil {
		return "", "", fmt.Errorf("%w: %.40q", ErrSQLMarker, head)
	}
	return m[1], strings.TrimSpace(body), nil
}

// IsNoRows reports whether err signals an empty single-row result.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

var _ SQLExecutor = (*SQLRunner)(nil)
