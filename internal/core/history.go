package core

// history.go records one entry per pipeline run.
//
// PostgresHistory is used when a database is configured; MemoryHistory keeps
// a bounded ring otherwise. Both are pruned by the scheduler.

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultHistoryLimit is the page size for Recent when none is given.
const DefaultHistoryLimit = 50

// DefaultMemoryHistorySize bounds MemoryHistory.
const DefaultMemoryHistorySize = 500

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID         string        `json:"id"`
	Stage      Stage         `json:"stage"`
	Code       ErrorKind     `json:"code,omitempty"`
	Status     string        `json:"status"`
	KeysFile   string        `json:"keys_file,omitempty"`
	DataFile   string        `json:"data_file,omitempty"`
	KeysRows   int           `json:"keys_rows"`
	DataRows   int           `json:"data_rows"`
	OutputRows int           `json:"output_rows"`
	Columns    int           `json:"columns"`
	IPAddress  string        `json:"ip_address,omitempty"`
	UserAgent  string        `json:"user_agent,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

// HistoryStore persists run records.
type HistoryStore interface {
	Record(ctx context.Context, rec RunRecord) error
	Recent(ctx context.Context, limit int) ([]RunRecord, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ----------------------------------------------------------------------------
// In-memory
// ----------------------------------------------------------------------------

// MemoryHistory is a fixed-size ring of run records. Oldest entries are
// overwritten first.
type MemoryHistory struct {
	mu    sync.RWMutex
	buf   []RunRecord
	next  int
	count int
}

// NewMemoryHistory returns a ring holding at most size records.
func NewMemoryHistory(size int) *MemoryHistory {
	if size <= 0 {
		size = DefaultMemoryHistorySize
	}
	return &MemoryHistory{buf: make([]RunRecord, size)}
}

func (h *MemoryHistory) Record(_ context.Context, rec RunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = rec
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	n := min(limit, h.count)
	out := make([]RunRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out, nil
}

// Prune drops records created before the cutoff.
func (h *MemoryHistory) Prune(_ context.Context, before time.Time) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := make([]RunRecord, 0, h.count)
	for i := h.count; i >= 1; i-- {
		rec := h.buf[(h.next-i+len(h.buf))%len(h.buf)]
		if !rec.CreatedAt.Before(before) {
			kept = append(kept, rec)
		}
	}

	removed := int64(h.count - len(kept))
	clear(h.buf)
	copy(h.buf, kept)
	h.count = len(kept)
	h.next = len(kept) % len(h.buf)
	return removed, nil
}

// ----------------------------------------------------------------------------
// Postgres
// ----------------------------------------------------------------------------

const createRunsTable = `
CREATE TABLE IF NOT EXISTS join_runs (
	id          UUID PRIMARY KEY,
	stage       TEXT NOT NULL,
	code        TEXT,
	status      TEXT NOT NULL,
	keys_file   TEXT,
	data_file   TEXT,
	keys_rows   INTEGER NOT NULL DEFAULT 0,
	data_rows   INTEGER NOT NULL DEFAULT 0,
	output_rows INTEGER NOT NULL DEFAULT 0,
	columns     INTEGER NOT NULL DEFAULT 0,
	ip_address  INET,
	user_agent  TEXT,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS join_runs_created_at_idx ON join_runs (created_at DESC);`

// PostgresHistory stores run records in the join_runs table.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

// NewPostgresHistory wraps a pool. Call EnsureSchema before first use.
func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

// EnsureSchema creates the join_runs table if it does not exist.
func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.pool.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("history store: create schema: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Record(ctx context.Context, rec RunRecord) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO join_runs (id, stage, code, status, keys_file, data_file,
			keys_rows, data_rows, output_rows, columns, ip_address, user_agent,
			duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		ToPgUUID(rec.ID),
		string(rec.Stage),
		ToPgText(string(rec.Code)),
		rec.Status,
		ToPgText(rec.KeysFile),
		ToPgText(rec.DataFile),
		rec.KeysRows,
		rec.DataRows,
		rec.OutputRows,
		rec.Columns,
		parseIPAddress(rec.IPAddress),
		ToPgText(rec.UserAgent),
		rec.Duration.Milliseconds(),
		pgtype.Timestamptz{Time: rec.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("history store: record run: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *PostgresHistory) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := h.pool.Query(ctx, `
		SELECT id, stage, code, status, keys_file, data_file, keys_rows, data_rows,
			output_rows, columns, ip_address, user_agent, duration_ms, created_at
		FROM join_runs
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("history store: query runs: %w", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRunRow(rows)
		if err != nil {
			return nil, fmt.Errorf("history store: scan run: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history store: %w", err)
	}
	return records, nil
}

// Prune deletes records created before the cutoff.
func (h *PostgresHistory) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := h.pool.Exec(ctx, `DELETE FROM join_runs WHERE created_at < $1`,
		pgtype.Timestamptz{Time: before, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("history store: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRunRow(rows pgx.Rows) (RunRecord, error) {
	var (
		id         pgtype.UUID
		stage      string
		code       pgtype.Text
		status     string
		keysFile   pgtype.Text
		dataFile   pgtype.Text
		rec        RunRecord
		ipAddress  *netip.Addr
		userAgent  pgtype.Text
		durationMS int64
		createdAt  pgtype.Timestamptz
	)
	if err := rows.Scan(&id, &stage, &code, &status, &keysFile, &dataFile,
		&rec.KeysRows, &rec.DataRows, &rec.OutputRows, &rec.Columns,
		&ipAddress, &userAgent, &durationMS, &createdAt); err != nil {
		return RunRecord{}, err
	}

	rec.ID = PgUUIDToString(id)
	rec.Stage = Stage(stage)
	rec.Code = ErrorKind(code.String)
	rec.Status = status
	rec.KeysFile = keysFile.String
	rec.DataFile = dataFile.String
	if ipAddress != nil {
		rec.IPAddress = ipAddress.String()
	}
	rec.UserAgent = userAgent.String
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.CreatedAt = createdAt.Time
	return rec, nil
}

// parseIPAddress strips a port and parses the host. Unparseable input
// yields nil so the column is stored as NULL.
func parseIPAddress(s string) *netip.Addr {
	if s == "" {
		return nil
	}
	host := s
	if h, _, err := net.SplitHostPort(s); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	return &addr
}
