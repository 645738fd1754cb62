package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/catchment-cli/internal/catchment"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS solves (
	id          TEXT PRIMARY KEY,
	origin_lon  REAL NOT NULL,
	origin_lat  REAL NOT NULL,
	travel_mode TEXT NOT NULL,
	breaks      TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS solve_rings (
	solve_id TEXT NOT NULL REFERENCES solves(id) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	break    REAL NOT NULL,
	label    TEXT NOT NULL DEFAULT '',
	geom     BLOB NOT NULL,
	PRIMARY KEY (solve_id, seq)
);

CREATE TABLE IF NOT EXISTS solve_stats (
	id         TEXT PRIMARY KEY,
	solve_id   TEXT NOT NULL REFERENCES solves(id) ON DELETE CASCADE,
	stats      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_solves_created_at ON solves(created_at);
CREATE INDEX IF NOT EXISTS idx_solve_stats_solve_id ON solve_stats(solve_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSolve(ctx context.Context, sv *Solve) error {
	breaks, err := encodeBreaks(sv.Breaks)
	if err != nil {
		return err
	}
	id := uuid.New().String()
	rows, err := ringRows(id, sv.Rings)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO solves (id, origin_lon, origin_lat, travel_mode, breaks, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, sv.Origin.Lon, sv.Origin.Lat, sv.TravelMode, breaks, now,
	); err != nil {
		return eris.Wrap(err, "sqlite: insert solve")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO solve_rings (solve_id, seq, break, label, geom) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare ring insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrap(err, "sqlite: insert ring")
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit solve")
	}
	sv.ID = id
	sv.CreatedAt = now
	return nil
}

func (s *SQLiteStore) GetSolve(ctx context.Context, id string) (*Solve, error) {
	var (
		sv     Solve
		breaks string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, origin_lon, origin_lat, travel_mode, breaks, created_at FROM solves WHERE id = ?`, id,
	).Scan(&sv.ID, &sv.Origin.Lon, &sv.Origin.Lat, &sv.TravelMode, &breaks, &sv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: solve %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get solve %s", id)
	}
	if sv.Breaks, err = decodeBreaks(breaks); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT break, label, geom FROM solve_rings WHERE solve_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get rings %s", id)
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var (
			brk   float64
			label string
			wkb   []byte
		)
		if err := rows.Scan(&brk, &label, &wkb); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ring")
		}
		ring, err := decodeRing(brk, label, wkb)
		if err != nil {
			return nil, err
		}
		sv.Rings = append(sv.Rings, ring)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rings")
	}
	return &sv, nil
}

func (s *SQLiteStore) ListSolves(ctx context.Context, limit int) ([]SolveSummary, error) {
	query := `SELECT s.id, s.origin_lon, s.origin_lat, s.travel_mode, s.breaks, s.created_at,
		(SELECT COUNT(*) FROM solve_rings r WHERE r.solve_id = s.id)
		FROM solves s ORDER BY s.created_at DESC, s.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list solves")
	}
	defer rows.Close() //nolint:errcheck

	var out []SolveSummary
	for rows.Next() {
		var (
			sum    SolveSummary
			breaks string
		)
		if err := rows.Scan(&sum.ID, &sum.Origin.Lon, &sum.Origin.Lat, &sum.TravelMode, &breaks, &sum.CreatedAt, &sum.RingCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan solve")
		}
		if sum.Breaks, err = decodeBreaks(breaks); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate solves")
}

func (s *SQLiteStore) SaveStats(ctx context.Context, solveID string, stats *catchment.Stats) (*StatsRecord, error) {
	if stats == nil {
		return nil, eris.New("sqlite: nil stats")
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal stats")
	}
	rec := &StatsRecord{ID: uuid.New().String(), SolveID: solveID, Stats: *stats, CreatedAt: time.Now().UTC()}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO solve_stats (id, solve_id, stats, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, solveID, string(data), rec.CreatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert stats for solve %s", solveID)
	}
	return rec, nil
}

func (s *SQLiteStore) GetStats(ctx context.Context, solveID string) (*StatsRecord, error) {
	var (
		rec  StatsRecord
		data string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, solve_id, stats, created_at FROM solve_stats WHERE solve_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		solveID,
	).Scan(&rec.ID, &rec.SolveID, &data, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: stats for solve %s", solveID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get stats %s", solveID)
	}
	if err := json.Unmarshal([]byte(data), &rec.Stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stats")
	}
	return &rec, nil
}

var _ Store = (*SQLiteStore)(nil)
