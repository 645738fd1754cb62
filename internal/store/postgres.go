package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/catchment-cli/internal/catchment"
	"github.com/sells-group/catchment-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS solves (
	id          TEXT PRIMARY KEY,
	origin_lon  DOUBLE PRECISION NOT NULL,
	origin_lat  DOUBLE PRECISION NOT NULL,
	travel_mode TEXT NOT NULL,
	breaks      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS solve_rings (
	solve_id TEXT NOT NULL REFERENCES solves(id) ON DELETE CASCADE,
	seq      INTEGER NOT NULL,
	break    DOUBLE PRECISION NOT NULL,
	label    TEXT NOT NULL DEFAULT '',
	geom     BYTEA NOT NULL,
	PRIMARY KEY (solve_id, seq)
);

CREATE TABLE IF NOT EXISTS solve_stats (
	id         TEXT PRIMARY KEY,
	solve_id   TEXT NOT NULL REFERENCES solves(id) ON DELETE CASCADE,
	stats      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_solves_created_at ON solves(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_solve_stats_solve_id ON solve_stats(solve_id, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveSolve inserts the solve row and COPYs its rings in one transaction.
func (s *PostgresStore) SaveSolve(ctx context.Context, sv *Solve) error {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO solves (id, origin_lon, origin_lat, travel_mode, breaks, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sv.Origin.Lon, sv.Origin.Lat, sv.TravelMode, breaks, now,
	); err != nil {
		_ = tx.Rollback(ctx)
		return eris.Wrap(err, "postgres: insert solve")
	}

	if _, err := db.CopyFrom(ctx, tx, "solve_rings", ringColumns, rows); err != nil {
		_ = tx.Rollback(ctx)
		return eris.Wrap(err, "postgres: insert rings")
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit solve")
	}
	sv.ID = id
	sv.CreatedAt = now
	return nil
}

func (s *PostgresStore) GetSolve(ctx context.Context, id string) (*Solve, error) {
	var (
		sv     Solve
		breaks string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, origin_lon, origin_lat, travel_mode, breaks::text, created_at FROM solves WHERE id = $1`, id,
	).Scan(&sv.ID, &sv.Origin.Lon, &sv.Origin.Lat, &sv.TravelMode, &breaks, &sv.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: solve %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get solve %s", id)
	}
	if sv.Breaks, err = decodeBreaks(breaks); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT break, label, geom FROM solve_rings WHERE solve_id = $1 ORDER BY seq`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get rings %s", id)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			brk   float64
			label string
			wkb   []byte
		)
		if err := rows.Scan(&brk, &label, &wkb); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ring")
		}
		ring, err := decodeRing(brk, label, wkb)
		if err != nil {
			return nil, err
		}
		sv.Rings = append(sv.Rings, ring)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rings")
	}
	return &sv, nil
}

func (s *PostgresStore) ListSolves(ctx context.Context, limit int) ([]SolveSummary, error) {
	query := `SELECT s.id, s.origin_lon, s.origin_lat, s.travel_mode, s.breaks::text, s.created_at,
		(SELECT COUNT(*) FROM solve_rings r WHERE r.solve_id = s.id)
		FROM solves s ORDER BY s.created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list solves")
	}
	defer rows.Close()

	var out []SolveSummary
	for rows.Next() {
		var (
			sum    SolveSummary
			breaks string
			count  int64
		)
		if err := rows.Scan(&sum.ID, &sum.Origin.Lon, &sum.Origin.Lat, &sum.TravelMode, &breaks, &sum.CreatedAt, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan solve")
		}
		if sum.Breaks, err = decodeBreaks(breaks); err != nil {
			return nil, err
		}
		sum.RingCount = int(count)
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate solves")
}

func (s *PostgresStore) SaveStats(ctx context.Context, solveID string, stats *catchment.Stats) (*StatsRecord, error) {
	if stats == nil {
		return nil, eris.New("postgres: nil stats")
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal stats")
	}
	rec := &StatsRecord{ID: uuid.New().String(), SolveID: solveID, Stats: *stats, CreatedAt: time.Now().UTC()}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO solve_stats (id, solve_id, stats, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, solveID, data, rec.CreatedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: insert stats for solve %s", solveID)
	}
	return rec, nil
}

func (s *PostgresStore) GetStats(ctx context.Context, solveID string) (*StatsRecord, error) {
	var (
		rec  StatsRecord
		data []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, solve_id, stats, created_at FROM solve_stats WHERE solve_id = $1 ORDER BY created_at DESC LIMIT 1`,
		solveID,
	).Scan(&rec.ID, &rec.SolveID, &data, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: stats for solve %s", solveID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get stats %s", solveID)
	}
	if err := json.Unmarshal(data, &rec.Stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stats")
	}
	return &rec, nil
}

var _ Store = (*PostgresStore)(nil)
