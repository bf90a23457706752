package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"simfluence/internal/features"
	"simfluence/internal/logging"
	"simfluence/internal/model"
)

// DB wraps a SQLite database holding the training run ledger and the
// feature vectors predictions were made on.
type DB struct{ sql *sql.DB }

func Open(path string) (*DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		d.SetMaxOpenConns(1)
	}
	if _, err := d.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		return nil, err
	}
	db := &DB{sql: d}
	if err := db.migrate(); err != nil {
		_ = d.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) Close() error { return d.sql.Close() }

func (d *DB) migrate() error {
	_, err := d.sql.Exec(`
	CREATE TABLE IF NOT EXISTS training_runs (
	  id TEXT PRIMARY KEY,
	  started_at INTEGER NOT NULL,
	  finished_at INTEGER NOT NULL,
	  provenance TEXT NOT NULL,
	  row_count INTEGER NOT NULL,
	  feature_count INTEGER NOT NULL,
	  fallback INTEGER NOT NULL DEFAULT 0,
	  metrics TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON training_runs(started_at);
	CREATE TABLE IF NOT EXISTS predictions (
	  id INTEGER PRIMARY KEY AUTOINCREMENT,
	  ts INTEGER NOT NULL,
	  request_id TEXT,
	  columns TEXT,
	  vector BLOB NOT NULL,
	  likes INTEGER NOT NULL,
	  comments INTEGER NOT NULL,
	  shares INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_ts ON predictions(ts);
	`)
	return err
}

// Metric is the held-out score of one target.
type Metric struct {
	MSE float64 `json:"mse"`
	R2  float64 `json:"r2"`
}

// Run is one training pipeline execution.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Provenance string
	Rows       int
	Features   int
	Fallback   bool
	Metrics    map[string]Metric
}

// PutRun stores a finished training run.
func (d *DB) PutRun(ctx context.Context, r Run) error {
	mb, err := json.Marshal(r.Metrics)
	if err != nil {
		return err
	}
	fallback := 0
	if r.Fallback {
		fallback = 1
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO training_runs(id, started_at, finished_at, provenance, row_count, feature_count, fallback, metrics) VALUES(?,?,?,?,?,?,?,?)`,
		r.ID, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(), r.Provenance, r.Rows, r.Features, fallback, string(mb))
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT id, started_at, finished_at, provenance, row_count, feature_count, fallback, COALESCE(metrics, '') FROM training_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		var fallback int
		var metrics string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Provenance, &r.Rows, &r.Features, &fallback, &metrics); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started).UTC()
		r.FinishedAt = time.UnixMilli(finished).UTC()
		r.Fallback = fallback == 1
		if metrics != "" {
			if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
				return nil, err
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutPrediction stores the vector a prediction was made on.
func (d *DB) PutPrediction(ctx context.Context, ts time.Time, requestID string, v features.Vector, p model.Prediction) error {
	cb, err := json.Marshal(v.Columns)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, `INSERT INTO predictions(ts, request_id, columns, vector, likes, comments, shares) VALUES(?,?,?,?,?,?,?)`,
		ts.Unix(), requestID, string(cb), encodeF32(v.Float32()), p.Likes, p.Comments, p.Shares)
	return err
}

// RecordPrediction logs p under the request ID carried by ctx.
func (d *DB) RecordPrediction(ctx context.Context, v features.Vector, p model.Prediction) error {
	return d.PutPrediction(ctx, time.Now().UTC(), logging.RequestIDFromContext(ctx), v, p)
}

// StoredPrediction is one row of the prediction log.
type StoredPrediction struct {
	TS        time.Time
	RequestID string
	Columns   []string
	Vector    []float32
	Likes     int
	Comments  int
	Shares    int
}

// LoadPredictionsRange returns predictions in [start, end)
func (d *DB) LoadPredictionsRange(ctx context.Context, start, end time.Time) ([]StoredPrediction, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT ts, COALESCE(request_id, ''), COALESCE(columns, '[]'), vector, likes, comments, shares FROM predictions WHERE ts>=? AND ts<? ORDER BY ts, id`, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredPrediction
	for rows.Next() {
		var p StoredPrediction
		var ts int64
		var cols string
		var vb []byte
		if err := rows.Scan(&ts, &p.RequestID, &cols, &vb, &p.Likes, &p.Comments, &p.Shares); err != nil {
			return nil, err
		}
		p.TS = time.Unix(ts, 0).UTC()
		if err := json.Unmarshal([]byte(cols), &p.Columns); err != nil {
			return nil, err
		}
		p.Vector = decodeF32(vb)
		out = append(out, p)
	}
	return out, rows.Err()
}

func encodeF32(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v[i]))
	}
	return b
}

func decodeF32(b []byte) []float32 {
	n := len(b) / 4
	v := make([]float32, n)
	for i := 0; i < n; i++ {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
