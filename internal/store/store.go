// Package store keeps a history of solve runs in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"bisection/internal/solver"
)

//go:embed schema.sql
var schemaSQL string

// Status — исход запуска
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusStopped Status = "stopped"
)

// ErrNotFound — запуска с таким id нет
var ErrNotFound = errors.New("store: run not found")

// Run — одна запись истории
type Run struct {
	ID         string        `json:"id"`
	Expr       string        `json:"expr"`
	XL         float64       `json:"xl"`
	XR         float64       `json:"xr"`
	Eps        float64       `json:"eps"`
	Evaluator  string        `json:"evaluator"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Root       float64       `json:"result"`
	Iterations int           `json:"iterations"`
	CapReached bool          `json:"capReached,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	Trace      []solver.Iter `json:"log,omitempty"`
}

// Store — история запусков в SQLite
type Store struct {
	db *sql.DB
}

// NewStore открывает (или создаёт) базу; ":memory:" — база в памяти
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// одно соединение: иначе у ":memory:" у каждого соединения своя база
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает базу
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save записывает запуск вместе с трассой одной транзакцией
func (s *Store) Save(ctx context.Context, r *Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, expr, xl, xr, eps, evaluator, status, error, root, iterations, cap_reached, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Expr, r.XL, r.XR, r.Eps, r.Evaluator, string(r.Status), r.Error,
		r.Root, r.Iterations, r.CapReached, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(r.Trace) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO iterations (run_id, k, xm, rel_error, xl, xr) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare iterations: %w", err)
		}
		defer stmt.Close()

		for _, it := range r.Trace {
			if _, err := stmt.ExecContext(ctx, r.ID, it.K, it.XM, it.Err, it.XL, it.XR); err != nil {
				return fmt.Errorf("insert iteration %d: %w", it.K, err)
			}
		}
	}

	return tx.Commit()
}

const runColumns = `id, expr, xl, xr, eps, evaluator, status, error, root, iterations, cap_reached, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r      Run
		status string
		root   sql.NullFloat64
	)
	if err := row.Scan(&r.ID, &r.Expr, &r.XL, &r.XR, &r.Eps, &r.Evaluator, &status, &r.Error,
		&root, &r.Iterations, &r.CapReached, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.Root = root.Float64
	return &r, nil
}

// Get возвращает запуск вместе с трассой
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT k, xm, rel_error, xl, xr FROM iterations WHERE run_id = ? ORDER BY k`, id)
	if err != nil {
		return nil, fmt.Errorf("get iterations %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var it solver.Iter
		if err := rows.Scan(&it.K, &it.XM, &it.Err, &it.XL, &it.XR); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		r.Trace = append(r.Trace, it)
	}
	return r, rows.Err()
}

// Recent — последние запуски без трасс, новые первыми
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
