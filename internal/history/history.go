package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kassabot/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Store keeps the export cycle history in a local SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the history database.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	query := `CREATE TABLE IF NOT EXISTS export_cycles (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        date DATETIME NOT NULL,
        started_at DATETIME NOT NULL,
        finished_at DATETIME NOT NULL,
        success BOOLEAN NOT NULL,
        categories TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`
	if _, err := db.Exec(query); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_export_cycles_started ON export_cycles(started_at)`)
	return err
}

// SaveCycle appends one finished cycle to the history.
func (s *Store) SaveCycle(ctx context.Context, cycle *models.ExportCycle) error {
	payload, err := json.Marshal(cycle.Categories)
	if err != nil {
		return fmt.Errorf("encode categories: %w", err)
	}

	query := `INSERT INTO export_cycles (date, started_at, finished_at, success, categories)
              VALUES (?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		cycle.Date, cycle.StartedAt, cycle.FinishedAt, cycle.Success, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save export cycle: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	cycle.ID = id
	return nil
}

// RecentCycles returns the latest cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, limit int) ([]*models.ExportCycle, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT id, date, started_at, finished_at, success, categories
              FROM export_cycles ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get export cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*models.ExportCycle
	for rows.Next() {
		var (
			c       models.ExportCycle
			date    time.Time
			payload string
		)
		if err := rows.Scan(&c.ID, &date, &c.StartedAt, &c.FinishedAt, &c.Success, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan export cycle: %w", err)
		}
		c.Date = date
		if err := json.Unmarshal([]byte(payload), &c.Categories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
		cycles = append(cycles, &c)
	}
	return cycles, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
