package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// New creates and initializes a new SQLite database connection.
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// migrate creates the necessary tables if they don't exist.
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sweeps (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		camera TEXT NOT NULL,
		exposure INTEGER NOT NULL,
		gain INTEGER NOT NULL,
		aperture INTEGER,
		focus_min INTEGER NOT NULL,
		focus_max INTEGER,
		focus_step INTEGER
	);

	CREATE TABLE IF NOT EXISTS sweep_jobs (
		sweep_id TEXT NOT NULL,
		image_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		focus INTEGER NOT NULL,
		PRIMARY KEY (sweep_id, sequence),
		FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sweeps_created_at ON sweeps(created_at);
	CREATE INDEX IF NOT EXISTS idx_sweep_jobs_image_id ON sweep_jobs(image_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
