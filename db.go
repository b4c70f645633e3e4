package main

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Blob cache keys
const (
	keyDocument = "document"
	keySession  = "session"
)

type DB struct {
	*sql.DB
}

func OpenDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	return &DB{db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Put stores value under key, replacing any previous value
func (db *DB) Put(key string, value []byte) error {
	_, err := db.Exec(
		`INSERT OR REPLACE INTO blobs (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().Unix(),
	)
	return err
}

// Get returns the value stored under key, or nil if there is none
func (db *DB) Get(key string) ([]byte, error) {
	row := db.QueryRow(`SELECT value FROM blobs WHERE key = ?`, key)
	var value []byte
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *DB) Delete(key string) error {
	_, err := db.Exec(`DELETE FROM blobs WHERE key = ?`, key)
	return err
}

// Session is the viewer state restored on startup
type Session struct {
	Date      string `json:"date,omitempty"`
	Timezone  string `json:"timezone"`
	UseRaw    bool   `json:"use_raw"`
	ColorMode string `json:"color_mode"`
}

// SaveSession persists the viewer state
func (db *DB) SaveSession(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return db.Put(keySession, data)
}

// LoadSession returns the saved viewer state, or nil if there is none
func (db *DB) LoadSession() (*Session, error) {
	data, err := db.Get(keySession)
	if err != nil || data == nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("corrupt session: %w", err)
	}
	return &s, nil
}

// SummaryKey identifies a cached day summary
type SummaryKey struct {
	DocHash  string
	Timezone string
	UseRaw   bool
	Date     string
}

// PutDaySummary caches a summary
func (db *DB) PutDaySummary(key SummaryKey, summary *DaySummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT OR REPLACE INTO day_summaries (doc_hash, timezone, raw, date, summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key.DocHash, key.Timezone, key.UseRaw, key.Date, string(data), time.Now().Unix(),
	)
	return err
}

// GetDaySummary returns a cached summary, or nil if there is none
func (db *DB) GetDaySummary(key SummaryKey) (*DaySummary, error) {
	row := db.QueryRow(
		`SELECT summary FROM day_summaries WHERE doc_hash = ? AND timezone = ? AND raw = ? AND date = ?`,
		key.DocHash, key.Timezone, key.UseRaw, key.Date,
	)
	var data string
	err := row.Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary DaySummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// PruneDaySummaries drops summaries of every document but docHash
func (db *DB) PruneDaySummaries(docHash string) (int64, error) {
	result, err := db.Exec(`DELETE FROM day_summaries WHERE doc_hash != ?`, docHash)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
