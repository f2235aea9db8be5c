package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"cuebase/config"
	"cuebase/logger"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var DB *sql.DB

// ConnectDB opens the embedded SQLite database. The store is single-writer:
// the pool is pinned to one connection so every mutation serializes, and
// readers never observe a half-applied transaction.
func ConnectDB(cfg *config.Config) error {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.DBPath)

	var err error
	DB, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	DB.SetMaxOpenConns(1)

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database", logger.String("path", cfg.DBPath))
	return nil
}

// InitDB creates the schema if it does not exist.
func InitDB() error {
	return InitSchema(DB)
}

// InitSchema applies the schema DDL to the given connection. Split out from
// InitDB so tests can run against their own in-memory databases.
func InitSchema(conn *sql.DB) error {
	if err := createTracksTable(conn); err != nil {
		return err
	}
	if err := createPlaylistTables(conn); err != nil {
		return err
	}
	if err := createSettingsTable(conn); err != nil {
		return err
	}
	return nil
}

func createTracksTable(conn *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content_hash TEXT NOT NULL UNIQUE,
		file_path TEXT NOT NULL,
		format TEXT NOT NULL DEFAULT '',
		bitrate INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		artist TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		label TEXT NOT NULL DEFAULT '',
		genres TEXT NOT NULL DEFAULT '[]',
		bpm REAL,
		bpm_override REAL,
		key_raw TEXT NOT NULL DEFAULT '',
		key_camelot TEXT NOT NULL DEFAULT '',
		loudness REAL,
		replay_gain REAL,
		intro_secs REAL,
		outro_secs REAL,
		rating INTEGER NOT NULL DEFAULT 0 CHECK (rating >= 0 AND rating <= 5),
		notes TEXT NOT NULL DEFAULT '',
		analyzed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tracks_created_at ON tracks(created_at);
	CREATE INDEX IF NOT EXISTS idx_tracks_title ON tracks(title);
	CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
	`
	if _, err := conn.Exec(query); err != nil {
		return fmt.Errorf("failed to create tracks table: %w", err)
	}
	return nil
}

func createPlaylistTables(conn *sql.DB) error {
	// Position contiguity is enforced by the repository transactions, not by a
	// UNIQUE constraint: SQLite checks uniqueness per row during UPDATE, which
	// would reject the in-place shifts used by remove and reorder.
	query := `
	CREATE TABLE IF NOT EXISTS playlists (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id INTEGER NOT NULL,
		track_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		date_added DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (playlist_id, track_id),
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		FOREIGN KEY (track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_playlist_tracks_position ON playlist_tracks(playlist_id, position);
	`
	if _, err := conn.Exec(query); err != nil {
		return fmt.Errorf("failed to create playlist tables: %w", err)
	}
	return nil
}

func createSettingsTable(conn *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := conn.Exec(query); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}
	return nil
}
