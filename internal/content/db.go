// Package content is the SQLite library of songs, themes and scripture the
// remote control bridge answers from.
package content

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles SQLite operations for the content library
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the library at dbPath and migrates its schema.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS themes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS songs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL DEFAULT '',
		copyright TEXT NOT NULL DEFAULT '',
		ccli TEXT NOT NULL DEFAULT '',
		theme_id INTEGER,
		FOREIGN KEY (theme_id) REFERENCES themes(id) ON DELETE SET NULL
	);

	CREATE TABLE IF NOT EXISTS song_lyrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		song_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		label TEXT NOT NULL,
		text TEXT,
		FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS translations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		abbreviation TEXT NOT NULL UNIQUE,
		language TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS verses (
		translation_id INTEGER NOT NULL,
		book TEXT NOT NULL,
		chapter INTEGER NOT NULL,
		verse INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (translation_id, book, chapter, verse),
		FOREIGN KEY (translation_id) REFERENCES translations(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_song_lyrics_song ON song_lyrics(song_id, position);
	CREATE INDEX IF NOT EXISTS idx_songs_title ON songs(title COLLATE NOCASE);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// withTx runs fn in a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
