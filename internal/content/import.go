package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library is the YAML import format.
//
//	themes:
//	  - name: Dark
//	translations:
//	  - name: King James Version
//	    abbreviation: KJV
//	    language: en
//	    books:
//	      - name: John
//	        chapters:
//	          - number: 3
//	            verses: ["There was a man of the Pharisees...", "..."]
//	songs:
//	  - title: Amazing Grace
//	    author: John Newton
//	    theme: Dark
//	    sections:
//	      - label: Verse 1
//	        lines: ["Amazing grace, how sweet the sound", "..."]
//
// Verses are numbered from 1 in list order.
type Library struct {
	Themes       []LibraryTheme       `yaml:"themes"`
	Translations []LibraryTranslation `yaml:"translations"`
	Songs        []LibrarySong        `yaml:"songs"`
}

type LibraryTheme struct {
	Name string `yaml:"name"`
}

type LibraryTranslation struct {
	Name         string        `yaml:"name"`
	Abbreviation string        `yaml:"abbreviation"`
	Language     string        `yaml:"language"`
	Books        []LibraryBook `yaml:"books"`
}

type LibraryBook struct {
	Name     string           `yaml:"name"`
	Chapters []LibraryChapter `yaml:"chapters"`
}

type LibraryChapter struct {
	Number int      `yaml:"number"`
	Verses []string `yaml:"verses"`
}

type LibrarySong struct {
	Title     string           `yaml:"title"`
	Author    string           `yaml:"author"`
	Copyright string           `yaml:"copyright"`
	CCLI      string           `yaml:"ccli"`
	Theme     string           `yaml:"theme"`
	Sections  []LibrarySection `yaml:"sections"`
}

// LibrarySection holds either several lines or a single text block.
type LibrarySection struct {
	Label string   `yaml:"label"`
	Lines []string `yaml:"lines"`
	Text  *string  `yaml:"text"`
}

// ImportStats counts what an import wrote.
type ImportStats struct {
	Themes       int
	Translations int
	Verses       int
	Songs        int
}

func (s ImportStats) String() string {
	return fmt.Sprintf("%d themes, %d translations, %d verses, %d songs", s.Themes, s.Translations, s.Verses, s.Songs)
}

// ImportFile imports the YAML library at path.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportStats{}, fmt.Errorf("failed to open library: %w", err)
	}
	defer f.Close()
	return s.ImportLibrary(ctx, f)
}

// ImportLibrary loads a YAML library in one transaction. Themes and
// translations are merged by name and abbreviation; songs are always added.
func (s *Store) ImportLibrary(ctx context.Context, r io.Reader) (ImportStats, error) {
	var lib Library
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lib); err != nil && err != io.EOF {
		return ImportStats{}, fmt.Errorf("failed to parse library: %w", err)
	}
	if err := lib.validate(); err != nil {
		return ImportStats{}, err
	}

	var stats ImportStats
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		themeIDs := make(map[string]int64)
		for _, t := range lib.Themes {
			id, err := upsertTheme(ctx, tx, t.Name)
			if err != nil {
				return err
			}
			themeIDs[strings.ToLower(t.Name)] = id
			stats.Themes++
		}

		for _, t := range lib.Translations {
			n, err := importTranslation(ctx, tx, t)
			if err != nil {
				return err
			}
			stats.Translations++
			stats.Verses += n
		}

		for _, song := range lib.Songs {
			var themeID sql.NullInt64
			if song.Theme != "" {
				id, ok := themeIDs[strings.ToLower(song.Theme)]
				if !ok {
					var err error
					if id, err = upsertTheme(ctx, tx, song.Theme); err != nil {
						return err
					}
					themeIDs[strings.ToLower(song.Theme)] = id
				}
				themeID = sql.NullInt64{Int64: id, Valid: true}
			}
			if err := insertSong(ctx, tx, song, themeID); err != nil {
				return err
			}
			stats.Songs++
		}
		return nil
	})
	if err != nil {
		return ImportStats{}, err
	}
	return stats, nil
}

func (lib *Library) validate() error {
	for i, t := range lib.Themes {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("theme %d has no name", i+1)
		}
	}
	for i, t := range lib.Translations {
		if strings.TrimSpace(t.Abbreviation) == "" {
			return fmt.Errorf("translation %d has no abbreviation", i+1)
		}
		for _, b := range t.Books {
			if strings.TrimSpace(b.Name) == "" {
				return fmt.Errorf("translation %s has a book without a name", t.Abbreviation)
			}
			for _, c := range b.Chapters {
				if c.Number <= 0 {
					return fmt.Errorf("%s %s: chapter number must be positive", t.Abbreviation, b.Name)
				}
			}
		}
	}
	for i, song := range lib.Songs {
		if strings.TrimSpace(song.Title) == "" {
			return fmt.Errorf("song %d has no title", i+1)
		}
		for _, sec := range song.Sections {
			if sec.Text != nil && len(sec.Lines) > 0 {
				return fmt.Errorf("song %q section %q has both text and lines", song.Title, sec.Label)
			}
		}
	}
	return nil
}

func upsertTheme(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO themes (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("failed to insert theme %q: %w", name, err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM themes WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up theme %q: %w", name, err)
	}
	return id, nil
}

func importTranslation(ctx context.Context, tx *sql.Tx, t LibraryTranslation) (int, error) {
	name := t.Name
	if name == "" {
		name = t.Abbreviation
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO translations (name, abbreviation, language) VALUES (?, ?, ?)
		ON CONFLICT(abbreviation) DO UPDATE SET name = excluded.name, language = excluded.language`,
		name, t.Abbreviation, t.Language)
	if err != nil {
		return 0, fmt.Errorf("failed to insert translation %s: %w", t.Abbreviation, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM translations WHERE abbreviation = ?`, t.Abbreviation).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up translation %s: %w", t.Abbreviation, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO verses (translation_id, book, chapter, verse, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	count := 0
	for _, b := range t.Books {
		for _, c := range b.Chapters {
			for i, text := range c.Verses {
				if _, err := stmt.ExecContext(ctx, id, b.Name, c.Number, i+1, text); err != nil {
					return 0, fmt.Errorf("failed to insert %s %s %d:%d: %w", t.Abbreviation, b.Name, c.Number, i+1, err)
				}
				count++
			}
		}
	}
	return count, nil
}

func insertSong(ctx context.Context, tx *sql.Tx, song LibrarySong, themeID sql.NullInt64) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO songs (title, author, copyright, ccli, theme_id) VALUES (?, ?, ?, ?, ?)`,
		song.Title, song.Author, song.Copyright, song.CCLI, themeID)
	if err != nil {
		return fmt.Errorf("failed to insert song %q: %w", song.Title, err)
	}
	songID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for i, sec := range song.Sections {
		text, err := sectionText(sec)
		if err != nil {
			return fmt.Errorf("song %q section %q: %w", song.Title, sec.Label, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO song_lyrics (song_id, position, label, text) VALUES (?, ?, ?, ?)`,
			songID, i, sec.Label, text); err != nil {
			return fmt.Errorf("failed to insert lyrics for %q: %w", song.Title, err)
		}
	}
	return nil
}

// sectionText stores lines as a JSON array and a text block as a JSON string.
func sectionText(sec LibrarySection) (sql.NullString, error) {
	var v any
	switch {
	case sec.Text != nil:
		v = *sec.Text
	case sec.Lines != nil:
		v = sec.Lines
	default:
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
