package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codefionn/pulpit/internal/bridge"
	"github.com/codefionn/pulpit/internal/protocol"
)

// SearchLimit caps the rows a search returns.
const SearchLimit = 100

// ErrUnknownVersion is returned for a scripture version not in the library.
var ErrUnknownVersion = errors.New("unknown scripture version")

var (
	_ bridge.ContentStore      = (*Store)(nil)
	_ bridge.ThemeSource       = (*Store)(nil)
	_ bridge.TranslationSource = (*Store)(nil)
)

const songColumns = `id, title, author, theme_id, copyright, ccli`

func scanSongs(rows *sql.Rows) ([]bridge.Song, error) {
	defer rows.Close()

	songs := []bridge.Song{}
	for rows.Next() {
		var song bridge.Song
		var themeID sql.NullInt64
		if err := rows.Scan(&song.ID, &song.Title, &song.Author, &themeID, &song.Copyright, &song.CCLI); err != nil {
			return nil, err
		}
		if themeID.Valid {
			id := themeID.Int64
			song.ThemeID = &id
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// FetchAllSongs returns every song ordered by title.
func (s *Store) FetchAllSongs(ctx context.Context) ([]bridge.Song, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+songColumns+` FROM songs ORDER BY title COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	return scanSongs(rows)
}

// SearchSongs matches title, author or lyric text.
func (s *Store) SearchSongs(ctx context.Context, query string) ([]bridge.Song, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []bridge.Song{}, nil
	}
	pattern := likePattern(query)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+songColumns+` FROM songs
		WHERE title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\'
		   OR id IN (SELECT song_id FROM song_lyrics WHERE text LIKE ? ESCAPE '\')
		ORDER BY title COLLATE NOCASE, id
		LIMIT ?`, pattern, pattern, pattern, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search songs: %w", err)
	}
	return scanSongs(rows)
}

// FetchSongLyrics returns a song's sections in order. Text is passed through
// as stored JSON.
func (s *Store) FetchSongLyrics(ctx context.Context, songID int64) ([]bridge.SongLyric, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT label, text FROM song_lyrics WHERE song_id = ? ORDER BY position, id`, songID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lyrics: %w", err)
	}
	defer rows.Close()

	lyrics := []bridge.SongLyric{}
	for rows.Next() {
		var label string
		var text sql.NullString
		if err := rows.Scan(&label, &text); err != nil {
			return nil, err
		}
		lyric := bridge.SongLyric{Label: label}
		if text.Valid {
			lyric.Text = json.RawMessage(text.String)
		}
		lyrics = append(lyrics, lyric)
	}
	return lyrics, rows.Err()
}

// resolveVersion maps an abbreviation to a translation id. An empty version
// picks the first translation in the library.
func (s *Store) resolveVersion(ctx context.Context, version string) (int64, string, error) {
	var id int64
	var abbreviation string
	var row *sql.Row
	if version == "" {
		row = s.db.QueryRowContext(ctx, `SELECT id, abbreviation FROM translations ORDER BY id LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, abbreviation FROM translations WHERE abbreviation = ? COLLATE NOCASE`, version)
	}
	if err := row.Scan(&id, &abbreviation); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", fmt.Errorf("%w: %q", ErrUnknownVersion, version)
		}
		return 0, "", fmt.Errorf("failed to resolve version: %w", err)
	}
	return id, abbreviation, nil
}

// FetchChapter returns the verses of one chapter in verse order.
func (s *Store) FetchChapter(ctx context.Context, q bridge.ChapterQuery) ([]bridge.VerseRecord, error) {
	translationID, abbreviation, err := s.resolveVersion(ctx, q.Version)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT book, chapter, verse, text FROM verses
		WHERE translation_id = ? AND book = ? COLLATE NOCASE AND chapter = ?
		ORDER BY verse`, translationID, q.Book, q.Chapter)
	if err != nil {
		return nil, fmt.Errorf("failed to query chapter: %w", err)
	}
	return scanVerses(rows, abbreviation)
}

// SearchScriptures matches verse text, optionally within one version.
func (s *Store) SearchScriptures(ctx context.Context, query, version string) ([]bridge.VerseRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []bridge.VerseRecord{}, nil
	}

	var rows *sql.Rows
	var err error
	if version == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT v.book, v.chapter, v.verse, v.text, t.abbreviation FROM verses v
			JOIN translations t ON t.id = v.translation_id
			WHERE v.text LIKE ? ESCAPE '\'
			ORDER BY t.id, v.rowid
			LIMIT ?`, likePattern(query), SearchLimit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT v.book, v.chapter, v.verse, v.text, t.abbreviation FROM verses v
			JOIN translations t ON t.id = v.translation_id
			WHERE t.abbreviation = ? COLLATE NOCASE AND v.text LIKE ? ESCAPE '\'
			ORDER BY v.rowid
			LIMIT ?`, version, likePattern(query), SearchLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search scripture: %w", err)
	}
	defer rows.Close()

	verses := []bridge.VerseRecord{}
	for rows.Next() {
		var v bridge.VerseRecord
		if err := rows.Scan(&v.Book, &v.Chapter, &v.Verse, &v.Text, &v.Version); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

func scanVerses(rows *sql.Rows, version string) ([]bridge.VerseRecord, error) {
	defer rows.Close()

	verses := []bridge.VerseRecord{}
	for rows.Next() {
		v := bridge.VerseRecord{Version: version}
		if err := rows.Scan(&v.Book, &v.Chapter, &v.Verse, &v.Text); err != nil {
			return nil, err
		}
		verses = append(verses, v)
	}
	return verses, rows.Err()
}

// ListThemes returns every theme ordered by name.
func (s *Store) ListThemes(ctx context.Context) ([]protocol.RemoteTheme, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM themes ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("failed to query themes: %w", err)
	}
	defer rows.Close()

	themes := []protocol.RemoteTheme{}
	for rows.Next() {
		var t protocol.RemoteTheme
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		themes = append(themes, t)
	}
	return themes, rows.Err()
}

// ListTranslations returns every scripture version in insertion order.
func (s *Store) ListTranslations(ctx context.Context) ([]protocol.RemoteTranslation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, abbreviation, language FROM translations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query translations: %w", err)
	}
	defer rows.Close()

	translations := []protocol.RemoteTranslation{}
	for rows.Next() {
		var t protocol.RemoteTranslation
		if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.Language); err != nil {
			return nil, err
		}
		translations = append(translations, t)
	}
	return translations, rows.Err()
}

func likePattern(query string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(query) + "%"
}
