package bridge

import (
	"context"
	"encoding/json"

	"github.com/codefionn/pulpit/internal/protocol"
)

// Song is a stored song. Only ID, Title, Author and ThemeID leave the host.
type Song struct {
	ID        int64
	Title     string
	Author    string
	ThemeID   *int64
	Copyright string
	CCLI      string
}

// SongLyric is one labelled lyric section as stored. Text is either a JSON
// string, a JSON array of strings, or null.
type SongLyric struct {
	Label string
	Text  json.RawMessage
}

// ChapterQuery addresses one chapter. An empty Version means the store's
// default version.
type ChapterQuery struct {
	Book    string
	Chapter int
	Version string
}

// VerseRecord is one stored verse.
type VerseRecord struct {
	Book    string
	Chapter int
	Verse   int
	Text    string
	Version string
}

// ContentStore is the content database the bridge answers requests from.
type ContentStore interface {
	FetchAllSongs(ctx context.Context) ([]Song, error)
	FetchSongLyrics(ctx context.Context, songID int64) ([]SongLyric, error)
	SearchSongs(ctx context.Context, query string) ([]Song, error)
	FetchChapter(ctx context.Context, q ChapterQuery) ([]VerseRecord, error)
	SearchScriptures(ctx context.Context, query, version string) ([]VerseRecord, error)
}

// ThemeSource lists presentation themes.
type ThemeSource interface {
	ListThemes(ctx context.Context) ([]protocol.RemoteTheme, error)
}

// TranslationSource lists the scripture versions in the library.
type TranslationSource interface {
	ListTranslations(ctx context.Context) ([]protocol.RemoteTranslation, error)
}

// ScheduleSource returns the live schedule owned by the UI.
type ScheduleSource interface {
	Schedule() []protocol.RemoteScheduleItem
}

// ScheduleFunc adapts a plain function to ScheduleSource.
type ScheduleFunc func() []protocol.RemoteScheduleItem

// Schedule implements ScheduleSource.
func (f ScheduleFunc) Schedule() []protocol.RemoteScheduleItem {
	return f()
}
