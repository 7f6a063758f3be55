package content

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pulpit/internal/bridge"
)

const testLibrary = `
themes:
  - name: Dark
  - name: Light
translations:
  - name: King James Version
    abbreviation: KJV
    language: en
    books:
      - name: John
        chapters:
          - number: 3
            verses:
              - "There was a man of the Pharisees, named Nicodemus, a ruler of the Jews:"
              - "The same came to Jesus by night"
              - "Jesus answered and said unto him"
  - name: World English Bible
    abbreviation: WEB
    language: en
    books:
      - name: John
        chapters:
          - number: 3
            verses:
              - "Now there was a man of the Pharisees named Nicodemus, a ruler of the Jews."
songs:
  - title: Amazing Grace
    author: John Newton
    ccli: "22025"
    theme: Dark
    sections:
      - label: Verse 1
        lines:
          - "Amazing grace, how sweet the sound"
          - "That saved a wretch like me"
      - label: Tag
        text: "Amazing grace"
      - label: Instrumental
  - title: Be Thou My Vision
    author: Traditional
    theme: Celtic
`

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	stats, err := store.ImportLibrary(context.Background(), strings.NewReader(testLibrary))
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Themes: 2, Translations: 2, Verses: 4, Songs: 2}, stats)
	return store
}

func TestFetchAllSongs(t *testing.T) {
	store := openTestStore(t)

	songs, err := store.FetchAllSongs(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)

	assert.Equal(t, "Amazing Grace", songs[0].Title)
	assert.Equal(t, "John Newton", songs[0].Author)
	assert.Equal(t, "22025", songs[0].CCLI)
	require.NotNil(t, songs[0].ThemeID)

	// Unknown themes referenced by songs are created on import.
	require.NotNil(t, songs[1].ThemeID)
	themes, err := store.ListThemes(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(themes))
	for _, th := range themes {
		names = append(names, th.Name)
	}
	assert.Equal(t, []string{"Celtic", "Dark", "Light"}, names)
}

func TestLyricsRoundTripThroughNormalization(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	songs, err := store.SearchSongs(ctx, "amazing")
	require.NoError(t, err)
	require.Len(t, songs, 1)

	lyrics, err := store.FetchSongLyrics(ctx, songs[0].ID)
	require.NoError(t, err)
	require.Len(t, lyrics, 3)

	assert.JSONEq(t, `["Amazing grace, how sweet the sound","That saved a wretch like me"]`, string(lyrics[0].Text))
	assert.JSONEq(t, `"Amazing grace"`, string(lyrics[1].Text))
	assert.Nil(t, lyrics[2].Text)

	want := [][]string{
		{"Amazing grace, how sweet the sound", "That saved a wretch like me"},
		{"Amazing grace"},
		{},
	}
	for i, l := range lyrics {
		lines, err := bridge.NormalizeLines(l.Text)
		require.NoError(t, err)
		assert.Equal(t, want[i], lines, l.Label)
	}
}

func TestSearchSongs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		query string
		want  []string
	}{
		{"vision", []string{"Be Thou My Vision"}},
		{"newton", []string{"Amazing Grace"}},
		{"wretch", []string{"Amazing Grace"}},
		{"100%", nil},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			songs, err := store.SearchSongs(ctx, tt.query)
			require.NoError(t, err)
			var titles []string
			for _, s := range songs {
				titles = append(titles, s.Title)
			}
			assert.Equal(t, tt.want, titles)
		})
	}
}

func TestFetchChapter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	verses, err := store.FetchChapter(ctx, bridge.ChapterQuery{Book: "john", Chapter: 3, Version: "kjv"})
	require.NoError(t, err)
	require.Len(t, verses, 3)
	assert.Equal(t, 1, verses[0].Verse)
	assert.Equal(t, "KJV", verses[0].Version)
	assert.Equal(t, "The same came to Jesus by night", verses[1].Text)

	// No version falls back to the first translation.
	verses, err = store.FetchChapter(ctx, bridge.ChapterQuery{Book: "John", Chapter: 3})
	require.NoError(t, err)
	assert.Len(t, verses, 3)

	verses, err = store.FetchChapter(ctx, bridge.ChapterQuery{Book: "John", Chapter: 4, Version: "WEB"})
	require.NoError(t, err)
	assert.Empty(t, verses)

	_, err = store.FetchChapter(ctx, bridge.ChapterQuery{Book: "John", Chapter: 3, Version: "NIV"})
	assert.ErrorIs(t, err, ErrUnknownVersion)
}

func TestSearchScriptures(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	all, err := store.SearchScriptures(ctx, "Nicodemus", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "KJV", all[0].Version)
	assert.Equal(t, "WEB", all[1].Version)

	web, err := store.SearchScriptures(ctx, "nicodemus", "web")
	require.NoError(t, err)
	require.Len(t, web, 1)
	assert.Equal(t, bridge.VerseRecord{
		Book:    "John",
		Chapter: 3,
		Verse:   1,
		Text:    "Now there was a man of the Pharisees named Nicodemus, a ruler of the Jews.",
		Version: "WEB",
	}, web[0])
}

func TestListTranslations(t *testing.T) {
	store := openTestStore(t)

	translations, err := store.ListTranslations(context.Background())
	require.NoError(t, err)
	require.Len(t, translations, 2)
	assert.Equal(t, "KJV", translations[0].Abbreviation)
	assert.Equal(t, "World English Bible", translations[1].Name)
}

func TestReimportMergesTranslations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.ImportLibrary(ctx, strings.NewReader(`
translations:
  - name: King James Version (1769)
    abbreviation: KJV
    books:
      - name: John
        chapters:
          - number: 3
            verses: ["replaced"]
`))
	require.NoError(t, err)

	translations, err := store.ListTranslations(ctx)
	require.NoError(t, err)
	require.Len(t, translations, 2)
	assert.Equal(t, "King James Version (1769)", translations[0].Name)

	verses, err := store.FetchChapter(ctx, bridge.ChapterQuery{Book: "John", Chapter: 3, Version: "KJV"})
	require.NoError(t, err)
	require.Len(t, verses, 3)
	assert.Equal(t, "replaced", verses[0].Text)
}

func TestImportRejectsInvalidLibraries(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer store.Close()

	tests := map[string]string{
		"unknown field":      "hymns: []",
		"untitled song":      "songs:\n  - author: nobody",
		"no abbreviation":    "translations:\n  - name: Nameless",
		"text and lines":     "songs:\n  - title: X\n    sections:\n      - label: A\n        text: a\n        lines: [b]",
		"bad chapter number": "translations:\n  - abbreviation: X\n    books:\n      - name: John\n        chapters:\n          - number: 0",
		"malformed yaml":     "songs: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := store.ImportLibrary(context.Background(), strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	songs, err := store.FetchAllSongs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestImportIsAtomic(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.ImportLibrary(ctx, strings.NewReader("songs:\n  - title: Kept\n"))
	require.NoError(t, err)

	// Cancelled context: nothing from this import may land.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.ImportLibrary(cancelled, strings.NewReader("songs:\n  - title: Dropped\n"))
	require.Error(t, err)

	songs, err := store.FetchAllSongs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "Kept", songs[0].Title)
}

func TestEmptyStoreAnswersEmptyLists(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	songs, err := store.FetchAllSongs(ctx)
	require.NoError(t, err)
	assert.NotNil(t, songs)

	lyrics, err := store.FetchSongLyrics(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, lyrics)

	data, err := json.Marshal(songs)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	_, err = store.FetchChapter(ctx, bridge.ChapterQuery{Book: "John", Chapter: 3})
	assert.ErrorIs(t, err, ErrUnknownVersion)
}
