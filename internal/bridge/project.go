package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/codefionn/pulpit/internal/protocol"
)

func projectSongs(songs []Song) []protocol.RemoteSong {
	out := make([]protocol.RemoteSong, 0, len(songs))
	for _, s := range songs {
		out = append(out, protocol.RemoteSong{
			ID:      s.ID,
			Title:   s.Title,
			Author:  s.Author,
			ThemeID: s.ThemeID,
		})
	}
	return out
}

// projectLyrics normalizes every section. A section whose text cannot be
// read keeps its label with no lines and is reported in errs.
func projectLyrics(lyrics []SongLyric) (out []protocol.RemoteSongLyric, errs []error) {
	out = make([]protocol.RemoteSongLyric, 0, len(lyrics))
	for _, l := range lyrics {
		lines, err := NormalizeLines(l.Text)
		if err != nil {
			errs = append(errs, fmt.Errorf("lyric %q: %w", l.Label, err))
			lines = []string{}
		}
		out = append(out, protocol.RemoteSongLyric{Label: l.Label, Lines: lines})
	}
	return out, errs
}

// NormalizeLines turns stored lyric text into a line list: a string becomes
// one line, an array keeps its order, null or empty becomes no lines.
func NormalizeLines(raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []string{}, nil
	}

	switch trimmed[0] {
	case '"':
		var line string
		if err := json.Unmarshal(trimmed, &line); err != nil {
			return nil, err
		}
		return []string{line}, nil
	case '[':
		var lines []string
		if err := json.Unmarshal(trimmed, &lines); err != nil {
			return nil, err
		}
		if lines == nil {
			lines = []string{}
		}
		return lines, nil
	default:
		return nil, fmt.Errorf("unsupported lyric text %.20q", trimmed)
	}
}

func projectChapter(q ChapterQuery, verses []VerseRecord) protocol.ScriptureChapter {
	chapter := protocol.ScriptureChapter{
		Book:    q.Book,
		Chapter: q.Chapter,
		Version: q.Version,
		Verses:  make([]protocol.Verse, 0, len(verses)),
	}
	for _, v := range verses {
		if chapter.Version == "" {
			chapter.Version = v.Version
		}
		chapter.Verses = append(chapter.Verses, protocol.Verse{Verse: v.Verse, Text: v.Text})
	}
	return chapter
}

func projectMatches(verses []VerseRecord) []protocol.ScriptureMatch {
	out := make([]protocol.ScriptureMatch, 0, len(verses))
	for _, v := range verses {
		out = append(out, protocol.ScriptureMatch{
			Book:    v.Book,
			Chapter: v.Chapter,
			Verse:   v.Verse,
			Text:    v.Text,
			Version: v.Version,
		})
	}
	return out
}
