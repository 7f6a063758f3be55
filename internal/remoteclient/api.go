package remoteclient

import (
	"context"

	"github.com/codefionn/pulpit/internal/protocol"
)

// GetSongs asks for the song list and waits for it.
func (c *Client) GetSongs(ctx context.Context) ([]protocol.RemoteSong, error) {
	if err := c.Send(protocol.ClientGetSongs, nil); err != nil {
		return nil, err
	}
	msg, err := c.Await(ctx, protocol.ServerSongs)
	if err != nil {
		return nil, err
	}
	var p protocol.SongsListPayload
	if err := msg.Decode(&p); err != nil {
		return nil, err
	}
	return p.Songs, nil
}

// GetSongLyrics asks for one song's lyrics and waits for them.
func (c *Client) GetSongLyrics(ctx context.Context, songID int64) ([]protocol.RemoteSongLyric, error) {
	if err := c.Send(protocol.ClientGetSongLyrics, protocol.SongLyricsRequest{SongID: songID}); err != nil {
		return nil, err
	}
	msg, err := c.Await(ctx, protocol.ServerSongLyrics)
	if err != nil {
		return nil, err
	}
	var p protocol.SongLyricsPayload
	if err := msg.Decode(&p); err != nil {
		return nil, err
	}
	return p.Lyrics, nil
}

// GetScripture asks for a chapter and waits for it.
func (c *Client) GetScripture(ctx context.Context, book string, chapter int, version string) (protocol.ScriptureChapter, error) {
	req := protocol.ScriptureRequest{Book: book, Chapter: chapter, Version: version}
	if err := c.Send(protocol.ClientGetScripture, req); err != nil {
		return protocol.ScriptureChapter{}, err
	}
	msg, err := c.Await(ctx, protocol.ServerScripture)
	if err != nil {
		return protocol.ScriptureChapter{}, err
	}
	var chapterData protocol.ScriptureChapter
	if err := msg.Decode(&chapterData); err != nil {
		return protocol.ScriptureChapter{}, err
	}
	return chapterData, nil
}

// GetTranslations asks for the scripture versions and waits for them.
func (c *Client) GetTranslations(ctx context.Context) ([]protocol.RemoteTranslation, error) {
	if err := c.Send(protocol.ClientGetTranslations, nil); err != nil {
		return nil, err
	}
	msg, err := c.Await(ctx, protocol.ServerTranslations)
	if err != nil {
		return nil, err
	}
	var p protocol.TranslationsListPayload
	if err := msg.Decode(&p); err != nil {
		return nil, err
	}
	return p.Translations, nil
}

// SearchSongs runs a song search and waits for the results.
func (c *Client) SearchSongs(ctx context.Context, query string) ([]protocol.RemoteSong, error) {
	if err := c.Send(protocol.ClientSearchSongs, protocol.SearchSongsPayload{Query: query}); err != nil {
		return nil, err
	}
	msg, err := c.Await(ctx, protocol.ServerSearchResults)
	if err != nil {
		return nil, err
	}
	var p protocol.SearchResultsPayload
	if err := msg.Decode(&p); err != nil {
		return nil, err
	}
	return p.Songs, nil
}

// GoLive puts item on the audience display.
func (c *Client) GoLive(item protocol.RemoteDisplayItem) error {
	return c.Send(protocol.ClientGoLive, protocol.GoLivePayload{Item: item})
}

// GoBlank blanks the audience display.
func (c *Client) GoBlank() error {
	return c.Send(protocol.ClientGoBlank, nil)
}

// Navigate moves the live item one slide.
func (c *Client) Navigate(dir protocol.NavigateDirection) error {
	return c.Send(protocol.ClientNavigate, protocol.NavigatePayload{Direction: dir})
}

// AddToSchedule queues an item on the schedule.
func (c *Client) AddToSchedule(item protocol.RemoteAddScheduleItem) error {
	return c.Send(protocol.ClientAddToSchedule, protocol.AddToSchedulePayload{Item: item})
}

// GetSchedule asks the host to push the schedule.
func (c *Client) GetSchedule() error {
	return c.Send(protocol.ClientGetSchedule, nil)
}
