package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/pulpit/internal/bridge"
	"github.com/codefionn/pulpit/internal/protocol"
)

func TestPresenterNavigationClamps(t *testing.T) {
	p := NewPresenter(nil, 0, quiet())
	var pushed []protocol.RemoteAppState
	p.push = func(s protocol.RemoteAppState) { pushed = append(pushed, s) }

	// Nothing live: navigation is ignored.
	p.Apply(bridge.Command{Kind: protocol.WorkerNavigate, Direction: protocol.NavigateNext})
	assert.Empty(t, pushed)

	p.Apply(bridge.Command{Kind: protocol.WorkerGoLive, Item: protocol.RemoteDisplayItem{Type: protocol.ItemImage, Title: "Welcome"}})
	require.Len(t, pushed, 1)
	assert.True(t, pushed[0].IsLive)
	assert.Equal(t, "Welcome", pushed[0].CurrentItem.Title)

	p.Apply(bridge.Command{Kind: protocol.WorkerNavigate, Direction: protocol.NavigatePrev})
	assert.Len(t, pushed, 1)

	p.Apply(bridge.Command{Kind: protocol.WorkerNavigate, Direction: protocol.NavigateNext})
	require.Len(t, pushed, 2)
	assert.Equal(t, 1, pushed[1].CurrentItem.SlideIndex)

	// Earlier snapshots are not aliased by later updates.
	assert.Equal(t, 0, pushed[0].CurrentItem.SlideIndex)
}

func TestPresenterBlankIsIdempotent(t *testing.T) {
	p := NewPresenter(nil, 0, quiet())
	count := 0
	p.push = func(protocol.RemoteAppState) { count++ }

	p.Apply(bridge.Command{Kind: protocol.WorkerGoBlank})
	p.Apply(bridge.Command{Kind: protocol.WorkerGoBlank})
	assert.Equal(t, 1, count)
	assert.True(t, p.State().HideLive)

	p.Apply(bridge.Command{Kind: protocol.WorkerGoLive, Item: protocol.RemoteDisplayItem{Type: protocol.ItemVideo, Title: "Announcements"}})
	assert.False(t, p.State().HideLive)
}

func TestPresenterSchedule(t *testing.T) {
	p := NewPresenter(nil, 0, quiet())
	var pushed [][]protocol.RemoteScheduleItem
	p.sched = func(items []protocol.RemoteScheduleItem) { pushed = append(pushed, items) }

	p.Apply(bridge.Command{Kind: protocol.WorkerAddToSchedule, Schedule: protocol.RemoteAddScheduleItem{Type: protocol.ItemSong, SongID: 12, Title: "Abide With Me"}})
	p.Apply(bridge.Command{Kind: protocol.WorkerAddToSchedule, Schedule: protocol.RemoteAddScheduleItem{Type: protocol.ItemScripture, Book: "Psalm", Chapter: 23}})

	items := p.Schedule()
	require.Len(t, items, 2)
	assert.Equal(t, "12", items[0].Metadata["songId"])
	assert.Equal(t, "Psalm 23", items[1].Title)
	assert.NotEqual(t, items[0].ID, items[1].ID)
	require.Len(t, pushed, 2)
	assert.Len(t, pushed[1], 2)
}

// stalledStore never answers before its context ends.
type stalledStore struct{}

func (stalledStore) FetchAllSongs(ctx context.Context) ([]bridge.Song, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) FetchSongLyrics(ctx context.Context, _ int64) ([]bridge.SongLyric, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) SearchSongs(ctx context.Context, _ string) ([]bridge.Song, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) FetchChapter(ctx context.Context, _ bridge.ChapterQuery) ([]bridge.VerseRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledStore) SearchScriptures(ctx context.Context, _, _ string) ([]bridge.VerseRecord, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPresenterLookupUsesConfiguredTimeout(t *testing.T) {
	p := NewPresenter(stalledStore{}, 50*time.Millisecond, quiet())
	p.push = func(protocol.RemoteAppState) {}

	start := time.Now()
	p.Apply(bridge.Command{Kind: protocol.WorkerGoLive, Item: protocol.RemoteDisplayItem{Type: protocol.ItemSong, SongID: 3, Title: "Abide With Me"}})
	assert.Less(t, time.Since(start), 2*time.Second)

	state := p.State()
	assert.True(t, state.IsLive)
	assert.Equal(t, "Abide With Me", state.CurrentItem.Title)
	assert.Zero(t, state.CurrentItem.TotalSlides)
}
