package protocol

import "time"

// ClientInfo identifies one connected external client.
type ClientInfo struct {
	ID          string    `json:"id"`
	IP          string    `json:"ip"`
	UserAgent   string    `json:"userAgent"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// ServerStatus is the supervisor's view of the worker.
type ServerStatus struct {
	Running   bool         `json:"running"`
	Port      int          `json:"port"`
	Addresses []string     `json:"addresses"`
	Clients   []ClientInfo `json:"clients"`
}

// ItemType classifies the live item.
type ItemType string

const (
	ItemScripture ItemType = "scripture"
	ItemSong      ItemType = "song"
	ItemImage     ItemType = "image"
	ItemVideo     ItemType = "video"
	ItemNone      ItemType = "none"
)

// CurrentItem describes what the audience display is showing.
type CurrentItem struct {
	Type        ItemType `json:"type"`
	Title       string   `json:"title"`
	SlideIndex  int      `json:"slideIndex"`
	TotalSlides int      `json:"totalSlides"`
}

// RemoteAppState is the live presentation snapshot owned by the UI.
type RemoteAppState struct {
	IsLive      bool         `json:"isLive"`
	CurrentItem *CurrentItem `json:"currentItem,omitempty"`
	HideLive    bool         `json:"hideLive"`
	ShowLogo    bool         `json:"showLogo"`
}

// RemoteSong is the outward projection of a stored song.
type RemoteSong struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Author  string `json:"author"`
	ThemeID *int64 `json:"themeId,omitempty"`
}

// RemoteSongLyric is one labelled section of a song. Lines is never nil.
type RemoteSongLyric struct {
	Label string   `json:"label"`
	Lines []string `json:"text"`
}

// RemoteScheduleItem is a thin view of one entry of the live schedule.
type RemoteScheduleItem struct {
	ID       string            `json:"id"`
	Type     ItemType          `json:"type"`
	Title    string            `json:"title"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RemoteDisplayItem addresses content a client wants to put live.
type RemoteDisplayItem struct {
	Type       ItemType `json:"type"`
	SongID     int64    `json:"songId,omitempty"`
	SlideIndex int      `json:"slideIndex,omitempty"`
	Book       string   `json:"book,omitempty"`
	Chapter    int      `json:"chapter,omitempty"`
	Verse      int      `json:"verse,omitempty"`
	Version    string   `json:"version,omitempty"`
	Title      string   `json:"title,omitempty"`
}

// RemoteAddScheduleItem addresses content a client wants to queue.
type RemoteAddScheduleItem struct {
	Type    ItemType `json:"type"`
	SongID  int64    `json:"songId,omitempty"`
	Book    string   `json:"book,omitempty"`
	Chapter int      `json:"chapter,omitempty"`
	Verse   int      `json:"verse,omitempty"`
	Version string   `json:"version,omitempty"`
	Title   string   `json:"title,omitempty"`
}

// Verse is one verse of a chapter.
type Verse struct {
	Verse int    `json:"verse"`
	Text  string `json:"text"`
}

// ScriptureChapter is a full chapter in one version.
type ScriptureChapter struct {
	Book    string  `json:"book"`
	Chapter int     `json:"chapter"`
	Version string  `json:"version"`
	Verses  []Verse `json:"verses"`
}

// ScriptureMatch is a verse found by a scripture search.
type ScriptureMatch struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
	Version string `json:"version"`
}

// RemoteTheme is a presentation theme a song may reference.
type RemoteTheme struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// RemoteTranslation is a scripture version available in the library.
type RemoteTranslation struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Language     string `json:"language,omitempty"`
}

// NavigateDirection moves the live item by one slide.
type NavigateDirection string

const (
	NavigateNext NavigateDirection = "next"
	NavigatePrev NavigateDirection = "prev"
)

// Valid reports whether d is a known direction.
func (d NavigateDirection) Valid() bool {
	return d == NavigateNext || d == NavigatePrev
}
