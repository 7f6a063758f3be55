package protocol

import "encoding/json"

// HostType tags messages the supervisor sends to the worker.
type HostType string

const (
	HostStart            HostType = "start"
	HostStop             HostType = "stop"
	HostStateUpdate      HostType = "state-update"
	HostSongsList        HostType = "songs-list"
	HostSongLyrics       HostType = "song-lyrics"
	HostScriptureChapter HostType = "scripture-chapter"
	HostThemesList       HostType = "themes-list"
	HostScheduleList     HostType = "schedule-list"
	HostTranslationsList HostType = "translations-list"
	HostSearchResults    HostType = "search-results"
)

// WorkerType tags messages the worker sends to the supervisor.
type WorkerType string

const (
	WorkerStarted            WorkerType = "started"
	WorkerStopped            WorkerType = "stopped"
	WorkerError              WorkerType = "error"
	WorkerClientConnected    WorkerType = "client-connected"
	WorkerClientDisconnected WorkerType = "client-disconnected"

	WorkerRequestSongs        WorkerType = "request-songs"
	WorkerRequestSongLyrics   WorkerType = "request-song-lyrics"
	WorkerRequestScripture    WorkerType = "request-scripture"
	WorkerRequestThemes       WorkerType = "request-themes"
	WorkerRequestSchedule     WorkerType = "request-schedule"
	WorkerRequestTranslations WorkerType = "request-translations"

	WorkerGoLive          WorkerType = "go-live"
	WorkerGoBlank         WorkerType = "go-blank"
	WorkerNavigate        WorkerType = "navigate"
	WorkerSearchSongs     WorkerType = "search-songs"
	WorkerSearchScripture WorkerType = "search-scripture"
	WorkerAddToSchedule   WorkerType = "add-to-schedule"
)

// IsRequest reports whether t asks the host for content or an action on
// behalf of a client.
func (t WorkerType) IsRequest() bool {
	switch t {
	case WorkerRequestSongs, WorkerRequestSongLyrics, WorkerRequestScripture,
		WorkerRequestThemes, WorkerRequestSchedule, WorkerRequestTranslations,
		WorkerGoLive, WorkerGoBlank, WorkerNavigate,
		WorkerSearchSongs, WorkerSearchScripture, WorkerAddToSchedule:
		return true
	}
	return false
}

// StartPayload asks the worker to listen on Port. Zero picks a free port.
type StartPayload struct {
	Port int `json:"port"`
}

// StartedPayload reports the bound port and reachable addresses.
type StartedPayload struct {
	Port      int      `json:"port"`
	Addresses []string `json:"addresses"`
}

// ErrorPayload carries a human readable failure.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ClientConnectedPayload announces a new client.
type ClientConnectedPayload struct {
	ClientID   string     `json:"clientId"`
	ClientInfo ClientInfo `json:"clientInfo"`
}

// ClientRef names the client a request came from or a reply goes to.
// An empty ClientID on a reply means broadcast.
type ClientRef struct {
	ClientID string `json:"clientId,omitempty"`
}

// StateUpdatePayload pushes the live state.
type StateUpdatePayload struct {
	State RemoteAppState `json:"state"`
}

// SongsListPayload answers request-songs.
type SongsListPayload struct {
	ClientRef
	Songs []RemoteSong `json:"songs"`
}

// SongLyricsRequest asks for the lyrics of one song.
type SongLyricsRequest struct {
	ClientRef
	SongID int64 `json:"songId"`
}

// SongLyricsPayload answers request-song-lyrics.
type SongLyricsPayload struct {
	ClientRef
	SongID int64             `json:"songId"`
	Lyrics []RemoteSongLyric `json:"lyrics"`
}

// ScriptureRequest asks for one chapter.
type ScriptureRequest struct {
	ClientRef
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Version string `json:"version"`
}

// ScriptureChapterPayload answers request-scripture.
type ScriptureChapterPayload struct {
	ClientRef
	Data ScriptureChapter `json:"data"`
}

// ThemesListPayload answers request-themes.
type ThemesListPayload struct {
	ClientRef
	Themes []RemoteTheme `json:"themes"`
}

// ScheduleListPayload pushes the live schedule. Always broadcast.
type ScheduleListPayload struct {
	Items []RemoteScheduleItem `json:"items"`
}

// TranslationsListPayload answers request-translations.
type TranslationsListPayload struct {
	ClientRef
	Translations []RemoteTranslation `json:"translations"`
}

// SearchKind tells a client which result list is populated.
type SearchKind string

const (
	SearchSongs     SearchKind = "songs"
	SearchScripture SearchKind = "scripture"
)

// SearchResultsPayload answers search-songs and search-scripture. Only the
// list matching Kind is encoded, and it is always an array, never omitted.
type SearchResultsPayload struct {
	ClientRef
	Kind   SearchKind       `json:"kind"`
	Query  string           `json:"query"`
	Songs  []RemoteSong     `json:"songs,omitempty"`
	Verses []ScriptureMatch `json:"verses,omitempty"`
}

func (p SearchResultsPayload) MarshalJSON() ([]byte, error) {
	if p.Kind == SearchScripture {
		verses := p.Verses
		if verses == nil {
			verses = []ScriptureMatch{}
		}
		return json.Marshal(struct {
			ClientRef
			Kind   SearchKind       `json:"kind"`
			Query  string           `json:"query"`
			Verses []ScriptureMatch `json:"verses"`
		}{p.ClientRef, p.Kind, p.Query, verses})
	}

	songs := p.Songs
	if songs == nil {
		songs = []RemoteSong{}
	}
	return json.Marshal(struct {
		ClientRef
		Kind  SearchKind   `json:"kind"`
		Query string       `json:"query"`
		Songs []RemoteSong `json:"songs"`
	}{p.ClientRef, p.Kind, p.Query, songs})
}

// GoLivePayload puts an item on the audience display.
type GoLivePayload struct {
	ClientRef
	Item RemoteDisplayItem `json:"item"`
}

// NavigatePayload moves the live item.
type NavigatePayload struct {
	ClientRef
	Direction NavigateDirection `json:"direction"`
}

// SearchSongsPayload searches the song library.
type SearchSongsPayload struct {
	ClientRef
	Query string `json:"query"`
}

// SearchScripturePayload searches verse text, optionally in one version.
type SearchScripturePayload struct {
	ClientRef
	Query   string `json:"query"`
	Version string `json:"version,omitempty"`
}

// AddToSchedulePayload queues an item on the schedule.
type AddToSchedulePayload struct {
	ClientRef
	Item RemoteAddScheduleItem `json:"item"`
}
