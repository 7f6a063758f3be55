package protocol

// ClientType tags messages an external client sends to the worker.
type ClientType string

const (
	ClientGetSongs        ClientType = "get-songs"
	ClientGetSongLyrics   ClientType = "get-song-lyrics"
	ClientGetScripture    ClientType = "get-scripture"
	ClientGetThemes       ClientType = "get-themes"
	ClientGetSchedule     ClientType = "get-schedule"
	ClientGetTranslations ClientType = "get-translations"
	ClientGoLive          ClientType = "go-live"
	ClientGoBlank         ClientType = "go-blank"
	ClientNavigate        ClientType = "navigate"
	ClientSearchSongs     ClientType = "search-songs"
	ClientSearchScripture ClientType = "search-scripture"
	ClientAddToSchedule   ClientType = "add-to-schedule"
	ClientPing            ClientType = "ping"
)

// ServerType tags messages the worker sends to an external client.
type ServerType string

const (
	ServerState         ServerType = "state"
	ServerSongs         ServerType = "songs"
	ServerSongLyrics    ServerType = "song-lyrics"
	ServerScripture     ServerType = "scripture"
	ServerThemes        ServerType = "themes"
	ServerSchedule      ServerType = "schedule"
	ServerTranslations  ServerType = "translations"
	ServerSearchResults ServerType = "search-results"
	ServerError         ServerType = "error"
	ServerConnected     ServerType = "connected"
)

// ConnectedPayload is the first message on every connection.
type ConnectedPayload struct {
	ClientID string `json:"clientId"`
}

// clientToWorker maps each forwarded client tag to its upstream tag.
var clientToWorker = map[ClientType]WorkerType{
	ClientGetSongs:        WorkerRequestSongs,
	ClientGetSongLyrics:   WorkerRequestSongLyrics,
	ClientGetScripture:    WorkerRequestScripture,
	ClientGetThemes:       WorkerRequestThemes,
	ClientGetSchedule:     WorkerRequestSchedule,
	ClientGetTranslations: WorkerRequestTranslations,
	ClientGoLive:          WorkerGoLive,
	ClientGoBlank:         WorkerGoBlank,
	ClientNavigate:        WorkerNavigate,
	ClientSearchSongs:     WorkerSearchSongs,
	ClientSearchScripture: WorkerSearchScripture,
	ClientAddToSchedule:   WorkerAddToSchedule,
}

// UpstreamType returns the worker→host tag a client request is relayed as.
// ok is false for ping and for unknown tags.
func (t ClientType) UpstreamType() (WorkerType, bool) {
	wt, ok := clientToWorker[t]
	return wt, ok
}

// hostToServer maps each host push to the tag clients receive.
var hostToServer = map[HostType]ServerType{
	HostStateUpdate:      ServerState,
	HostSongsList:        ServerSongs,
	HostSongLyrics:       ServerSongLyrics,
	HostScriptureChapter: ServerScripture,
	HostThemesList:       ServerThemes,
	HostScheduleList:     ServerSchedule,
	HostTranslationsList: ServerTranslations,
	HostSearchResults:    ServerSearchResults,
}

// DownstreamType returns the client-facing tag for a host push. ok is false
// for lifecycle commands (start, stop) and unknown tags.
func (t HostType) DownstreamType() (ServerType, bool) {
	st, ok := hostToServer[t]
	return st, ok
}
