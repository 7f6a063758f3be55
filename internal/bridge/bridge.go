// Package bridge answers remote control requests from the content store and
// hands remote commands to the UI.
//
// Every request is served on its own goroutine, so a slow lookup never holds
// up the supervisor's message loop. Replies carry the requesting client's id
// and are unicast by the worker. Lookups that fail are logged and answered
// with empty results; clients never see store errors.
package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/codefionn/pulpit/internal/config"
	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
	"github.com/codefionn/pulpit/internal/supervisor"
)

// Link is the part of the supervisor the bridge talks through.
type Link interface {
	Subscribe(fn func(supervisor.Event)) func()
	Send(typ protocol.HostType, payload any) error
	SendSchedule(items []protocol.RemoteScheduleItem)
}

// Command is a remote action for the UI: go-live, go-blank, navigate or
// add-to-schedule.
type Command struct {
	Kind      protocol.WorkerType
	ClientID  string
	Item      protocol.RemoteDisplayItem
	Direction protocol.NavigateDirection
	Schedule  protocol.RemoteAddScheduleItem
}

// CommandHandler applies a remote action.
type CommandHandler func(Command)

// Options configures a Bridge.
type Options struct {
	Store        ContentStore
	Themes       ThemeSource
	Translations TranslationSource
	Schedule     ScheduleSource
	// LookupTimeout bounds each store call.
	LookupTimeout time.Duration
	Logger        *logger.Logger
}

type handlerEntry struct {
	id int
	fn CommandHandler
}

// Bridge connects supervisor requests to content and commands.
type Bridge struct {
	link Link
	opts Options
	log  *logger.Logger

	mu       sync.RWMutex
	nextID   int
	handlers []handlerEntry

	unsubscribe func()
	inflight    sync.WaitGroup
}

// New creates a bridge. Call Start to begin answering.
func New(link Link, opts Options) *Bridge {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = config.DefaultLookupTimeoutSeconds * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global().WithPrefix("bridge")
	}
	if opts.Themes == nil {
		if ts, ok := opts.Store.(ThemeSource); ok {
			opts.Themes = ts
		}
	}
	if opts.Translations == nil {
		if ts, ok := opts.Store.(TranslationSource); ok {
			opts.Translations = ts
		}
	}
	return &Bridge{link: link, opts: opts, log: opts.Logger}
}

// Start subscribes to supervisor requests.
func (b *Bridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.unsubscribe != nil {
		return
	}
	b.unsubscribe = b.link.Subscribe(b.onEvent)
}

// Close unsubscribes and waits for requests already being served.
func (b *Bridge) Close() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	b.inflight.Wait()
}

// OnCommand registers fn for remote actions. The returned func removes it.
func (b *Bridge) OnCommand(fn CommandHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, handlerEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, h := range b.handlers {
			if h.id == id {
				b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

func (b *Bridge) onEvent(ev supervisor.Event) {
	if ev.Kind != supervisor.EventRequest {
		return
	}
	// Commands run in arrival order on the supervisor's goroutine; lookups
	// run concurrently.
	if isCommand(ev.Message.Type) {
		b.dispatchCommand(ev.Message)
		return
	}
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.Handle(ev.Message)
	}()
}

// Handle serves one worker request synchronously.
func (b *Bridge) Handle(msg protocol.WorkerMessage) {
	switch msg.Type {
	case protocol.WorkerRequestSongs:
		b.serveSongs(msg)
	case protocol.WorkerSearchSongs:
		b.serveSongSearch(msg)
	case protocol.WorkerRequestSongLyrics:
		b.serveLyrics(msg)
	case protocol.WorkerRequestScripture:
		b.serveChapter(msg)
	case protocol.WorkerSearchScripture:
		b.serveScriptureSearch(msg)
	case protocol.WorkerRequestThemes:
		b.serveThemes(msg)
	case protocol.WorkerRequestTranslations:
		b.serveTranslations(msg)
	case protocol.WorkerRequestSchedule:
		b.serveSchedule()
	default:
		if isCommand(msg.Type) {
			b.dispatchCommand(msg)
			return
		}
		b.log.Debug("No handler for %q", msg.Type)
	}
}

func isCommand(t protocol.WorkerType) bool {
	switch t {
	case protocol.WorkerGoLive, protocol.WorkerGoBlank, protocol.WorkerNavigate, protocol.WorkerAddToSchedule:
		return true
	}
	return false
}

func (b *Bridge) lookupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.opts.LookupTimeout)
}

func (b *Bridge) reply(typ protocol.HostType, payload any) {
	if err := b.link.Send(typ, payload); err != nil {
		b.log.Debug("Reply %s not sent: %v", typ, err)
	}
}

func (b *Bridge) decode(msg protocol.WorkerMessage, v any) bool {
	if err := msg.Decode(v); err != nil {
		b.log.Warn("%v", err)
		return false
	}
	return true
}

func (b *Bridge) serveSongs(msg protocol.WorkerMessage) {
	var ref protocol.ClientRef
	if !b.decode(msg, &ref) {
		return
	}
	out := protocol.SongsListPayload{ClientRef: ref, Songs: []protocol.RemoteSong{}}

	if b.opts.Store != nil {
		ctx, cancel := b.lookupContext()
		songs, err := b.opts.Store.FetchAllSongs(ctx)
		cancel()
		if err != nil {
			b.log.Warn("Failed to fetch songs: %v", err)
		} else {
			out.Songs = projectSongs(songs)
		}
	}
	b.reply(protocol.HostSongsList, out)
}

func (b *Bridge) serveSongSearch(msg protocol.WorkerMessage) {
	var req protocol.SearchSongsPayload
	if !b.decode(msg, &req) {
		return
	}
	out := protocol.SearchResultsPayload{
		ClientRef: req.ClientRef,
		Kind:      protocol.SearchSongs,
		Query:     req.Query,
		Songs:     []protocol.RemoteSong{},
	}

	if b.opts.Store != nil {
		ctx, cancel := b.lookupContext()
		songs, err := b.opts.Store.SearchSongs(ctx, req.Query)
		cancel()
		if err != nil {
			b.log.Warn("Song search %q failed: %v", req.Query, err)
		} else {
			out.Songs = projectSongs(songs)
		}
	}
	b.reply(protocol.HostSearchResults, out)
}

func (b *Bridge) serveLyrics(msg protocol.WorkerMessage) {
	var req protocol.SongLyricsRequest
	if !b.decode(msg, &req) {
		return
	}
	out := protocol.SongLyricsPayload{
		ClientRef: req.ClientRef,
		SongID:    req.SongID,
		Lyrics:    []protocol.RemoteSongLyric{},
	}

	if b.opts.Store != nil {
		ctx, cancel := b.lookupContext()
		lyrics, err := b.opts.Store.FetchSongLyrics(ctx, req.SongID)
		cancel()
		if err != nil {
			b.log.Warn("Failed to fetch lyrics for song %d: %v", req.SongID, err)
		} else {
			projected, errs := projectLyrics(lyrics)
			for _, err := range errs {
				b.log.Warn("Song %d: %v", req.SongID, err)
			}
			out.Lyrics = projected
		}
	}
	b.reply(protocol.HostSongLyrics, out)
}

func (b *Bridge) serveChapter(msg protocol.WorkerMessage) {
	var req protocol.ScriptureRequest
	if !b.decode(msg, &req) {
		return
	}
	q := ChapterQuery{Book: req.Book, Chapter: req.Chapter, Version: req.Version}
	out := protocol.ScriptureChapterPayload{ClientRef: req.ClientRef, Data: projectChapter(q, nil)}

	if b.opts.Store != nil {
		ctx, cancel := b.lookupContext()
		verses, err := b.opts.Store.FetchChapter(ctx, q)
		cancel()
		if err != nil {
			b.log.Warn("Failed to fetch %s %d (%s): %v", q.Book, q.Chapter, q.Version, err)
		} else {
			out.Data = projectChapter(q, verses)
		}
	}
	b.reply(protocol.HostScriptureChapter, out)
}

func (b *Bridge) serveScriptureSearch(msg protocol.WorkerMessage) {
	var req protocol.SearchScripturePayload
	if !b.decode(msg, &req) {
		return
	}
	out := protocol.SearchResultsPayload{
		ClientRef: req.ClientRef,
		Kind:      protocol.SearchScripture,
		Query:     req.Query,
		Verses:    []protocol.ScriptureMatch{},
	}

	if b.opts.Store != nil {
		ctx, cancel := b.lookupContext()
		verses, err := b.opts.Store.SearchScriptures(ctx, req.Query, req.Version)
		cancel()
		if err != nil {
			b.log.Warn("Scripture search %q failed: %v", req.Query, err)
		} else {
			out.Verses = projectMatches(verses)
		}
	}
	b.reply(protocol.HostSearchResults, out)
}

func (b *Bridge) serveThemes(msg protocol.WorkerMessage) {
	var ref protocol.ClientRef
	if !b.decode(msg, &ref) {
		return
	}
	out := protocol.ThemesListPayload{ClientRef: ref, Themes: []protocol.RemoteTheme{}}

	if b.opts.Themes != nil {
		ctx, cancel := b.lookupContext()
		themes, err := b.opts.Themes.ListThemes(ctx)
		cancel()
		if err != nil {
			b.log.Warn("Failed to list themes: %v", err)
		} else if themes != nil {
			out.Themes = themes
		}
	}
	b.reply(protocol.HostThemesList, out)
}

func (b *Bridge) serveTranslations(msg protocol.WorkerMessage) {
	var ref protocol.ClientRef
	if !b.decode(msg, &ref) {
		return
	}
	out := protocol.TranslationsListPayload{ClientRef: ref, Translations: []protocol.RemoteTranslation{}}

	if b.opts.Translations != nil {
		ctx, cancel := b.lookupContext()
		translations, err := b.opts.Translations.ListTranslations(ctx)
		cancel()
		if err != nil {
			b.log.Warn("Failed to list translations: %v", err)
		} else if translations != nil {
			out.Translations = translations
		}
	}
	b.reply(protocol.HostTranslationsList, out)
}

func (b *Bridge) serveSchedule() {
	var items []protocol.RemoteScheduleItem
	if b.opts.Schedule != nil {
		items = b.opts.Schedule.Schedule()
	}
	b.link.SendSchedule(items)
}

func (b *Bridge) dispatchCommand(msg protocol.WorkerMessage) {
	cmd := Command{Kind: msg.Type}

	switch msg.Type {
	case protocol.WorkerGoLive:
		var p protocol.GoLivePayload
		if !b.decode(msg, &p) {
			return
		}
		cmd.ClientID, cmd.Item = p.ClientID, p.Item
	case protocol.WorkerNavigate:
		var p protocol.NavigatePayload
		if !b.decode(msg, &p) {
			return
		}
		cmd.ClientID, cmd.Direction = p.ClientID, p.Direction
	case protocol.WorkerAddToSchedule:
		var p protocol.AddToSchedulePayload
		if !b.decode(msg, &p) {
			return
		}
		cmd.ClientID, cmd.Schedule = p.ClientID, p.Item
	default:
		var ref protocol.ClientRef
		if !b.decode(msg, &ref) {
			return
		}
		cmd.ClientID = ref.ClientID
	}

	b.mu.RLock()
	handlers := make([]handlerEntry, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("No command handler for %s from %s", cmd.Kind, cmd.ClientID)
		return
	}
	for _, h := range handlers {
		h.fn(cmd)
	}
}
