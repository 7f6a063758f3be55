package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codefionn/pulpit/internal/bridge"
	"github.com/codefionn/pulpit/internal/config"
	"github.com/codefionn/pulpit/internal/logger"
	"github.com/codefionn/pulpit/internal/protocol"
	"github.com/codefionn/pulpit/internal/supervisor"
)

// Presenter is the host-side presentation state driven by remote commands.
// It stands in for the application UI when pulpit runs headless: it applies
// go-live, go-blank, navigate and add-to-schedule and pushes the result back
// to every client.
type Presenter struct {
	store   bridge.ContentStore
	timeout time.Duration
	push    func(protocol.RemoteAppState)
	sched func([]protocol.RemoteScheduleItem)
	log   *logger.Logger

	mu       sync.Mutex
	state    protocol.RemoteAppState
	schedule []protocol.RemoteScheduleItem
}

// NewPresenter creates a presenter that is not live. lookupTimeout bounds
// each store call; zero means the configured default.
func NewPresenter(store bridge.ContentStore, lookupTimeout time.Duration, log *logger.Logger) *Presenter {
	if log == nil {
		log = logger.Global().WithPrefix("presenter")
	}
	if lookupTimeout <= 0 {
		lookupTimeout = config.DefaultLookupTimeoutSeconds * time.Second
	}
	return &Presenter{
		store:    store,
		timeout:  lookupTimeout,
		log:      log,
		state:    protocol.RemoteAppState{CurrentItem: &protocol.CurrentItem{Type: protocol.ItemNone}},
		schedule: []protocol.RemoteScheduleItem{},
	}
}

// Attach registers the presenter on svc: commands update it and every change
// is pushed to clients. The returned func detaches it.
func (p *Presenter) Attach(svc *Service) func() {
	p.mu.Lock()
	p.push = svc.PushState
	p.sched = svc.PushSchedule
	p.mu.Unlock()

	removeCmd := svc.OnCommand(p.Apply)
	removeSub := svc.Subscribe(func(ev supervisor.Event) {
		if ev.Kind == supervisor.EventServerStarted {
			p.mu.Lock()
			state := p.snapshot()
			p.mu.Unlock()
			svc.PushState(state)
		}
	})
	return func() {
		removeCmd()
		removeSub()
	}
}

// State returns a copy of the current state.
func (p *Presenter) State() protocol.RemoteAppState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// Schedule implements bridge.ScheduleSource.
func (p *Presenter) Schedule() []protocol.RemoteScheduleItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.RemoteScheduleItem{}, p.schedule...)
}

func (p *Presenter) snapshot() protocol.RemoteAppState {
	state := p.state
	if p.state.CurrentItem != nil {
		item := *p.state.CurrentItem
		state.CurrentItem = &item
	}
	return state
}

// Apply executes one remote command.
func (p *Presenter) Apply(cmd bridge.Command) {
	switch cmd.Kind {
	case protocol.WorkerGoLive:
		p.goLive(cmd.Item)
	case protocol.WorkerGoBlank:
		p.update(func(s *protocol.RemoteAppState) bool {
			if s.HideLive {
				return false
			}
			s.HideLive = true
			return true
		})
	case protocol.WorkerNavigate:
		p.update(func(s *protocol.RemoteAppState) bool {
			return navigate(s.CurrentItem, cmd.Direction)
		})
	case protocol.WorkerAddToSchedule:
		p.addToSchedule(cmd.Schedule)
	}
}

func (p *Presenter) goLive(item protocol.RemoteDisplayItem) {
	current := protocol.CurrentItem{
		Type:       item.Type,
		Title:      item.Title,
		SlideIndex: item.SlideIndex,
	}
	if title, total, err := p.describe(item); err != nil {
		p.log.Warn("Go live: %v", err)
	} else {
		if current.Title == "" {
			current.Title = title
		}
		current.TotalSlides = total
	}
	if current.TotalSlides > 0 && current.SlideIndex >= current.TotalSlides {
		current.SlideIndex = current.TotalSlides - 1
	}
	if current.SlideIndex < 0 {
		current.SlideIndex = 0
	}

	p.update(func(s *protocol.RemoteAppState) bool {
		s.IsLive = true
		s.HideLive = false
		s.CurrentItem = &current
		return true
	})
	p.log.Info("Live: %s %q slide %d/%d", current.Type, current.Title, current.SlideIndex+1, current.TotalSlides)
}

// describe resolves a title and slide count for item from the store.
func (p *Presenter) describe(item protocol.RemoteDisplayItem) (string, int, error) {
	if p.store == nil {
		return "", 0, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	switch item.Type {
	case protocol.ItemSong:
		lyrics, err := p.store.FetchSongLyrics(ctx, item.SongID)
		if err != nil {
			return "", 0, err
		}
		title := ""
		songs, err := p.store.FetchAllSongs(ctx)
		if err == nil {
			for _, s := range songs {
				if s.ID == item.SongID {
					title = s.Title
					break
				}
			}
		}
		return title, len(lyrics), nil

	case protocol.ItemScripture:
		verses, err := p.store.FetchChapter(ctx, bridge.ChapterQuery{Book: item.Book, Chapter: item.Chapter, Version: item.Version})
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("%s %d", item.Book, item.Chapter), len(verses), nil
	}
	return "", 0, nil
}

func navigate(item *protocol.CurrentItem, dir protocol.NavigateDirection) bool {
	if item == nil || item.Type == protocol.ItemNone {
		return false
	}
	switch dir {
	case protocol.NavigateNext:
		if item.TotalSlides > 0 && item.SlideIndex+1 >= item.TotalSlides {
			return false
		}
		item.SlideIndex++
	case protocol.NavigatePrev:
		if item.SlideIndex == 0 {
			return false
		}
		item.SlideIndex--
	default:
		return false
	}
	return true
}

func (p *Presenter) update(fn func(*protocol.RemoteAppState) bool) {
	p.mu.Lock()
	if p.state.CurrentItem != nil {
		item := *p.state.CurrentItem
		p.state.CurrentItem = &item
	}
	if !fn(&p.state) {
		p.mu.Unlock()
		return
	}
	state := p.snapshot()
	push := p.push
	p.mu.Unlock()

	if push != nil {
		push(state)
	}
}

func (p *Presenter) addToSchedule(item protocol.RemoteAddScheduleItem) {
	entry := protocol.RemoteScheduleItem{
		ID:    uuid.NewString(),
		Type:  item.Type,
		Title: item.Title,
	}
	switch item.Type {
	case protocol.ItemSong:
		entry.Metadata = map[string]string{"songId": fmt.Sprint(item.SongID)}
	case protocol.ItemScripture:
		entry.Metadata = map[string]string{
			"book":    item.Book,
			"chapter": fmt.Sprint(item.Chapter),
			"version": item.Version,
		}
		if entry.Title == "" {
			entry.Title = fmt.Sprintf("%s %d", item.Book, item.Chapter)
		}
	}

	p.mu.Lock()
	p.schedule = append(p.schedule, entry)
	items := append([]protocol.RemoteScheduleItem{}, p.schedule...)
	sched := p.sched
	p.mu.Unlock()

	p.log.Info("Scheduled %s %q", entry.Type, entry.Title)
	if sched != nil {
		sched(items)
	}
}
