package supervisor

import (
	"sync"

	"github.com/codefionn/pulpit/internal/protocol"
)

// EventKind names a supervisor notification.
type EventKind string

const (
	EventServerStarted      EventKind = "server-started"
	EventServerStopped      EventKind = "server-stopped"
	EventServerError        EventKind = "server-error"
	EventClientConnected    EventKind = "client-connected"
	EventClientDisconnected EventKind = "client-disconnected"
	EventGoLive             EventKind = "go-live"
	EventGoBlank            EventKind = "go-blank"
	EventNavigate           EventKind = "navigate"
	EventAddToSchedule      EventKind = "add-to-schedule"
	EventRequestSchedule    EventKind = "request-schedule"
	// EventRequest carries every client request and action, for the bridge.
	EventRequest EventKind = "request"
)

// Event is one notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind      EventKind
	Port      int
	Addresses []string
	Err       error
	Client    protocol.ClientInfo
	ClientID  string
	// Message is the worker message behind request and action events.
	Message protocol.WorkerMessage
}

// actionEvents maps worker actions to the UI notification they raise.
var actionEvents = map[protocol.WorkerType]EventKind{
	protocol.WorkerGoLive:          EventGoLive,
	protocol.WorkerGoBlank:         EventGoBlank,
	protocol.WorkerNavigate:        EventNavigate,
	protocol.WorkerAddToSchedule:   EventAddToSchedule,
	protocol.WorkerRequestSchedule: EventRequestSchedule,
}

type subscriber struct {
	id int
	fn func(Event)
}

// eventBus is an ordered observer list. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type eventBus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber
}

func (b *eventBus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subs {
			if sub.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *eventBus) publish(ev Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}
