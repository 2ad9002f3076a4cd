package lavalink

import "sync"

// EventType is the closed set of event kinds a node can emit.
type EventType string

const (
	EventTypeReady           EventType = "ready"
	EventTypePlayerUpdate    EventType = "playerUpdate"
	EventTypeStats           EventType = "stats"
	EventTypeTrackStart      EventType = "trackStart"
	EventTypeTrackEnd        EventType = "trackEnd"
	EventTypeTrackException  EventType = "trackException"
	EventTypeTrackStuck      EventType = "trackStuck"
	EventTypeWebSocketClosed EventType = "websocketClosed"
)

// Event is implemented by every event payload. Each payload type maps
// to exactly one EventType.
type Event interface {
	EventType() EventType
}

// ReadyEvent is emitted once per websocket session after the node's
// handshake assigned a session id.
type ReadyEvent struct {
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`
}

func (ReadyEvent) EventType() EventType { return EventTypeReady }

// PlayerUpdateEvent is the periodic per-guild state push.
type PlayerUpdateEvent struct {
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

func (PlayerUpdateEvent) EventType() EventType { return EventTypePlayerUpdate }

// StatsEvent carries the node-wide statistics push.
type StatsEvent struct {
	Stats Stats
}

func (StatsEvent) EventType() EventType { return EventTypeStats }

type TrackStartEvent struct {
	GuildID string
	Track   Track
}

func (TrackStartEvent) EventType() EventType { return EventTypeTrackStart }

type TrackEndEvent struct {
	GuildID string
	Track   Track
	Reason  TrackEndReason
}

func (TrackEndEvent) EventType() EventType { return EventTypeTrackEnd }

// TrackException describes a server-side decode or stream failure.
type TrackException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type TrackExceptionEvent struct {
	GuildID   string
	Track     Track
	Exception TrackException
}

func (TrackExceptionEvent) EventType() EventType { return EventTypeTrackException }

type TrackStuckEvent struct {
	GuildID     string
	Track       Track
	ThresholdMs int64
}

func (TrackStuckEvent) EventType() EventType { return EventTypeTrackStuck }

// WebSocketClosedEvent signals that the node's own voice websocket to
// Discord closed. No automatic recovery is attempted.
type WebSocketClosedEvent struct {
	GuildID  string
	Code     int
	Reason   string
	ByRemote bool
}

func (WebSocketClosedEvent) EventType() EventType { return EventTypeWebSocketClosed }

// TrackEndReason is the node-reported reason a track stopped playing.
type TrackEndReason string

const (
	TrackEndFinished   TrackEndReason = "finished"
	TrackEndLoadFailed TrackEndReason = "loadFailed"
	TrackEndStopped    TrackEndReason = "stopped"
	TrackEndReplaced   TrackEndReason = "replaced"
	TrackEndCleanup    TrackEndReason = "cleanup"
)

// dispatcher is a publish-subscribe registry keyed by event type.
// Listeners are invoked asynchronously; ordering is preserved per
// guild by the node's serial executor, not by the dispatcher itself.
type dispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]func(Event)
}

func newDispatcher() *dispatcher {
	return &dispatcher{listeners: make(map[EventType][]func(Event))}
}

func (d *dispatcher) on(t EventType, fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[t] = append(d.listeners[t], fn)
}

func (d *dispatcher) dispatch(ev Event) {
	d.mu.RLock()
	fns := d.listeners[ev.EventType()]
	d.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// On registers a listener for a single event type. The callback
// receives the untyped Event; prefer Listen for a typed payload.
func (n *Node) On(t EventType, fn func(Event)) {
	n.dispatcher.on(t, fn)
}

// Listen registers a typed listener. Multiple listeners per event type
// are allowed; each is invoked with the concrete payload.
func Listen[E Event](n *Node, fn func(E)) {
	var zero E
	n.dispatcher.on(zero.EventType(), func(ev Event) {
		if e, ok := ev.(E); ok {
			fn(e)
		}
	})
}
