package lavalink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/keshon/lavalink/internal/serial"
)

// NodeConfig describes a single Lavalink node connection.
type NodeConfig struct {
	Name     string
	Host     string
	Port     int
	Password string

	// UserID is the bot's own user id; voice membership signals for
	// other users are ignored.
	UserID     string
	ShardCount int
	Secure     bool

	// Resuming asks the node to keep the session alive for
	// ResumeTimeout seconds after a disconnect. Disabled by default.
	Resuming      bool
	ResumeTimeout int
}

func (c *NodeConfig) withDefaults() NodeConfig {
	cfg := *c
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.ShardCount == 0 {
		cfg.ShardCount = 1
	}
	if cfg.ResumeTimeout == 0 {
		cfg.ResumeTimeout = 180
	}
	return cfg
}

// Node is one remote playback server: its control channel, its event
// stream, and the guild players bound to it. Events are dispatched
// asynchronously, ordered per guild.
type Node struct {
	cfg        NodeConfig
	log        *zap.Logger
	rest       restAPI
	dispatcher *dispatcher
	exec       *serial.Executor
	ws         *socket

	mu        sync.RWMutex
	sessionID string
	stats     *Stats
	players   map[string]*Player
	pending   map[string]connectionInfo
	fatal     error

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// NewNode builds a node handle. Connect must be called before any
// control channel request can succeed.
func NewNode(cfg NodeConfig, opts ...Option) *Node {
	o := applyOptions(opts)
	cfg = cfg.withDefaults()
	log := o.log.Named("lavalink").With(zap.String("node", cfg.Name))
	n := &Node{
		cfg:        cfg,
		log:        log,
		dispatcher: newDispatcher(),
		exec:       serial.New(),
		players:    make(map[string]*Player),
		pending:    make(map[string]connectionInfo),
	}
	n.rest = newRest(cfg, log)
	n.ws = newSocket(n)
	return n
}

// Config returns the node configuration.
func (n *Node) Config() NodeConfig { return n.cfg }

// Connect starts the event stream connection. It returns immediately;
// the connection is established (and re-established) in the
// background. Use WaitForConnection to block until the handshake
// completed.
func (n *Node) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	go n.ws.run(ctx)
}

// Close tears down the event stream and stops event delivery. Guild
// players are left on the remote node; destroy them first if needed.
func (n *Node) Close() {
	n.closeOnce.Do(func() {
		if n.cancel != nil {
			n.cancel()
		}
		n.ws.close()
		n.exec.Close()
	})
}

// SessionID returns the session id assigned by the last ready
// handshake, or an empty string while disconnected.
func (n *Node) SessionID() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.sessionID
}

func (n *Node) sessionIDOrErr() (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.sessionID == "" {
		return "", ErrNotConnected
	}
	return n.sessionID, nil
}

// Connected reports whether the ready handshake for the current
// connection has completed.
func (n *Node) Connected() bool {
	return n.SessionID() != ""
}

// WaitForConnection polls until the ready handshake completes, the
// context is cancelled, or the connection failed fatally.
func (n *Node) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if n.Connected() {
			return nil
		}
		n.mu.RLock()
		fatal := n.fatal
		n.mu.RUnlock()
		if fatal != nil {
			return fatal
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats returns the latest node-wide statistics push, or nil if none
// arrived yet.
func (n *Node) Stats() *Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

// CreatePlayer returns the player for a guild, creating it when
// missing.
func (n *Node) CreatePlayer(guildID string) *Player {
	n.mu.Lock()
	defer n.mu.Unlock()
	if p, ok := n.players[guildID]; ok {
		return p
	}
	p := newPlayer(n, guildID)
	n.players[guildID] = p
	return p
}

// Player returns the player for a guild.
func (n *Node) Player(guildID string) (*Player, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	p, ok := n.players[guildID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, guildID)
	}
	return p, nil
}

// Players returns all registered players.
func (n *Node) Players() []*Player {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Player, 0, len(n.players))
	for _, p := range n.players {
		out = append(out, p)
	}
	return out
}

func (n *Node) removePlayer(guildID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.players, guildID)
}

// VoiceStateUpdate consumes the membership half of the voice
// handshake. Signals for other users are ignored. An empty channel id
// means the bot left voice: the guild player is destroyed and any
// pending pairing record dropped.
func (n *Node) VoiceStateUpdate(ctx context.Context, guildID, userID, sessionID, channelID string) error {
	if userID != n.cfg.UserID {
		return nil
	}
	if channelID == "" {
		n.mu.Lock()
		delete(n.pending, guildID)
		player := n.players[guildID]
		n.mu.Unlock()
		if player == nil {
			return nil
		}
		return player.Destroy(ctx)
	}
	n.mu.Lock()
	n.pending[guildID] = connectionInfo{GuildID: guildID, SessionID: sessionID, ChannelID: channelID}
	n.mu.Unlock()
	return nil
}

// VoiceServerUpdate consumes the token half of the voice handshake.
// Without a stored membership record the signal is discarded: the
// matching membership update has not arrived yet, which is a normal
// race, not an error. Once paired, the combined voice update goes out
// on the control channel and the pairing record is consumed.
func (n *Node) VoiceServerUpdate(ctx context.Context, guildID, endpoint, token string) error {
	n.mu.Lock()
	info, ok := n.pending[guildID]
	if ok {
		delete(n.pending, guildID)
	}
	n.mu.Unlock()
	if !ok {
		n.log.Debug("voice server update without membership, discarded",
			zap.String("guild_id", guildID))
		return nil
	}
	player := n.CreatePlayer(guildID)
	return player.voiceUpdate(ctx, info.SessionID, token, endpoint)
}

// LoadTracks resolves a raw identifier (URL or "prefix:query") into a
// search result. A node-reported load failure returns *TrackLoadError.
func (n *Node) LoadTracks(ctx context.Context, identifier string) (*SearchResult, error) {
	res, err := n.rest.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return decodeSearchResult(res)
}

// SearchYouTube searches YouTube for tracks.
func (n *Node) SearchYouTube(ctx context.Context, query string) (*SearchResult, error) {
	return n.LoadTracks(ctx, "ytsearch:"+query)
}

// SearchYouTubeMusic searches YouTube Music for tracks.
func (n *Node) SearchYouTubeMusic(ctx context.Context, query string) (*SearchResult, error) {
	return n.LoadTracks(ctx, "ytmsearch:"+query)
}

// SearchSoundCloud searches SoundCloud for tracks.
func (n *Node) SearchSoundCloud(ctx context.Context, query string) (*SearchResult, error) {
	return n.LoadTracks(ctx, "scsearch:"+query)
}

// AutoSearch loads a URL directly and falls back to a YouTube search
// for plain text.
func (n *Node) AutoSearch(ctx context.Context, query string) (*SearchResult, error) {
	if strings.HasPrefix(query, "http://") || strings.HasPrefix(query, "https://") {
		return n.LoadTracks(ctx, query)
	}
	return n.SearchYouTube(ctx, query)
}

// DecodeTrack resolves an encoded handle into track metadata.
func (n *Node) DecodeTrack(ctx context.Context, encoded string) (*Track, error) {
	return n.rest.DecodeTrack(ctx, encoded)
}

// DecodeTracks resolves a batch of encoded handles.
func (n *Node) DecodeTracks(ctx context.Context, encoded []string) ([]Track, error) {
	return n.rest.DecodeTracks(ctx, encoded)
}

// Info fetches the node build information.
func (n *Node) Info(ctx context.Context) (*Info, error) {
	return n.rest.Info(ctx)
}

// Version fetches the node version string.
func (n *Node) Version(ctx context.Context) (string, error) {
	return n.rest.Version(ctx)
}

// RoutePlannerStatus fetches the node's route planner state.
func (n *Node) RoutePlannerStatus(ctx context.Context) (*RoutePlannerStatus, error) {
	return n.rest.RoutePlannerStatus(ctx)
}

// UnmarkFailedAddress frees a route planner address.
func (n *Node) UnmarkFailedAddress(ctx context.Context, address string) error {
	return n.rest.UnmarkFailedAddress(ctx, address)
}

// UnmarkAllFailedAddresses frees every route planner address.
func (n *Node) UnmarkAllFailedAddresses(ctx context.Context) error {
	return n.rest.UnmarkAllFailedAddresses(ctx)
}

// nodeKey orders node-scoped events (ready, stats) among themselves
// without coupling them to any guild's queue.
const nodeKey = ""

// handleFrame decodes one inbound event stream frame and schedules its
// handler. Decoding is sequential on the read loop; handlers run on a
// per-guild serial queue so a slow listener cannot stall the stream,
// while events for the same guild keep their arrival order.
func (n *Node) handleFrame(data []byte) {
	var envelope struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		n.log.Warn("undecodable frame", zap.Error(err))
		return
	}

	switch envelope.Op {
	case "ready":
		var ev ReadyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			n.log.Warn("bad ready frame", zap.Error(err))
			return
		}
		n.exec.Submit(nodeKey, func() { n.handleReady(ev) })

	case "playerUpdate":
		var ev PlayerUpdateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			n.log.Warn("bad playerUpdate frame", zap.Error(err))
			return
		}
		n.exec.Submit(ev.GuildID, func() {
			if player, err := n.Player(ev.GuildID); err == nil {
				player.handlePlayerUpdate(ev.State)
			}
			n.dispatcher.dispatch(ev)
		})

	case "stats":
		var stats Stats
		if err := json.Unmarshal(data, &stats); err != nil {
			n.log.Warn("bad stats frame", zap.Error(err))
			return
		}
		n.mu.Lock()
		n.stats = &stats
		n.mu.Unlock()
		n.exec.Submit(nodeKey, func() { n.dispatcher.dispatch(StatsEvent{Stats: stats}) })

	case "event":
		n.handleGuildEvent(data)

	default:
		n.log.Warn("unknown op", zap.String("op", envelope.Op))
	}
}

func (n *Node) handleReady(ev ReadyEvent) {
	n.mu.Lock()
	n.sessionID = ev.SessionID
	n.mu.Unlock()

	if ev.Resumed {
		n.log.Info("session resumed", zap.String("session_id", ev.SessionID))
	} else {
		n.log.Info("new session started", zap.String("session_id", ev.SessionID))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	update := SessionUpdate{
		Resuming: &n.cfg.Resuming,
		Timeout:  &n.cfg.ResumeTimeout,
	}
	if err := n.rest.UpdateSession(ctx, ev.SessionID, update); err != nil {
		n.log.Error("failed to send resume configuration", zap.Error(err))
	}

	n.dispatcher.dispatch(ev)
}

func (n *Node) handleGuildEvent(data []byte) {
	// One frame shape covers every "event" variant; unknown fields are
	// ignored by the decoder, absent ones stay zero.
	var frame struct {
		Type        string          `json:"type"`
		GuildID     string          `json:"guildId"`
		Track       Track           `json:"track"`
		Reason      json.RawMessage `json:"reason"`
		Exception   *TrackException `json:"exception"`
		ThresholdMs int64           `json:"thresholdMs"`
		Code        int             `json:"code"`
		ByRemote    bool            `json:"byRemote"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		n.log.Warn("bad event frame", zap.Error(err))
		return
	}
	var reason string
	if len(frame.Reason) > 0 {
		// reason is a string for TrackEndEvent and WebSocketClosedEvent
		if err := json.Unmarshal(frame.Reason, &reason); err != nil {
			n.log.Warn("bad event reason", zap.Error(err))
		}
	}

	guildID := frame.GuildID
	switch frame.Type {
	case "TrackStartEvent":
		ev := TrackStartEvent{GuildID: guildID, Track: frame.Track}
		n.exec.Submit(guildID, func() { n.dispatcher.dispatch(ev) })

	case "TrackEndEvent":
		ev := TrackEndEvent{GuildID: guildID, Track: frame.Track, Reason: TrackEndReason(reason)}
		n.exec.Submit(guildID, func() {
			n.dispatcher.dispatch(ev)
			player, err := n.Player(guildID)
			if err != nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			player.handleTrackEnd(ctx)
		})

	case "TrackExceptionEvent":
		ev := TrackExceptionEvent{GuildID: guildID, Track: frame.Track}
		if frame.Exception != nil {
			ev.Exception = *frame.Exception
		}
		n.exec.Submit(guildID, func() { n.dispatcher.dispatch(ev) })

	case "TrackStuckEvent":
		ev := TrackStuckEvent{GuildID: guildID, Track: frame.Track, ThresholdMs: frame.ThresholdMs}
		n.exec.Submit(guildID, func() { n.dispatcher.dispatch(ev) })

	case "WebSocketClosedEvent":
		ev := WebSocketClosedEvent{GuildID: guildID, Code: frame.Code, Reason: reason, ByRemote: frame.ByRemote}
		n.exec.Submit(guildID, func() { n.dispatcher.dispatch(ev) })

	default:
		n.log.Warn("unknown event type", zap.String("type", frame.Type))
	}
}

// clearSession invalidates the session after the event stream dropped.
// In-flight control requests keyed to the old id are stale; nothing
// can be trusted until the next ready handshake.
func (n *Node) clearSession() {
	n.mu.Lock()
	n.sessionID = ""
	players := make([]*Player, 0, len(n.players))
	for _, p := range n.players {
		players = append(players, p)
	}
	n.mu.Unlock()
	for _, p := range players {
		p.markDisconnected()
	}
}

func (n *Node) setFatal(err error) {
	n.mu.Lock()
	n.fatal = err
	n.mu.Unlock()
}
