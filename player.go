package lavalink

import (
	"context"
	"math/rand"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Player is the per-guild playback state machine. It owns the track
// queue, repeat flags, volume and connection status, and is the only
// component that mutates them. Whenever the queue is non-empty,
// queue[0] is the track currently (or most recently) requested on the
// node; the node's actual state is only changed by issuing a control
// request, never inferred locally.
//
// All methods are safe for concurrent use. Host calls and event-driven
// queue advancement are serialized by the player mutex.
type Player struct {
	node    *Node
	guildID string
	log     *zap.Logger

	mu          sync.Mutex
	queue       []*Track
	volume      int
	repeat      bool
	queueRepeat bool
	paused      bool
	connected   bool
	ping        int
	destroyed   bool
}

func newPlayer(node *Node, guildID string) *Player {
	return &Player{
		node:    node,
		guildID: guildID,
		log:     node.log.With(zap.String("guild_id", guildID)),
		volume:  100,
	}
}

// GuildID returns the guild this player belongs to.
func (p *Player) GuildID() string { return p.guildID }

// Play plays a track or appends it to the queue. If force is set or
// the queue is empty the track is requested on the node immediately;
// otherwise it is appended and no remote call is made. A forced play
// does not touch the queue; it is the advancement path, where the
// head is already in place.
func (p *Player) Play(ctx context.Context, track Track, requester string, force bool) error {
	if track.Encoded == "" {
		return ErrEmptyTrack
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}
	needRequest := force || len(p.queue) == 0
	var queued *Track
	if !force {
		t := track
		t.Requester = requester
		queued = &t
		p.queue = append(p.queue, queued)
	}
	p.mu.Unlock()

	if !needRequest {
		return nil
	}
	if err := p.requestTrack(ctx, &track.Encoded); err != nil {
		if queued != nil {
			p.unqueue(queued)
		}
		return err
	}
	return nil
}

// AddToQueue enqueues tracks in order. Only the first track can cause
// a remote call, because the queue transitions empty to non-empty at
// most once.
func (p *Player) AddToQueue(ctx context.Context, tracks []Track, requester string) error {
	for _, track := range tracks {
		if err := p.Play(ctx, track, requester, false); err != nil {
			return err
		}
	}
	return nil
}

// PlayPlaylist queues every track of a playlist result.
func (p *Player) PlayPlaylist(ctx context.Context, playlist Playlist, requester string) error {
	return p.AddToQueue(ctx, playlist.Tracks, requester)
}

// Skip asks the node to drop the current track without touching the
// queue. Advancement to the next track happens when the node reports
// the ensuing track end event. No-op on an empty queue.
func (p *Player) Skip(ctx context.Context) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.requestTrack(ctx, nil)
}

// Stop clears the queue and asks the node to drop the current track.
// No-op on an empty queue.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}
	p.queue = nil
	p.mu.Unlock()
	return p.requestTrack(ctx, nil)
}

// Pause sets the paused flag on the node. The queue is unchanged.
func (p *Player) Pause(ctx context.Context, paused bool) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := p.update(ctx, PlayerUpdate{Paused: lo.ToPtr(paused)}); err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return nil
}

// Seek moves playback to a position in milliseconds.
func (p *Player) Seek(ctx context.Context, positionMs int64) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	return p.update(ctx, PlayerUpdate{Position: lo.ToPtr(positionMs)})
}

// SetVolume sets playback volume. Volume may range from 0 to 1000,
// 100 is the default; out of range fails with ErrVolumeRange and no
// request is issued.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	if volume < 0 || volume > 1000 {
		return ErrVolumeRange
	}
	if err := p.checkAlive(); err != nil {
		return err
	}
	if err := p.update(ctx, PlayerUpdate{Volume: lo.ToPtr(volume)}); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// SetFilters serializes the whole filter bag to the node.
func (p *Player) SetFilters(ctx context.Context, filters *Filters) error {
	if err := p.checkAlive(); err != nil {
		return err
	}
	if filters == nil {
		filters = &Filters{}
	}
	return p.update(ctx, PlayerUpdate{Filters: filters})
}

// Destroy deletes the player on the node and removes it from the
// registry. The instance must not be used afterwards; every further
// call fails with ErrPlayerDestroyed.
func (p *Player) Destroy(ctx context.Context) error {
	sessionID, err := p.node.sessionIDOrErr()
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrPlayerDestroyed
	}
	p.destroyed = true
	p.queue = nil
	p.mu.Unlock()

	p.node.removePlayer(p.guildID)
	return p.node.rest.DestroyPlayer(ctx, sessionID, p.guildID)
}

// SetRepeat replays the current track when it ends. Enabling it
// clears queue repeat; the two modes are mutually exclusive.
func (p *Player) SetRepeat(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repeat = enabled
	if enabled {
		p.queueRepeat = false
	}
}

// SetQueueRepeat cycles the whole queue: the finished head moves to
// the tail. Enabling it clears track repeat.
func (p *Player) SetQueueRepeat(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueRepeat = enabled
	if enabled {
		p.repeat = false
	}
}

// Shuffle randomly permutes the queue while keeping the now-playing
// head in place. Purely local; returns the new queue, or nil when
// there is nothing to shuffle.
func (p *Player) Shuffle() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) <= 1 {
		return nil
	}
	rest := p.queue[1:]
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	return p.queueLocked()
}

// Remove deletes the track at index from the queue. Out-of-range
// indexes fail with ErrQueueIndex.
func (p *Player) Remove(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.queue) {
		return ErrQueueIndex
	}
	p.queue = append(p.queue[:index], p.queue[index+1:]...)
	return nil
}

// Peek returns a copy of the track at index.
func (p *Player) Peek(index int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= len(p.queue) {
		return Track{}, ErrQueueIndex
	}
	return *p.queue[index], nil
}

// Queue returns a copy of the current queue.
func (p *Player) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueLocked()
}

func (p *Player) queueLocked() []Track {
	out := make([]Track, len(p.queue))
	for i, t := range p.queue {
		out[i] = *t
	}
	return out
}

// IsPlaying reports whether a track is queued as playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) > 0
}

func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *Player) Ping() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ping
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) Repeat() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.repeat
}

func (p *Player) QueueRepeat() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueRepeat
}

// voiceUpdate forwards the reconciled voice session to the node and
// records the acknowledged connection state.
func (p *Player) voiceUpdate(ctx context.Context, sessionID, token, endpoint string) error {
	nodeSession, err := p.node.sessionIDOrErr()
	if err != nil {
		return err
	}
	info, err := p.node.rest.UpdatePlayer(ctx, nodeSession, p.guildID, PlayerUpdate{
		Voice: &VoiceState{
			Token:     token,
			SessionID: sessionID,
			Endpoint:  strings.TrimPrefix(endpoint, "wss://"),
		},
	}, false)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.connected = info.State.Connected
	p.ping = info.State.Ping
	p.mu.Unlock()
	return nil
}

// handleTrackEnd advances the queue after a node-reported track end.
// Runs exactly once per event, on the guild's serial queue; the mutex
// keeps it exclusive against concurrent Skip/Stop calls.
func (p *Player) handleTrackEnd(ctx context.Context) {
	p.mu.Lock()
	if p.destroyed || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	var next *Track
	switch {
	case p.queueRepeat:
		head := p.queue[0]
		p.queue = append(p.queue[1:], head)
		next = p.queue[0]
	case p.repeat:
		next = p.queue[0]
	default:
		p.queue = p.queue[1:]
		if len(p.queue) > 0 {
			next = p.queue[0]
		}
	}
	p.mu.Unlock()

	if next == nil {
		return
	}
	// The requester recorded at queue time is carried forward;
	// replaying never requires a fresh one.
	if err := p.requestTrack(ctx, &next.Encoded); err != nil {
		p.log.Error("failed to start next track", zap.Error(err))
	}
}

// handlePlayerUpdate records the live state reported by the node.
func (p *Player) handlePlayerUpdate(state PlayerState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = state.Connected
	p.ping = state.Ping
	if len(p.queue) > 0 {
		p.queue[0].Info.Position = state.Position
	}
}

// markDisconnected clears the connected flag after the node's event
// stream dropped; the session id is gone and nothing can be trusted
// until the next ready handshake.
func (p *Player) markDisconnected() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
}

// requestTrack asks the node to set (or, with nil, clear) the current
// track.
func (p *Player) requestTrack(ctx context.Context, encoded *string) error {
	return p.update(ctx, PlayerUpdate{Track: &PlayerUpdateTrack{Encoded: encoded}})
}

func (p *Player) update(ctx context.Context, update PlayerUpdate) error {
	sessionID, err := p.node.sessionIDOrErr()
	if err != nil {
		return err
	}
	_, err = p.node.rest.UpdatePlayer(ctx, sessionID, p.guildID, update, false)
	return err
}

func (p *Player) checkAlive() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrPlayerDestroyed
	}
	return nil
}

// unqueue removes a specific entry, used to roll back a failed
// first-play request.
func (p *Player) unqueue(track *Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.queue {
		if t == track {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			return
		}
	}
}
