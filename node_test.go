package lavalink

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVoiceSignalsMembershipFirst(t *testing.T) {
	rest := &fakeRest{playerInfo: PlayerInfo{State: PlayerState{Connected: true, Ping: 12}}}
	node := newTestNode(rest)

	ctx := context.Background()
	require.NoError(t, node.VoiceStateUpdate(ctx, "guild-1", "bot-user", "voice-sess", "channel-1"))
	assert.Zero(t, rest.updateCount(), "half a handshake must not produce a request")

	require.NoError(t, node.VoiceServerUpdate(ctx, "guild-1", "wss://eu.discord.media:443", "tok"))

	require.Equal(t, 1, rest.updateCount())
	update := rest.lastUpdate()
	require.NotNil(t, update.Update.Voice)
	assert.Equal(t, "tok", update.Update.Voice.Token)
	assert.Equal(t, "voice-sess", update.Update.Voice.SessionID)
	assert.Equal(t, "eu.discord.media:443", update.Update.Voice.Endpoint, "scheme prefix is stripped")

	player, err := node.Player("guild-1")
	require.NoError(t, err)
	assert.True(t, player.Connected())
	assert.Equal(t, 12, player.Ping())
}

func TestVoiceSignalsTokenFirst(t *testing.T) {
	rest := &fakeRest{playerInfo: PlayerInfo{State: PlayerState{Connected: true}}}
	node := newTestNode(rest)
	ctx := context.Background()

	// Token before membership is a legitimate race: discarded.
	require.NoError(t, node.VoiceServerUpdate(ctx, "guild-1", "wss://eu.discord.media", "tok"))
	assert.Zero(t, rest.updateCount())
	_, err := node.Player("guild-1")
	require.ErrorIs(t, err, ErrPlayerNotFound)

	// Once both have arrived the end state matches the other ordering.
	require.NoError(t, node.VoiceStateUpdate(ctx, "guild-1", "bot-user", "voice-sess", "channel-1"))
	require.NoError(t, node.VoiceServerUpdate(ctx, "guild-1", "wss://eu.discord.media", "tok"))

	require.Equal(t, 1, rest.updateCount())
	player, err := node.Player("guild-1")
	require.NoError(t, err)
	assert.True(t, player.Connected())
}

func TestVoiceSignalForeignUserIgnored(t *testing.T) {
	rest := &fakeRest{}
	node := newTestNode(rest)
	ctx := context.Background()

	require.NoError(t, node.VoiceStateUpdate(ctx, "guild-1", "someone-else", "sess", "channel-1"))
	require.NoError(t, node.VoiceServerUpdate(ctx, "guild-1", "wss://x", "tok"))
	assert.Zero(t, rest.updateCount())
}

func TestVoiceLeaveDestroysPlayer(t *testing.T) {
	rest := &fakeRest{}
	node := newTestNode(rest)
	ctx := context.Background()
	node.CreatePlayer("guild-1")

	require.NoError(t, node.VoiceStateUpdate(ctx, "guild-1", "bot-user", "sess", ""))

	assert.Equal(t, []string{"guild-1"}, rest.destroys)
	_, err := node.Player("guild-1")
	require.ErrorIs(t, err, ErrPlayerNotFound)

	// Pending membership is dropped too: a late token is discarded.
	require.NoError(t, node.VoiceServerUpdate(ctx, "guild-1", "wss://x", "tok"))
	assert.Zero(t, rest.updateCount())
}

func TestVoiceLeaveWithoutPlayer(t *testing.T) {
	node := newTestNode(&fakeRest{})
	require.NoError(t, node.VoiceStateUpdate(context.Background(), "guild-1", "bot-user", "sess", ""))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestHandleFrameReady(t *testing.T) {
	rest := &fakeRest{}
	node := newTestNode(rest)
	node.sessionID = ""
	defer node.Close()

	var got ReadyEvent
	var mu sync.Mutex
	Listen(node, func(ev ReadyEvent) {
		mu.Lock()
		got = ev
		mu.Unlock()
	})

	node.handleFrame([]byte(`{"op":"ready","resumed":false,"sessionId":"sess-9"}`))

	waitFor(t, func() bool { return node.SessionID() == "sess-9" })
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got.SessionID == "sess-9"
	})

	waitFor(t, func() bool {
		rest.mu.Lock()
		defer rest.mu.Unlock()
		return len(rest.sessions) == 1
	})
	session := rest.sessions[0]
	require.NotNil(t, session.Resuming)
	assert.False(t, *session.Resuming, "resuming defaults to disabled")
	require.NotNil(t, session.Timeout)
	assert.Equal(t, 180, *session.Timeout)
}

func TestHandleFrameStats(t *testing.T) {
	node := newTestNode(&fakeRest{})
	defer node.Close()

	var mu sync.Mutex
	var got *Stats
	Listen(node, func(ev StatsEvent) {
		mu.Lock()
		got = &ev.Stats
		mu.Unlock()
	})

	node.handleFrame([]byte(`{
		"op":"stats","players":3,"playingPlayers":2,"uptime":12345,
		"memory":{"free":1,"used":2,"allocated":3,"reservable":4},
		"cpu":{"cores":8,"systemLoad":0.5,"lavalinkLoad":0.1},
		"frameStats":{"sent":100,"nulled":1,"deficit":0}
	}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})

	stats := node.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Players)
	assert.Equal(t, 2, stats.PlayingPlayers)
	assert.Equal(t, int64(2), stats.Memory.Used)
	assert.Equal(t, 8, stats.CPU.Cores)
	require.NotNil(t, stats.FrameStats)
	assert.Equal(t, 100, stats.FrameStats.Sent)
}

func TestHandleFramePlayerUpdateUnknownGuildStillEmits(t *testing.T) {
	node := newTestNode(&fakeRest{})
	defer node.Close()

	var mu sync.Mutex
	var got *PlayerUpdateEvent
	Listen(node, func(ev PlayerUpdateEvent) {
		mu.Lock()
		got = &ev
		mu.Unlock()
	})

	node.handleFrame([]byte(`{"op":"playerUpdate","guildId":"g-404","state":{"time":1,"position":5,"connected":true,"ping":3}}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	})
	assert.Equal(t, "g-404", got.GuildID)
	assert.Equal(t, int64(5), got.State.Position)
}

func TestHandleFrameTrackEndEmitsBeforeAdvancing(t *testing.T) {
	rest := &fakeRest{}
	node := newTestNode(rest)
	defer node.Close()

	player := node.CreatePlayer("guild-1")
	require.NoError(t, player.AddToQueue(context.Background(), []Track{testTrack("a"), testTrack("b")}, "u"))

	var mu sync.Mutex
	var queueLenAtEmit = -1
	Listen(node, func(ev TrackEndEvent) {
		mu.Lock()
		queueLenAtEmit = len(player.Queue())
		mu.Unlock()
	})

	node.handleFrame([]byte(`{"op":"event","type":"TrackEndEvent","guildId":"guild-1","track":{"encoded":"enc-a","info":{}},"reason":"finished"}`))

	waitFor(t, func() bool { return len(player.Queue()) == 1 })
	waitFor(t, func() bool { return rest.updateCount() == 2 })
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, queueLenAtEmit, "listeners see the event before the queue advances")
	assert.Equal(t, "enc-b", *rest.lastUpdate().Update.Track.Encoded)
}

func TestHandleFrameTrackEndUnknownGuild(t *testing.T) {
	node := newTestNode(&fakeRest{})
	defer node.Close()

	var mu sync.Mutex
	emitted := false
	Listen(node, func(ev TrackEndEvent) {
		mu.Lock()
		emitted = true
		mu.Unlock()
	})

	node.handleFrame([]byte(`{"op":"event","type":"TrackEndEvent","guildId":"nope","track":{"encoded":"x","info":{}},"reason":"finished"}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return emitted
	})
}

func TestHandleFrameDiscreteEvents(t *testing.T) {
	node := newTestNode(&fakeRest{})
	defer node.Close()

	var mu sync.Mutex
	var starts []TrackStartEvent
	var exceptions []TrackExceptionEvent
	var stucks []TrackStuckEvent
	var closures []WebSocketClosedEvent
	Listen(node, func(ev TrackStartEvent) { mu.Lock(); starts = append(starts, ev); mu.Unlock() })
	Listen(node, func(ev TrackExceptionEvent) { mu.Lock(); exceptions = append(exceptions, ev); mu.Unlock() })
	Listen(node, func(ev TrackStuckEvent) { mu.Lock(); stucks = append(stucks, ev); mu.Unlock() })
	Listen(node, func(ev WebSocketClosedEvent) { mu.Lock(); closures = append(closures, ev); mu.Unlock() })

	node.handleFrame([]byte(`{"op":"event","type":"TrackStartEvent","guildId":"g","track":{"encoded":"e","info":{"title":"t"}}}`))
	node.handleFrame([]byte(`{"op":"event","type":"TrackExceptionEvent","guildId":"g","track":{"encoded":"e","info":{}},"exception":{"message":"boom","severity":"common","cause":"x"}}`))
	node.handleFrame([]byte(`{"op":"event","type":"TrackStuckEvent","guildId":"g","track":{"encoded":"e","info":{}},"thresholdMs":5000}`))
	node.handleFrame([]byte(`{"op":"event","type":"WebSocketClosedEvent","guildId":"g","code":4006,"reason":"invalid session","byRemote":true}`))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) == 1 && len(exceptions) == 1 && len(stucks) == 1 && len(closures) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "t", starts[0].Track.Info.Title)
	assert.Equal(t, "boom", exceptions[0].Exception.Message)
	assert.Equal(t, int64(5000), stucks[0].ThresholdMs)
	assert.Equal(t, 4006, closures[0].Code)
	assert.True(t, closures[0].ByRemote)
}

func TestClearSessionMarksPlayersDisconnected(t *testing.T) {
	rest := &fakeRest{playerInfo: PlayerInfo{State: PlayerState{Connected: true}}}
	node := newTestNode(rest)
	player := node.CreatePlayer("g")
	player.handlePlayerUpdate(PlayerState{Connected: true})
	require.True(t, player.Connected())

	node.clearSession()

	assert.False(t, player.Connected())
	_, err := node.sessionIDOrErr()
	require.ErrorIs(t, err, ErrNotConnected)

	err = player.Skip(context.Background())
	assert.NoError(t, err, "empty queue skip stays a no-op")
	// control calls without a session fail fast
	require.ErrorIs(t, player.Play(context.Background(), testTrack("a"), "u", false), ErrNotConnected)
}

func TestCreatePlayerIsIdempotent(t *testing.T) {
	node := newTestNode(&fakeRest{})
	a := node.CreatePlayer("g")
	b := node.CreatePlayer("g")
	assert.Same(t, a, b)
	assert.Len(t, node.Players(), 1)
}
