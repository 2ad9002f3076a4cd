package lavalink

import (
	"context"
	"sync"
)

// fakeRest records control channel traffic so tests can assert on
// exactly which requests a player issued.
type fakeRest struct {
	mu       sync.Mutex
	updates  []recordedUpdate
	destroys []string
	sessions []SessionUpdate

	updateErr  error
	playerInfo PlayerInfo
	loadRes    *loadResponse
}

type recordedUpdate struct {
	SessionID string
	GuildID   string
	Update    PlayerUpdate
	NoReplace bool
}

var _ restAPI = (*fakeRest)(nil)

func (f *fakeRest) UpdatePlayer(_ context.Context, sessionID, guildID string, update PlayerUpdate, noReplace bool) (*PlayerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, recordedUpdate{SessionID: sessionID, GuildID: guildID, Update: update, NoReplace: noReplace})
	info := f.playerInfo
	return &info, nil
}

func (f *fakeRest) DestroyPlayer(_ context.Context, _, guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys = append(f.destroys, guildID)
	return nil
}

func (f *fakeRest) UpdateSession(_ context.Context, _ string, update SessionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, update)
	return nil
}

func (f *fakeRest) LoadTracks(_ context.Context, _ string) (*loadResponse, error) {
	return f.loadRes, nil
}

func (f *fakeRest) DecodeTrack(_ context.Context, encoded string) (*Track, error) {
	return &Track{Encoded: encoded}, nil
}

func (f *fakeRest) DecodeTracks(_ context.Context, encoded []string) ([]Track, error) {
	tracks := make([]Track, len(encoded))
	for i, e := range encoded {
		tracks[i] = Track{Encoded: e}
	}
	return tracks, nil
}

func (f *fakeRest) Info(_ context.Context) (*Info, error)       { return &Info{}, nil }
func (f *fakeRest) Version(_ context.Context) (string, error)   { return "4.0.0", nil }
func (f *fakeRest) Stats(_ context.Context) (*Stats, error)     { return &Stats{}, nil }
func (f *fakeRest) RoutePlannerStatus(_ context.Context) (*RoutePlannerStatus, error) {
	return &RoutePlannerStatus{}, nil
}
func (f *fakeRest) UnmarkFailedAddress(_ context.Context, _ string) error { return nil }
func (f *fakeRest) UnmarkAllFailedAddresses(_ context.Context) error      { return nil }

func (f *fakeRest) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeRest) lastUpdate() recordedUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

// newTestNode wires a node to a fake control channel with an already
// established session, skipping the websocket handshake.
func newTestNode(rest restAPI) *Node {
	n := NewNode(NodeConfig{Name: "test", Port: 2333, Password: "pw", UserID: "bot-user"})
	n.rest = rest
	n.sessionID = "test-session"
	return n
}

func testTrack(id string) Track {
	return Track{
		Encoded: "enc-" + id,
		Info:    TrackInfo{Identifier: id, Title: "title-" + id, Author: "author", Length: 180000, IsSeekable: true},
	}
}
