package lavalink

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned when a control request is attempted
	// before the node completed its ready handshake, or after the
	// session was invalidated by a reconnect.
	ErrNotConnected = errors.New("node has no active session")

	// ErrAuthentication is returned when the node rejects the
	// configured password. The connection is not retried.
	ErrAuthentication = errors.New("node rejected the password")

	ErrPlayerNotFound  = errors.New("no player for guild")
	ErrPlayerDestroyed = errors.New("player has been destroyed")
	ErrEmptyTrack      = errors.New("track has no encoded handle")
	ErrVolumeRange     = errors.New("volume must be in range 0-1000")
	ErrQueueIndex      = errors.New("queue index out of range")
	ErrFilterBand      = errors.New("equalizer band must be in range 0-14")
	ErrNoNodes         = errors.New("no nodes registered")
)

// RemoteError is an error response returned by the node's REST API.
type RemoteError struct {
	Timestamp int64  `json:"timestamp"`
	Status    int    `json:"status"`
	StatusMsg string `json:"error"`
	Message   string `json:"message"`
	Path      string `json:"path"`
	Trace     string `json:"trace,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("lavalink: %d %s: %s (%s)", e.Status, e.StatusMsg, e.Message, e.Path)
}

// TrackLoadError is returned when the node reports loadType "error"
// for a search or load request. It is not retried by this layer.
type TrackLoadError struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

func (e *TrackLoadError) Error() string {
	return fmt.Sprintf("track load failed (%s): %s", e.Severity, e.Message)
}
