package lavalink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const apiVersion = "v4"

// restAPI is the control channel surface the rest of the library talks
// to. It is an interface so player and dispatch logic can be exercised
// against a fake node in tests.
type restAPI interface {
	UpdatePlayer(ctx context.Context, sessionID, guildID string, update PlayerUpdate, noReplace bool) (*PlayerInfo, error)
	DestroyPlayer(ctx context.Context, sessionID, guildID string) error
	UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) error
	LoadTracks(ctx context.Context, identifier string) (*loadResponse, error)
	DecodeTrack(ctx context.Context, encoded string) (*Track, error)
	DecodeTracks(ctx context.Context, encoded []string) ([]Track, error)
	Info(ctx context.Context) (*Info, error)
	Version(ctx context.Context) (string, error)
	Stats(ctx context.Context) (*Stats, error)
	RoutePlannerStatus(ctx context.Context) (*RoutePlannerStatus, error)
	UnmarkFailedAddress(ctx context.Context, address string) error
	UnmarkAllFailedAddresses(ctx context.Context) error
}

// PlayerUpdate is the partial PATCH document for a guild player. Nil
// fields are omitted; the node only applies what is present. Track is
// special-cased: an explicit null encoded handle clears the current
// track.
type PlayerUpdate struct {
	Track    *PlayerUpdateTrack `json:"track,omitempty"`
	Position *int64             `json:"position,omitempty"`
	Paused   *bool              `json:"paused,omitempty"`
	Volume   *int               `json:"volume,omitempty"`
	Voice    *VoiceState        `json:"voice,omitempty"`
	Filters  *Filters           `json:"filters,omitempty"`
}

// PlayerUpdateTrack sets or clears the current track. A nil Encoded
// serializes as JSON null, which tells the node to stop the track.
type PlayerUpdateTrack struct {
	Encoded *string `json:"encoded"`
}

// SessionUpdate configures session resuming behavior.
type SessionUpdate struct {
	Resuming *bool `json:"resuming,omitempty"`
	Timeout  *int  `json:"timeout,omitempty"`
}

// Rest issues control channel requests against a single node. Every
// state-mutating request is scoped by the session id assigned on the
// websocket handshake.
type Rest struct {
	baseURL  string
	password string
	client   *http.Client
	log      *zap.Logger
}

func newRest(cfg NodeConfig, log *zap.Logger) *Rest {
	scheme := "http"
	if cfg.Secure {
		scheme = "https"
	}
	return &Rest{
		baseURL:  fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port),
		password: cfg.Password,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

var _ restAPI = (*Rest)(nil)

// do performs one request and decodes the response into out (when out
// is non-nil). Non-2xx responses are decoded into a RemoteError.
func (r *Rest) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", r.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	reqID := uuid.NewString()
	r.log.Debug("control channel request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", reqID))

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		remote := &RemoteError{Status: res.StatusCode, Path: path}
		if err := json.NewDecoder(res.Body).Decode(remote); err != nil {
			r.log.Debug("undecodable error body", zap.String("request_id", reqID), zap.Error(err))
		}
		return remote
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// UpdatePlayer PATCHes a partial player document and returns the
// node's acknowledged player state.
func (r *Rest) UpdatePlayer(ctx context.Context, sessionID, guildID string, update PlayerUpdate, noReplace bool) (*PlayerInfo, error) {
	path := fmt.Sprintf("/%s/sessions/%s/players/%s?noReplace=%t", apiVersion, sessionID, guildID, noReplace)
	info := &PlayerInfo{}
	if err := r.do(ctx, http.MethodPatch, path, update, info); err != nil {
		return nil, err
	}
	return info, nil
}

// DestroyPlayer tells the node to drop the player and all its state.
func (r *Rest) DestroyPlayer(ctx context.Context, sessionID, guildID string) error {
	path := fmt.Sprintf("/%s/sessions/%s/players/%s", apiVersion, sessionID, guildID)
	return r.do(ctx, http.MethodDelete, path, nil, nil)
}

// UpdateSession configures resuming for the current session.
func (r *Rest) UpdateSession(ctx context.Context, sessionID string, update SessionUpdate) error {
	path := fmt.Sprintf("/%s/sessions/%s", apiVersion, sessionID)
	return r.do(ctx, http.MethodPatch, path, update, nil)
}

// LoadTracks resolves a free-text identifier (URL or search prefix)
// into a raw load response.
func (r *Rest) LoadTracks(ctx context.Context, identifier string) (*loadResponse, error) {
	path := fmt.Sprintf("/%s/loadtracks?identifier=%s", apiVersion, url.QueryEscape(identifier))
	res := &loadResponse{}
	if err := r.do(ctx, http.MethodGet, path, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

// DecodeTrack resolves an opaque encoded handle back into track info.
func (r *Rest) DecodeTrack(ctx context.Context, encoded string) (*Track, error) {
	path := fmt.Sprintf("/%s/decodetrack?encodedTrack=%s", apiVersion, url.QueryEscape(encoded))
	track := &Track{}
	if err := r.do(ctx, http.MethodGet, path, nil, track); err != nil {
		return nil, err
	}
	return track, nil
}

// DecodeTracks resolves a batch of encoded handles.
func (r *Rest) DecodeTracks(ctx context.Context, encoded []string) ([]Track, error) {
	var tracks []Track
	if err := r.do(ctx, http.MethodPost, "/"+apiVersion+"/decodetracks", encoded, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

func (r *Rest) Info(ctx context.Context) (*Info, error) {
	info := &Info{}
	if err := r.do(ctx, http.MethodGet, "/"+apiVersion+"/info", nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Version returns the node's version string. The endpoint is not
// versioned.
func (r *Rest) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/version", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", r.password)
	res, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (r *Rest) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := r.do(ctx, http.MethodGet, "/"+apiVersion+"/stats", nil, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *Rest) RoutePlannerStatus(ctx context.Context) (*RoutePlannerStatus, error) {
	status := &RoutePlannerStatus{}
	if err := r.do(ctx, http.MethodGet, "/"+apiVersion+"/routeplanner/status", nil, status); err != nil {
		return nil, err
	}
	return status, nil
}

func (r *Rest) UnmarkFailedAddress(ctx context.Context, address string) error {
	body := map[string]string{"address": address}
	return r.do(ctx, http.MethodPost, "/"+apiVersion+"/routeplanner/free/address", body, nil)
}

func (r *Rest) UnmarkAllFailedAddresses(ctx context.Context) error {
	return r.do(ctx, http.MethodPost, "/"+apiVersion+"/routeplanner/free/all", nil, nil)
}
