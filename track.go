package lavalink

import "encoding/json"

// Track is one playable audio item. The encoded handle is issued by
// the node and is the only thing required to actually play it; the
// info block is display metadata decoded alongside it.
type Track struct {
	Encoded    string          `json:"encoded"`
	Info       TrackInfo       `json:"info"`
	PluginInfo json.RawMessage `json:"pluginInfo,omitempty"`

	// Requester identifies who queued the track. It is carried forward
	// untouched when the track is replayed by repeat modes.
	Requester string `json:"-"`
}

// TrackInfo is the node-decoded metadata for a track.
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	SourceName string `json:"sourceName,omitempty"`
}

// Playlist is a named, ordered track collection produced by a load
// request. It is transient: callers consume its tracks into a queue.
type Playlist struct {
	Name          string  `json:"name"`
	SelectedTrack int     `json:"selectedTrack"`
	Tracks        []Track `json:"-"`
}

// LoadType discriminates the result of a track load request.
type LoadType string

const (
	LoadTypeTrack    LoadType = "track"
	LoadTypePlaylist LoadType = "playlist"
	LoadTypeSearch   LoadType = "search"
	LoadTypeEmpty    LoadType = "empty"
	LoadTypeError    LoadType = "error"
)

// SearchResult is the decoded outcome of a load request. Exactly one
// of Tracks or Playlist is populated; a load failure never produces a
// SearchResult, it surfaces as *TrackLoadError from the caller.
type SearchResult struct {
	Type     LoadType
	Tracks   []Track
	Playlist *Playlist
}

// IsEmpty reports whether the load matched nothing.
func (r *SearchResult) IsEmpty() bool {
	return r.Playlist == nil && len(r.Tracks) == 0
}

// loadResponse is the raw REST payload for /loadtracks. The shape of
// "data" depends on loadType, so it is decoded in a second step.
type loadResponse struct {
	LoadType LoadType        `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []Track `json:"tracks"`
}

// decodeSearchResult turns a raw load response into the tagged result
// type, deciding the variant exactly once at this boundary.
func decodeSearchResult(res *loadResponse) (*SearchResult, error) {
	switch res.LoadType {
	case LoadTypeTrack:
		var track Track
		if err := json.Unmarshal(res.Data, &track); err != nil {
			return nil, err
		}
		return &SearchResult{Type: res.LoadType, Tracks: []Track{track}}, nil
	case LoadTypeSearch:
		var tracks []Track
		if err := json.Unmarshal(res.Data, &tracks); err != nil {
			return nil, err
		}
		return &SearchResult{Type: res.LoadType, Tracks: tracks}, nil
	case LoadTypePlaylist:
		var data playlistData
		if err := json.Unmarshal(res.Data, &data); err != nil {
			return nil, err
		}
		return &SearchResult{Type: res.LoadType, Playlist: &Playlist{
			Name:          data.Info.Name,
			SelectedTrack: data.Info.SelectedTrack,
			Tracks:        data.Tracks,
		}}, nil
	case LoadTypeError:
		loadErr := &TrackLoadError{}
		if err := json.Unmarshal(res.Data, loadErr); err != nil {
			return nil, err
		}
		return nil, loadErr
	default: // empty or unknown
		return &SearchResult{Type: LoadTypeEmpty}, nil
	}
}
