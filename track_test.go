package lavalink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadRes(t *testing.T, loadType LoadType, data string) *loadResponse {
	t.Helper()
	return &loadResponse{LoadType: loadType, Data: json.RawMessage(data)}
}

func TestDecodeSearchResultSingleTrack(t *testing.T) {
	res, err := decodeSearchResult(loadRes(t, LoadTypeTrack,
		`{"encoded":"abc","info":{"title":"Song","author":"Artist","length":180000}}`))
	require.NoError(t, err)

	assert.Equal(t, LoadTypeTrack, res.Type)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "abc", res.Tracks[0].Encoded)
	assert.Equal(t, "Song", res.Tracks[0].Info.Title)
	assert.Nil(t, res.Playlist)
	assert.False(t, res.IsEmpty())
}

func TestDecodeSearchResultSearch(t *testing.T) {
	res, err := decodeSearchResult(loadRes(t, LoadTypeSearch,
		`[{"encoded":"a"},{"encoded":"b"}]`))
	require.NoError(t, err)

	assert.Equal(t, LoadTypeSearch, res.Type)
	require.Len(t, res.Tracks, 2)
	assert.Nil(t, res.Playlist)
}

func TestDecodeSearchResultPlaylist(t *testing.T) {
	res, err := decodeSearchResult(loadRes(t, LoadTypePlaylist,
		`{"info":{"name":"Mix","selectedTrack":1},"tracks":[{"encoded":"a"},{"encoded":"b"}]}`))
	require.NoError(t, err)

	assert.Empty(t, res.Tracks)
	require.NotNil(t, res.Playlist)
	assert.Equal(t, "Mix", res.Playlist.Name)
	assert.Equal(t, 1, res.Playlist.SelectedTrack)
	require.Len(t, res.Playlist.Tracks, 2)
	assert.False(t, res.IsEmpty())
}

func TestDecodeSearchResultEmpty(t *testing.T) {
	res, err := decodeSearchResult(loadRes(t, LoadTypeEmpty, `null`))
	require.NoError(t, err)
	assert.True(t, res.IsEmpty())
}

func TestDecodeSearchResultError(t *testing.T) {
	res, err := decodeSearchResult(loadRes(t, LoadTypeError,
		`{"message":"video unavailable","severity":"common","cause":"..."}`))
	require.Nil(t, res)

	var loadErr *TrackLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "video unavailable", loadErr.Message)
	assert.Equal(t, "common", loadErr.Severity)
}
