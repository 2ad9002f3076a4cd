package lavalink

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetEqualizerClampsGain(t *testing.T) {
	var filters Filters
	require.NoError(t, filters.SetEqualizer(
		EqualizerBand{Band: 0, Gain: -0.5},
		EqualizerBand{Band: 7, Gain: 0.25},
		EqualizerBand{Band: 14, Gain: 2.0},
	))

	assert.Equal(t, []EqualizerBand{
		{Band: 0, Gain: -0.25},
		{Band: 7, Gain: 0.25},
		{Band: 14, Gain: 1.0},
	}, filters.Equalizer)
}

func TestSetEqualizerRejectsBadBand(t *testing.T) {
	var filters Filters
	assert.ErrorIs(t, filters.SetEqualizer(EqualizerBand{Band: 15}), ErrFilterBand)
	assert.ErrorIs(t, filters.SetEqualizer(EqualizerBand{Band: -1}), ErrFilterBand)
	assert.Nil(t, filters.Equalizer)
}

func TestFiltersEmptySerializesToEmptyObject(t *testing.T) {
	raw, err := json.Marshal(&Filters{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestFiltersSerializesSetSections(t *testing.T) {
	volume := 0.8
	filters := Filters{
		Volume:    &volume,
		Timescale: &Timescale{Speed: 1.2, Pitch: 1.0, Rate: 1.0},
	}
	raw, err := json.Marshal(&filters)
	require.NoError(t, err)
	assert.JSONEq(t, `{"volume":0.8,"timescale":{"speed":1.2,"pitch":1,"rate":1}}`, string(raw))
}
