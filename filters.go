package lavalink

// Filters is a write-only configuration bag serialized wholesale to
// the node on each SetFilters call. All sections are optional; leaving
// one nil disables it. The node performs the actual processing, the
// client only clamps equalizer gain and validates band indexes.
type Filters struct {
	Volume        *float64           `json:"volume,omitempty"`
	Equalizer     []EqualizerBand    `json:"equalizer,omitempty"`
	Karaoke       *Karaoke           `json:"karaoke,omitempty"`
	Timescale     *Timescale         `json:"timescale,omitempty"`
	Tremolo       *Tremolo           `json:"tremolo,omitempty"`
	Vibrato       *Vibrato           `json:"vibrato,omitempty"`
	Rotation      *Rotation          `json:"rotation,omitempty"`
	Distortion    *Distortion        `json:"distortion,omitempty"`
	ChannelMix    *ChannelMix        `json:"channelMix,omitempty"`
	LowPass       *LowPass           `json:"lowPass,omitempty"`
	PluginFilters map[string]any     `json:"pluginFilters,omitempty"`
}

type EqualizerBand struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

type Karaoke struct {
	Level       float64 `json:"level"`
	MonoLevel   float64 `json:"monoLevel"`
	FilterBand  float64 `json:"filterBand"`
	FilterWidth float64 `json:"filterWidth"`
}

type Timescale struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

type Tremolo struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

type Vibrato struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

type Rotation struct {
	RotationHz float64 `json:"rotationHz"`
}

type Distortion struct {
	SinOffset float64 `json:"sinOffset"`
	SinScale  float64 `json:"sinScale"`
	CosOffset float64 `json:"cosOffset"`
	CosScale  float64 `json:"cosScale"`
	TanOffset float64 `json:"tanOffset"`
	TanScale  float64 `json:"tanScale"`
	Offset    float64 `json:"offset"`
	Scale     float64 `json:"scale"`
}

type ChannelMix struct {
	LeftToLeft   float64 `json:"leftToLeft"`
	LeftToRight  float64 `json:"leftToRight"`
	RightToLeft  float64 `json:"rightToLeft"`
	RightToRight float64 `json:"rightToRight"`
}

type LowPass struct {
	Smoothing float64 `json:"smoothing"`
}

// SetEqualizer replaces the equalizer section. There are 15 bands
// (0-14); gain is clamped to [-0.25, 1.0], an out-of-range band index
// is rejected with ErrFilterBand before any network call.
func (f *Filters) SetEqualizer(bands ...EqualizerBand) error {
	out := make([]EqualizerBand, 0, len(bands))
	for _, b := range bands {
		if b.Band < 0 || b.Band > 14 {
			return ErrFilterBand
		}
		out = append(out, EqualizerBand{Band: b.Band, Gain: clampGain(b.Gain)})
	}
	f.Equalizer = out
	return nil
}

func clampGain(gain float64) float64 {
	if gain < -0.25 {
		return -0.25
	}
	if gain > 1.0 {
		return 1.0
	}
	return gain
}
