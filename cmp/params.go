package cmp

import (
	"math"

	"github.com/MEDFormat/MEDC-sub001/format"
)

// Parameters holds the optional per-block transform parameters that pack
// into the CMP variable region's parameter array: which of the five 4-byte
// slots are present is selected by parameter_flags, in bit-index order.
type Parameters struct {
	HasGradient        bool
	Gradient           float32
	HasIntercept       bool
	Intercept          int32
	HasAmplitudeScale  bool
	AmplitudeScale     float32
	HasFrequencyScale  bool
	FrequencyScale     float32
	HasNoiseScores     bool
	NoiseScores        uint32
}

// Flags computes this Parameters value's parameter_flags bitfield.
func (p Parameters) Flags() uint32 {
	var f uint32
	if p.HasGradient {
		f |= format.ParamFlagGradient
	}
	if p.HasIntercept {
		f |= format.ParamFlagIntercept
	}
	if p.HasAmplitudeScale {
		f |= format.ParamFlagAmplitudeScale
	}
	if p.HasFrequencyScale {
		f |= format.ParamFlagFrequencyScale
	}
	if p.HasNoiseScores {
		f |= format.ParamFlagNoiseScores
	}
	return f
}

// Bytes packs the present slots, in bit-index order (gradient, intercept,
// amplitude_scale, frequency_scale, noise_scores), into a 4-byte-per-slot
// region sized by ParameterRegionBytes(flags).
func (p Parameters) Bytes() []byte {
	flags := p.Flags()
	out := make([]byte, ParameterRegionBytes(uint16(flags)))

	off := 0
	put32 := func(v uint32) {
		engine.PutUint32(out[off:], v)
		off += 4
	}

	if p.HasGradient {
		put32(math.Float32bits(p.Gradient))
	}
	if p.HasIntercept {
		put32(uint32(p.Intercept))
	}
	if p.HasAmplitudeScale {
		put32(math.Float32bits(p.AmplitudeScale))
	}
	if p.HasFrequencyScale {
		put32(math.Float32bits(p.FrequencyScale))
	}
	if p.HasNoiseScores {
		put32(p.NoiseScores)
	}

	return out
}

// ParseParameters unpacks a parameter region given the parameter_flags
// that selected its contents.
func ParseParameters(flags uint32, data []byte) Parameters {
	var p Parameters
	off := 0
	get32 := func() uint32 {
		v := engine.Uint32(data[off:])
		off += 4
		return v
	}

	if flags&format.ParamFlagGradient != 0 {
		p.HasGradient = true
		p.Gradient = math.Float32frombits(get32())
	}
	if flags&format.ParamFlagIntercept != 0 {
		p.HasIntercept = true
		p.Intercept = int32(get32())
	}
	if flags&format.ParamFlagAmplitudeScale != 0 {
		p.HasAmplitudeScale = true
		p.AmplitudeScale = math.Float32frombits(get32())
	}
	if flags&format.ParamFlagFrequencyScale != 0 {
		p.HasFrequencyScale = true
		p.FrequencyScale = math.Float32frombits(get32())
	}
	if flags&format.ParamFlagNoiseScores != 0 {
		p.HasNoiseScores = true
		p.NoiseScores = get32()
	}

	return p
}
