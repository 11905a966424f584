package cmp

import "math/bits"

// MBEModel is an MBE block's model region: the block minimum and the fixed
// bit width every sample is packed at.
type MBEModel struct {
	MinimumSampleValue int32
	BitsPerSample      uint8
}

// bitsForRange returns ceil(log2(span+1)), the minimal bit width that can
// represent every unsigned value in [0, span] (0 if span is 0, meaning
// every sample in the block is equal).
func bitsForRange(span uint32) uint8 {
	if span == 0 {
		return 0
	}
	return uint8(bits.Len32(span))
}

// EncodeMBE packs samples as (sample-min) unsigned values, LSB-first
// within a 64-bit word stream.
func EncodeMBE(samples []int32) (payload []byte, model MBEModel) {
	if len(samples) == 0 {
		return nil, MBEModel{}
	}

	minV, maxV := samples[0], samples[0]
	for _, s := range samples[1:] {
		if s < minV {
			minV = s
		}
		if s > maxV {
			maxV = s
		}
	}

	span := uint32(int64(maxV) - int64(minV))
	bps := bitsForRange(span)
	model = MBEModel{MinimumSampleValue: minV, BitsPerSample: bps}

	if bps == 0 {
		return nil, model
	}

	totalBits := uint64(bps) * uint64(len(samples))
	payload = make([]byte, (totalBits+63)/64*8)

	var acc uint64
	var accBits uint
	wordIdx := 0
	for _, s := range samples {
		v := uint64(uint32(s - minV))
		acc |= v << accBits
		accBits += uint(bps)
		for accBits >= 64 {
			putUint64LE(payload[wordIdx*8:], acc)
			wordIdx++
			acc = v >> (uint(bps) - (accBits - 64))
			accBits -= 64
		}
	}
	if accBits > 0 {
		putUint64LE(payload[wordIdx*8:], acc)
	}

	return payload, model
}

// DecodeMBE reverses EncodeMBE, reconstructing exactly n samples.
func DecodeMBE(payload []byte, model MBEModel, n int) []int32 {
	out := make([]int32, n)
	if n == 0 {
		return out
	}
	if model.BitsPerSample == 0 {
		for i := range out {
			out[i] = model.MinimumSampleValue
		}
		return out
	}

	bps := uint(model.BitsPerSample)
	mask := uint64(1)<<bps - 1

	bitPos := uint64(0)
	for i := 0; i < n; i++ {
		wordIdx := bitPos / 64
		bitOff := bitPos % 64

		lo := getUint64LE(payload, int(wordIdx)*8)
		var v uint64
		if bitOff+uint64(bps) <= 64 {
			v = (lo >> bitOff) & mask
		} else {
			hi := getUint64LE(payload, int(wordIdx+1)*8)
			v = (lo >> bitOff) | (hi << (64 - bitOff))
			v &= mask
		}

		out[i] = model.MinimumSampleValue + int32(uint32(v))
		bitPos += uint64(bps)
	}

	return out
}

func putUint64LE(b []byte, v uint64) {
	for i := 0; i < 8 && i < len(b); i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getUint64LE(b []byte, off int) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		if off+i < len(b) {
			v |= uint64(b[off+i]) << (8 * i)
		}
	}
	return v
}

// MBEEncodedBytes predicts the payload byte count EncodeMBE would produce
// for a block with the given sample count and bit width, without actually
// packing anything.
func MBEEncodedBytes(sampleCount int, bitsPerSample uint8) int {
	if bitsPerSample == 0 {
		return 0
	}
	totalBits := uint64(bitsPerSample) * uint64(sampleCount)
	return int((totalBits + 63) / 64 * 8)
}
