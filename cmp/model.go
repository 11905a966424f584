package cmp

import "github.com/MEDFormat/MEDC-sub001/format"

// Model region marshaling for all three encodings. On-disk sizes: MBE
// model = 5 bytes, RED model = 12 + 3·B bytes, PRED model = 14 + 3·B
// bytes, where B counts statistics bins.

// Bytes serializes an MBEModel into format.CMPMBEModelBaseSize bytes.
func (m MBEModel) Bytes() []byte {
	b := make([]byte, format.CMPMBEModelBaseSize)
	engine.PutUint32(b[0:], uint32(m.MinimumSampleValue))
	b[4] = m.BitsPerSample
	return b
}

// ParseMBEModel decodes an MBEModel from exactly format.CMPMBEModelBaseSize
// bytes.
func ParseMBEModel(data []byte) MBEModel {
	return MBEModel{
		MinimumSampleValue: int32(engine.Uint32(data[0:])),
		BitsPerSample:      data[4],
	}
}

// Size returns the on-disk size of m's model region.
func (m REDModel) Size() int {
	return format.CMPREDModelBaseSize + 3*len(m.Symbols)
}

// Bytes serializes a REDModel.
func (m REDModel) Bytes() []byte {
	b := make([]byte, m.Size())
	engine.PutUint32(b[0:], uint32(m.InitialSampleValue))
	engine.PutUint32(b[4:], m.DifferenceBytes)
	b[8] = m.DerivativeLevel
	b[9] = m.NoZeroCountsFlag
	engine.PutUint16(b[10:], m.NumberOfStatisticsBins)

	off := format.CMPREDModelBaseSize
	for _, c := range m.BinCounts {
		engine.PutUint16(b[off:], c)
		off += 2
	}
	for _, s := range m.Symbols {
		b[off] = byte(s)
		off++
	}

	return b
}

// ParseREDModel decodes a REDModel whose statistics-bin arrays hold
// numBins entries each.
func ParseREDModel(data []byte) REDModel {
	var m REDModel
	m.InitialSampleValue = int32(engine.Uint32(data[0:]))
	m.DifferenceBytes = engine.Uint32(data[4:])
	m.DerivativeLevel = data[8]
	m.NoZeroCountsFlag = data[9]
	m.NumberOfStatisticsBins = engine.Uint16(data[10:])

	numBins := int(m.NumberOfStatisticsBins)
	off := format.CMPREDModelBaseSize
	m.BinCounts = make([]uint16, numBins)
	for i := range m.BinCounts {
		m.BinCounts[i] = engine.Uint16(data[off:])
		off += 2
	}
	m.Symbols = make([]int8, numBins)
	for i := range m.Symbols {
		m.Symbols[i] = int8(data[off])
		off++
	}

	return m
}

// Size returns the on-disk size of m's model region: the 14-byte base plus
// 3 bytes for every statistics bin across all three contexts.
func (m PREDModel) Size() int {
	total := format.CMPPREDModelBaseSize
	for _, c := range m.Contexts {
		total += 3 * len(c.Symbols)
	}
	return total
}

// Bytes serializes a PREDModel.
func (m PREDModel) Bytes() []byte {
	b := make([]byte, m.Size())
	engine.PutUint32(b[0:], uint32(m.InitialSampleValue))
	engine.PutUint32(b[4:], m.DifferenceBytes)
	for i, c := range m.Contexts {
		engine.PutUint16(b[8+2*i:], c.NumberOfStatisticsBins)
	}

	off := format.CMPPREDModelBaseSize
	for _, c := range m.Contexts {
		for _, cnt := range c.BinCounts {
			engine.PutUint16(b[off:], cnt)
			off += 2
		}
	}
	for _, c := range m.Contexts {
		for _, s := range c.Symbols {
			b[off] = byte(s)
			off++
		}
	}

	return b
}

// ParsePREDModel decodes a PREDModel.
func ParsePREDModel(data []byte) PREDModel {
	var m PREDModel
	m.InitialSampleValue = int32(engine.Uint32(data[0:]))
	m.DifferenceBytes = engine.Uint32(data[4:])

	var numBins [3]int
	for i := range m.Contexts {
		m.Contexts[i].NumberOfStatisticsBins = engine.Uint16(data[8+2*i:])
		numBins[i] = int(m.Contexts[i].NumberOfStatisticsBins)
	}

	off := format.CMPPREDModelBaseSize
	for i := range m.Contexts {
		m.Contexts[i].BinCounts = make([]uint16, numBins[i])
		for j := range m.Contexts[i].BinCounts {
			m.Contexts[i].BinCounts[j] = engine.Uint16(data[off:])
			off += 2
		}
	}
	for i := range m.Contexts {
		m.Contexts[i].Symbols = make([]int8, numBins[i])
		for j := range m.Contexts[i].Symbols {
			m.Contexts[i].Symbols[j] = int8(data[off])
			off++
		}
	}

	return m
}
