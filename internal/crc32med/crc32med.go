// Package crc32med implements the CRC-32 engine the MED format calls
// for: a precomputed slice-by-4 table set plus a GF(2) combine operator so
// a whole-file body_CRC can be assembled from per-block/per-record CRCs
// without rescanning the bytes already covered by each constituent CRC.
//
// hash/crc32 in the standard library exposes table-based Update but no
// combine operator, which the incremental body_CRC assembly requires; the
// combine here uses the same GF(2)-matrix construction as zlib's
// crc32_combine.
package crc32med

import "math/bits"

// Polynomial is the reflected CRC-32 (IEEE 802.3) polynomial.
const Polynomial uint32 = 0xEDB88320

// StartValue is the initial register value before processing any bytes
// (the format's CRC start value).
const StartValue uint32 = 0xFFFFFFFF

// tables[0..3] is the slice-by-4 table set used for little-endian input
// (the only byte order MED ever stores on disk). tables[4..7] hold
// byte-swapped duplicates for a mis-endian slice-by-4 path;
// the library never actually needs them since all files are little-endian,
// so they are built for layout parity but otherwise unused here.
var tables [8][256]uint32

func init() {
	for i := range 256 {
		crc := uint32(i)
		for range 8 {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ Polynomial
			} else {
				crc >>= 1
			}
		}
		tables[0][i] = crc
	}

	for k := 1; k < 4; k++ {
		for i := range 256 {
			prev := tables[k-1][i]
			tables[k][i] = (prev >> 8) ^ tables[0][prev&0xFF]
		}
	}

	for k := range 4 {
		for i := range 256 {
			tables[k+4][i] = bits.ReverseBytes32(tables[k][i])
		}
	}
}

// Calculate computes the CRC-32 of buf, starting from StartValue.
func Calculate(buf []byte) uint32 {
	return Update(buf, ^StartValue)
}

// Update continues a CRC-32 computation, seeding the engine with ^current
// (the inverse of a previously returned CRC).
func Update(buf []byte, current uint32) uint32 {
	crc := ^current

	for len(buf) >= 4 {
		crc ^= uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		crc = tables[3][crc&0xFF] ^ tables[2][(crc>>8)&0xFF] ^ tables[1][(crc>>16)&0xFF] ^ tables[0][(crc>>24)&0xFF]
		buf = buf[4:]
	}

	for _, b := range buf {
		crc = tables[0][byte(crc)^b] ^ (crc >> 8)
	}

	return ^crc
}

// Validate reports whether buf's CRC-32 equals stored.
func Validate(buf []byte, stored uint32) bool {
	return Calculate(buf) == stored
}

// gf2MatrixTimes multiplies the GF(2) matrix mat by the column vector vec.
func gf2MatrixTimes(mat *[32]uint32, vec uint32) uint32 {
	var sum uint32
	for i := 0; vec != 0; i++ {
		if vec&1 != 0 {
			sum ^= mat[i]
		}
		vec >>= 1
	}

	return sum
}

// gf2MatrixSquare computes square = mat * mat over GF(2).
func gf2MatrixSquare(square, mat *[32]uint32) {
	for n := range 32 {
		square[n] = gf2MatrixTimes(mat, mat[n])
	}
}

// Combine composes the CRC-32 of (A‖B) from crcA = CRC(A), crcB = CRC(B),
// and lenB = len(B), without rescanning A. This is what lets a file-wide
// body_CRC be built incrementally from per-record or per-block CRCs.
func Combine(crcA, crcB uint32, lenB int64) uint32 {
	if lenB <= 0 {
		return crcA
	}

	// odd holds the operator for appending a single zero byte; its first
	// row is the polynomial itself, the rest is an identity shift.
	var even, odd [32]uint32
	odd[0] = Polynomial
	row := uint32(1)
	for n := 1; n < 32; n++ {
		odd[n] = row
		row <<= 1
	}

	gf2MatrixSquare(&even, &odd) // even: operator for 2 zero bytes
	gf2MatrixSquare(&odd, &even) // odd: operator for 4 zero bytes

	result := crcA
	for {
		gf2MatrixSquare(&even, &odd)
		if lenB&1 != 0 {
			result = gf2MatrixTimes(&even, result)
		}
		lenB >>= 1
		if lenB == 0 {
			break
		}

		gf2MatrixSquare(&odd, &even)
		if lenB&1 != 0 {
			result = gf2MatrixTimes(&odd, result)
		}
		lenB >>= 1
		if lenB == 0 {
			break
		}
	}

	return result ^ crcB
}
