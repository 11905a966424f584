package crc32med

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculate_KnownVectors(t *testing.T) {
	require.Equal(t, uint32(0x352441C2), Calculate([]byte("abc")))
	require.Equal(t, uint32(0x0CC4E161), Calculate([]byte("def")))
	require.Equal(t, uint32(0x4B8E39EF), Calculate([]byte("abcdef")))
}

func TestCalculate_EmptyInput(t *testing.T) {
	require.Equal(t, ^StartValue, Calculate(nil))
}

func TestUpdate_MatchesCalculate(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	direct := Calculate(data)

	split := len(data) / 2
	partial := Calculate(data[:split])
	chained := Update(data[split:], partial)

	require.Equal(t, direct, chained)
}

func TestCombine_KnownVectors(t *testing.T) {
	a := []byte("abc")
	b := []byte("def")

	crcA := Calculate(a)
	crcB := Calculate(b)

	combined := Combine(crcA, crcB, int64(len(b)))
	require.Equal(t, Calculate(append(append([]byte{}, a...), b...)), combined)
}

func TestCombine_RandomPairs(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		a := make([]byte, rng.Intn(200))
		b := make([]byte, rng.Intn(200))
		rng.Read(a)
		rng.Read(b)

		crcA := Calculate(a)
		crcB := Calculate(b)
		combined := Combine(crcA, crcB, int64(len(b)))

		require.Equal(t, Calculate(append(append([]byte{}, a...), b...)), combined)
	}
}

func TestCombine_ZeroLengthB(t *testing.T) {
	crcA := Calculate([]byte("hello"))
	require.Equal(t, crcA, Combine(crcA, Calculate(nil), 0))
}

func TestValidate(t *testing.T) {
	data := []byte("payload")
	crc := Calculate(data)

	require.True(t, Validate(data, crc))
	require.False(t, Validate(data, crc+1))
}
