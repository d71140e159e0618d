package speakerdb

import (
	"encoding/binary"
	"fmt"
	"math"
)

const minNorm = 1e-6

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

func normalize(v []float64) ([]float64, bool) {
	n := norm(v)
	if len(v) == 0 || n < minNorm {
		return nil, false
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out, true
}

// blend averages two unit vectors and renormalizes. Opposite vectors cancel
// out; a is kept in that case.
func blend(a, b []float64) ([]float64, bool) {
	sum := make([]float64, len(a))
	for i := range a {
		sum[i] = (a[i] + b[i]) / 2
	}
	out, ok := normalize(sum)
	if !ok {
		return a, false
	}
	return out, true
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
// or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := norm(a), norm(b)
	if na < minNorm || nb < minNorm {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (na * nb)
}

// Embeddings are stored as little-endian float32.
func encodeEmbedding(v []float64) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
	}
	return buf
}

func decodeEmbedding(buf []byte) ([]float64, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob has %d bytes, not a multiple of 4", len(buf))
	}
	out := make([]float64, len(buf)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
	}
	return out, nil
}
