package raster

import "math"

// RoundMantissa truncates each float32 to keepBits of mantissa, rounding to
// nearest. This is a one-way quantization to bound storage size: relative
// error stays within 2^-(keepBits+1), but round-trip equality with the
// original values is not expected.
//
// keepBits outside [1, 22] leaves the data untouched (float32 carries 23
// explicit mantissa bits).
func RoundMantissa(data []float32, keepBits int) {
	if keepBits < 1 || keepBits > 22 {
		return
	}
	dropBits := uint32(23 - keepBits)
	half := uint32(1) << (dropBits - 1)
	mask := ^(uint32(1)<<dropBits - 1)
	for i, v := range data {
		bits := math.Float32bits(v)
		// NaN/Inf carry an all-ones exponent; rounding could overflow
		// into it, so leave them as they are.
		if bits&0x7f800000 == 0x7f800000 {
			continue
		}
		bits += half
		data[i] = math.Float32frombits(bits & mask)
	}
}

// RoundMantissa64 is RoundMantissa for float64 data. keepBits outside
// [1, 51] leaves the data untouched (float64 carries 52 explicit mantissa
// bits).
func RoundMantissa64(data []float64, keepBits int) {
	if keepBits < 1 || keepBits > 51 {
		return
	}
	dropBits := uint64(52 - keepBits)
	half := uint64(1) << (dropBits - 1)
	mask := ^(uint64(1)<<dropBits - 1)
	for i, v := range data {
		bits := math.Float64bits(v)
		if bits&0x7ff0000000000000 == 0x7ff0000000000000 {
			continue
		}
		bits += half
		data[i] = math.Float64frombits(bits & mask)
	}
}

// RoundMantissaComplex applies RoundMantissa to the real and imaginary parts
// independently.
func RoundMantissaComplex(data []complex64, keepBits int) {
	if keepBits < 1 || keepBits > 22 {
		return
	}
	re := make([]float32, 1)
	im := make([]float32, 1)
	for i, v := range data {
		re[0], im[0] = real(v), imag(v)
		RoundMantissa(re, keepBits)
		RoundMantissa(im, keepBits)
		data[i] = complex(re[0], im[0])
	}
}
