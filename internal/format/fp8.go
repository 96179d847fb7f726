package format

import "math"

// 8-bit float conversion. E4M3 (bias 7) carries no infinities and a single
// NaN encoding; overflow saturates to the max finite value 448. E5M2
// (bias 15) keeps infinities; finite overflow saturates to 57344.
// Rounding is to nearest, ties to even, matching the conversion hardware
// these formats are defined for.

const (
	e4m3NaN       = 0x7F
	e4m3MaxFinite = 0x7E // 448
	e5m2Inf       = 0x7C
	e5m2NaN       = 0x7F
	e5m2MaxFinite = 0x7B // 57344
)

func Float32ToFP8E4M3(f float32) uint8 {
	bits := math.Float32bits(f)
	sign := uint8(bits>>31) << 7
	exp := int(bits>>23) & 0xFF
	mant := bits & 0x7FFFFF

	if exp == 0xFF {
		// Inf and NaN both map to NaN: E4M3 cannot represent infinity
		return sign | e4m3NaN
	}

	e := exp - 127 + 7 // rebias
	if e > 15 {
		return sign | e4m3MaxFinite
	}

	if e >= 1 {
		m := mant >> 20
		rem := mant & 0xFFFFF
		if rem > 0x80000 || (rem == 0x80000 && m&1 == 1) {
			m++
			if m == 8 {
				m = 0
				e++
			}
		}
		if e > 15 || (e == 15 && m == 7) {
			// 1111.111 is the NaN encoding, not a finite value
			return sign | e4m3MaxFinite
		}
		return sign | uint8(e)<<3 | uint8(m)
	}

	// Subnormal range: quantize to multiples of 2^-9. A carry out of the
	// subnormal mantissa lands exactly on the minimum normal encoding.
	if exp == 0 {
		return sign // f32 subnormals are far below 2^-9
	}
	shift := uint(21 - e)
	if shift > 24 {
		return sign
	}
	sig := mant | 0x800000
	q := sig >> shift
	rem := sig & (1<<shift - 1)
	half := uint32(1) << (shift - 1)
	if rem > half || (rem == half && q&1 == 1) {
		q++
	}
	return sign | uint8(q)
}

func FP8E4M3ToFloat32(b uint8) float32 {
	sign := uint32(b>>7) << 31
	e := uint32(b>>3) & 0xF
	m := uint32(b) & 0x7

	if e == 0xF && m == 0x7 {
		return math.Float32frombits(sign | 0x7FC00000)
	}
	if e == 0 {
		// subnormal: m * 2^-9
		v := float32(m) * 0x1p-9
		if sign != 0 {
			v = -v
		}
		return v
	}
	return math.Float32frombits(sign | (e-7+127)<<23 | m<<20)
}

func Float32ToFP8E5M2(f float32) uint8 {
	bits := math.Float32bits(f)
	sign := uint8(bits>>31) << 7
	exp := int(bits>>23) & 0xFF
	mant := bits & 0x7FFFFF

	if exp == 0xFF {
		if mant != 0 {
			return sign | e5m2NaN
		}
		return sign | e5m2Inf
	}

	e := exp - 127 + 15
	if e > 30 {
		return sign | e5m2MaxFinite
	}

	if e >= 1 {
		m := mant >> 21
		rem := mant & 0x1FFFFF
		if rem > 0x100000 || (rem == 0x100000 && m&1 == 1) {
			m++
			if m == 4 {
				m = 0
				e++
			}
		}
		if e > 30 {
			return sign | e5m2MaxFinite
		}
		return sign | uint8(e)<<2 | uint8(m)
	}

	// subnormal: multiples of 2^-16
	if exp == 0 {
		return sign
	}
	shift := uint(22 - e)
	if shift > 24 {
		return sign
	}
	sig := mant | 0x800000
	q := sig >> shift
	rem := sig & (1<<shift - 1)
	half := uint32(1) << (shift - 1)
	if rem > half || (rem == half && q&1 == 1) {
		q++
	}
	return sign | uint8(q)
}

func FP8E5M2ToFloat32(b uint8) float32 {
	sign := uint32(b>>7) << 31
	e := uint32(b>>2) & 0x1F
	m := uint32(b) & 0x3

	if e == 0x1F {
		if m != 0 {
			return math.Float32frombits(sign | 0x7FC00000)
		}
		return math.Float32frombits(sign | 0x7F800000)
	}
	if e == 0 {
		v := float32(m) * 0x1p-16
		if sign != 0 {
			v = -v
		}
		return v
	}
	return math.Float32frombits(sign | (e-15+127)<<23 | m<<21)
}
