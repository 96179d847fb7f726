// Package format defines the element formats the data-movement kernels
// convert between, and scalar encode/decode helpers for each.
package format

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/float16"
)

// VectorBytes is the fixed memory-transaction size the kernels are built
// around. A format's vector width is how many of its elements fit in one
// transaction.
const VectorBytes = 16

type Type uint8

const (
	FP32 Type = iota
	FP16
	BF16
	FP8E4M3
	FP8E5M2
)

func (t Type) String() string {
	switch t {
	case FP32:
		return "fp32"
	case FP16:
		return "fp16"
	case BF16:
		return "bf16"
	case FP8E4M3:
		return "fp8e4m3"
	case FP8E5M2:
		return "fp8e5m2"
	default:
		return fmt.Sprintf("format(%d)", uint8(t))
	}
}

func Parse(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "fp32", "f32", "float32":
		return FP32, nil
	case "fp16", "f16", "float16":
		return FP16, nil
	case "bf16", "bfloat16":
		return BF16, nil
	case "fp8", "fp8e4m3", "e4m3":
		return FP8E4M3, nil
	case "fp8e5m2", "e5m2":
		return FP8E5M2, nil
	default:
		return FP32, fmt.Errorf("unknown element format %q", s)
	}
}

// Size returns the element size in bytes.
func (t Type) Size() int {
	switch t {
	case FP32:
		return 4
	case FP16, BF16:
		return 2
	default:
		return 1
	}
}

// VectorWidth returns how many elements of this format fit in one
// 16-byte memory transaction.
func (t Type) VectorWidth() int {
	return VectorBytes / t.Size()
}

// Encode writes v as the idx-th element of buf in this format.
func (t Type) Encode(buf []byte, idx int, v float32) {
	switch t {
	case FP32:
		binary.LittleEndian.PutUint32(buf[idx*4:], math.Float32bits(v))
	case FP16:
		binary.LittleEndian.PutUint16(buf[idx*2:], float16.New(v).Uint16())
	case BF16:
		binary.LittleEndian.PutUint16(buf[idx*2:], Float32ToBF16(v))
	case FP8E4M3:
		buf[idx] = Float32ToFP8E4M3(v)
	case FP8E5M2:
		buf[idx] = Float32ToFP8E5M2(v)
	}
}

// Decode reads the idx-th element of buf in this format.
func (t Type) Decode(buf []byte, idx int) float32 {
	switch t {
	case FP32:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[idx*4:]))
	case FP16:
		return float16.FromBits(binary.LittleEndian.Uint16(buf[idx*2:])).Float32()
	case BF16:
		return BF16ToFloat32(binary.LittleEndian.Uint16(buf[idx*2:]))
	case FP8E4M3:
		return FP8E4M3ToFloat32(buf[idx])
	case FP8E5M2:
		return FP8E5M2ToFloat32(buf[idx])
	}
	return 0
}

// Float32ToBF16 truncates with round-to-nearest-even.
func Float32ToBF16(f float32) uint16 {
	u := math.Float32bits(f)
	if u&0x7FFFFFFF > 0x7F800000 {
		// quiet the NaN so rounding cannot turn it into an infinity
		return uint16(u>>16) | 0x0040
	}
	rnd := uint32(0x7FFF + ((u >> 16) & 1))
	return uint16((u + rnd) >> 16)
}

func BF16ToFloat32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}
