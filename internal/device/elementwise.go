package device

import "math"

// Elementwise selects the per-element transform fused into a copy or
// transpose pass. The set is closed and dispatch happens once per launch;
// the kernel inner loops call a plain function value.
type Elementwise uint8

const (
	Identity Elementwise = iota
	GELUForward
)

func (e Elementwise) String() string {
	switch e {
	case Identity:
		return "identity"
	case GELUForward:
		return "gelu_forward"
	default:
		return "unknown"
	}
}

type elementwiseFunc func(float32) float32

func nothingElementwise(x float32) float32 {
	return x
}

// sqrt(2/pi) for the tanh GELU approximation
const geluScale = 0.7978845608028654

func geluForwardElementwise(x float32) float32 {
	cube := 0.044715 * x * x * x
	tanhArg := float32(geluScale) * (x + cube)
	tanhOut := float32(math.Tanh(float64(tanhArg)))

	halfX := 0.5 * x
	return halfX*tanhOut + halfX
}

// fn resolves the transform before the launch so the element loop pays no
// dispatch cost.
func (e Elementwise) fn() elementwiseFunc {
	switch e {
	case GELUForward:
		return geluForwardElementwise
	default:
		return nothingElementwise
	}
}
