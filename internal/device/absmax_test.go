package device

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/23skdu/longbow-bodkin/internal/format"
)

func TestAbsmaxBitOrdering(t *testing.T) {
	// For non-negative floats, bigger bit pattern means bigger value.
	var local uint32
	for _, v := range []float32{0, 1e-30, 0.5, 1, 3.5, 1e10} {
		updateLocalAbsmax(&local, v)
		if got := math.Float32frombits(local); got != v {
			t.Fatalf("running max = %v after feeding %v", got, v)
		}
	}
	// negative values contribute their magnitude
	updateLocalAbsmax(&local, -1e12)
	if got := math.Float32frombits(local); got != 1e12 {
		t.Errorf("running max = %v, want 1e12", got)
	}
}

func TestGlobalAbsmaxMonotonic(t *testing.T) {
	var slot uint32
	updateGlobalAbsmax(&slot, math.Float32bits(4))
	updateGlobalAbsmax(&slot, math.Float32bits(2))
	if got := AbsmaxValue(&slot); got != 4 {
		t.Errorf("slot = %v, want 4 (must not shrink)", got)
	}
	updateGlobalAbsmax(&slot, math.Float32bits(8))
	if got := AbsmaxValue(&slot); got != 8 {
		t.Errorf("slot = %v, want 8", got)
	}
	ResetAbsmax(&slot)
	if got := AbsmaxValue(&slot); got != 0 {
		t.Errorf("slot = %v after reset, want 0", got)
	}
}

func TestUpdateAbsmaxKernel(t *testing.T) {
	sizes := []int{8192, 16384, 512}
	rng := rand.New(rand.NewSource(20))
	for _, n := range sizes {
		ten := newTestTensor(t, format.FP32, n)
		fillRandom(ten, rng, 100)
		want := float32(0)
		for i := 0; i < n; i++ {
			if a := float32(math.Abs(float64(ten.Get(i)))); a > want {
				want = a
			}
		}

		var slot uint32
		ten.Absmax = &slot
		runSync(t, func(s *Stream) error {
			return UpdateAbsmax(ten, LaunchOptions{Stream: s})
		})
		if got := AbsmaxValue(&slot); got != want {
			t.Errorf("n=%d: absmax = %v, want %v", n, got, want)
		}
	}
}

func TestUpdateAbsmaxGeometryInvariant(t *testing.T) {
	const n = 32768
	rng := rand.New(rand.NewSource(21))
	ten := newTestTensor(t, format.FP16, n)
	fillRandom(ten, rng, 50)

	var want float32
	for i, bs := range []int{512, 256, 64, 32} {
		var slot uint32
		ten.Absmax = &slot
		runSync(t, func(s *Stream) error {
			return UpdateAbsmax(ten, LaunchOptions{Stream: s, BlockSize: bs})
		})
		got := AbsmaxValue(&slot)
		if i == 0 {
			want = got
			continue
		}
		if got != want {
			t.Errorf("block size %d: absmax %v, want %v", bs, got, want)
		}
	}
}

func TestUpdateAbsmaxEdgeCases(t *testing.T) {
	t.Run("empty tensor is a no-op", func(t *testing.T) {
		var slot uint32 = math.Float32bits(7)
		ten := Tensor{Format: format.FP32, Absmax: &slot}
		if err := UpdateAbsmax(ten, LaunchOptions{}); err != nil {
			t.Fatal(err)
		}
		if AbsmaxValue(&slot) != 7 {
			t.Error("empty pass must leave the slot at its previous value")
		}
	})

	t.Run("nil slot is a no-op", func(t *testing.T) {
		ten := newTestTensor(t, format.FP32, 512)
		if err := UpdateAbsmax(ten, LaunchOptions{}); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("indivisible element count", func(t *testing.T) {
		ten := newTestTensor(t, format.FP32, 256)
		var slot uint32
		ten.Absmax = &slot
		if err := UpdateAbsmax(ten, LaunchOptions{}); !errors.Is(err, ErrGeometry) {
			t.Errorf("expected ErrGeometry, got %v", err)
		}
	})
}

func TestUpdateAbsmaxIterationsOverride(t *testing.T) {
	// 256 fp32 elements divide no block size at the default 4 vectors per
	// thread, but fit 32 threads x 2 iterations x 4 lanes exactly.
	ten := newTestTensor(t, format.FP32, 256)
	ten.Set(99, -6)
	var slot uint32
	ten.Absmax = &slot

	if err := UpdateAbsmax(ten, LaunchOptions{}); !errors.Is(err, ErrGeometry) {
		t.Fatalf("default iterations: expected ErrGeometry, got %v", err)
	}

	runSync(t, func(s *Stream) error {
		return UpdateAbsmax(ten, LaunchOptions{Stream: s, AbsmaxIterations: 2})
	})
	if got := AbsmaxValue(&slot); got != 6 {
		t.Errorf("absmax = %v, want 6", got)
	}
}

func TestUpdateAbsmaxRawValues(t *testing.T) {
	// The standalone pass reduces stored values as-is: scale slots on the
	// tensor do not participate.
	const n = 512
	ten := newTestTensor(t, format.FP32, n)
	descale := float32(100)
	ten.Descale = &descale
	ten.Set(5, -3)

	var slot uint32
	ten.Absmax = &slot
	runSync(t, func(s *Stream) error {
		return UpdateAbsmax(ten, LaunchOptions{Stream: s})
	})
	if got := AbsmaxValue(&slot); got != 3 {
		t.Errorf("absmax = %v, want 3 (descale must not apply)", got)
	}
}
