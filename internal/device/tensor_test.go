package device

import (
	"testing"

	"github.com/23skdu/longbow-bodkin/internal/format"
)

func newTestTensor(t *testing.T, ft format.Type, elems int) Tensor {
	t.Helper()
	ten, err := NewTensor(make([]byte, elems*ft.Size()), ft, elems)
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	return ten
}

func TestNewTensorValidatesSize(t *testing.T) {
	if _, err := NewTensor(make([]byte, 16), format.FP32, 4); err != nil {
		t.Errorf("exact buffer rejected: %v", err)
	}
	if _, err := NewTensor(make([]byte, 15), format.FP32, 4); err == nil {
		t.Error("short buffer accepted")
	}
	if _, err := NewTensor(make([]byte, 17), format.FP32, 4); err == nil {
		t.Error("oversized buffer accepted")
	}
}

func TestTensorGetSet(t *testing.T) {
	ten := newTestTensor(t, format.FP16, 8)
	ten.Set(3, 1.5)
	if got := ten.Get(3); got != 1.5 {
		t.Errorf("Get(3) = %v, want 1.5", got)
	}
	if got := ten.Get(0); got != 0 {
		t.Errorf("Get(0) = %v, want 0", got)
	}
}

func TestTensorID(t *testing.T) {
	a := newTestTensor(t, format.FP32, 4)
	b := newTestTensor(t, format.FP32, 4)
	if a.ID() == 0 || b.ID() == 0 {
		t.Error("non-empty tensors must have nonzero identity")
	}
	if a.ID() == b.ID() {
		t.Error("distinct buffers share an identity")
	}
	view := Tensor{Data: a.Data, Format: format.FP32, Elems: 4}
	if view.ID() != a.ID() {
		t.Error("views over the same buffer must share an identity")
	}
	empty := Tensor{Format: format.FP32}
	if empty.ID() != 0 {
		t.Error("empty tensor identity must be 0")
	}
}

func TestTensorByteSize(t *testing.T) {
	ten := newTestTensor(t, format.FP8E4M3, 64)
	if ten.ByteSize() != 64 {
		t.Errorf("ByteSize = %d, want 64", ten.ByteSize())
	}
}
