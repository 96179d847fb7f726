package device

import (
	"fmt"
	"unsafe"

	"github.com/23skdu/longbow-bodkin/internal/format"
)

// Tensor is a non-owning view over a contiguous buffer of one element
// format. Scale, Descale and Absmax are optional per-tensor slots: scale
// and descale are read once per kernel launch and broadcast; Absmax is the
// destination of the fused absolute-maximum reduction and grows
// monotonically until the caller resets it.
type Tensor struct {
	Data   []byte
	Format format.Type
	Elems  int

	Scale   *float32
	Descale *float32
	Absmax  *uint32
}

// NewTensor wraps data as a view of elems elements of format ft. The
// buffer must hold exactly elems elements.
func NewTensor(data []byte, ft format.Type, elems int) (Tensor, error) {
	if len(data) != elems*ft.Size() {
		return Tensor{}, fmt.Errorf("buffer is %d bytes, %d %s elements need %d",
			len(data), elems, ft, elems*ft.Size())
	}
	return Tensor{Data: data, Format: ft, Elems: elems}, nil
}

// ByteSize returns the size of the viewed region in bytes.
func (t *Tensor) ByteSize() int {
	return t.Elems * t.Format.Size()
}

// ID returns the identity of the backing buffer, used as an opaque cache
// key. Empty tensors have identity 0.
func (t *Tensor) ID() uintptr {
	if len(t.Data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&t.Data[0]))
}

// Get decodes element i to float32.
func (t *Tensor) Get(i int) float32 {
	return t.Format.Decode(t.Data, i)
}

// Set encodes v as element i.
func (t *Tensor) Set(i int, v float32) {
	t.Format.Encode(t.Data, i, v)
}

// Float32s decodes the whole tensor. Debug/test helper, not a kernel path.
func (t *Tensor) Float32s() []float32 {
	out := make([]float32, t.Elems)
	for i := range out {
		out[i] = t.Get(i)
	}
	return out
}
