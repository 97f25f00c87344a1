// Package tensor provides dense float64 tensors laid out in row-major order.
//
// Image batches use the NCHW convention: [batch, channels, height, width].
// The element type is float64 so that buffers can be handed to gonum
// matrices without copying.
package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a dense row-major float64 tensor.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{2, 3, 32, 32})
//	t.Set4(0, 1, 4, 4, 0.5)
type Tensor struct {
	shape   Shape
	strides []int
	data    []float64
}

// New wraps data in a tensor of the given shape without copying.
//
// Panics if the element count does not match the shape.
func New(shape Shape, data []float64) *Tensor {
	if shape.NumElements() != len(data) {
		panic(fmt.Sprintf("tensor: shape %v requires %d elements, got %d", shape, shape.NumElements(), len(data)))
	}
	s := shape.Clone()
	return &Tensor{shape: s, strides: s.Strides(), data: data}
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	buf := make([]float64, len(data))
	copy(buf, data)
	return New(shape, buf), nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape) *Tensor {
	return New(shape, make([]float64, shape.NumElements()))
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := Zeros(shape)
	t.Fill(value)
	return t
}

// Randn creates a tensor with values drawn from N(0, 1) using rng.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the underlying buffer. Writes are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// NumElements returns the number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	buf := make([]float64, len(t.data))
	copy(buf, t.data)
	return New(t.shape, buf)
}

// Reshape returns a view with a new shape sharing the same buffer.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	return New(Shape(dims), t.data)
}

// Fill sets every element to value.
func (t *Tensor) Fill(value float64) {
	for i := range t.data {
		t.data[i] = value
	}
}

// At4 returns the element at [n, c, h, w] of a 4-D tensor.
func (t *Tensor) At4(n, c, h, w int) float64 {
	return t.data[n*t.strides[0]+c*t.strides[1]+h*t.strides[2]+w]
}

// Set4 writes the element at [n, c, h, w] of a 4-D tensor.
func (t *Tensor) Set4(n, c, h, w int, v float64) {
	t.data[n*t.strides[0]+c*t.strides[1]+h*t.strides[2]+w] = v
}

// Plane returns the [h*w] slice of channel c in batch item n of a 4-D tensor.
// The slice aliases the tensor buffer.
func (t *Tensor) Plane(n, c int) []float64 {
	if len(t.shape) != 4 {
		panic(fmt.Sprintf("tensor: Plane requires a 4D tensor, got %dD", len(t.shape)))
	}
	start := n*t.strides[0] + c*t.strides[1]
	return t.data[start : start+t.strides[1]]
}

// Item returns batch item n of a 4-D tensor as a [1, C, H, W] view.
func (t *Tensor) Item(n int) *Tensor {
	if len(t.shape) != 4 {
		panic(fmt.Sprintf("tensor: Item requires a 4D tensor, got %dD", len(t.shape)))
	}
	start := n * t.strides[0]
	return New(Shape{1, t.shape[1], t.shape[2], t.shape[3]}, t.data[start:start+t.strides[0]])
}

// AddInPlace adds other element-wise into t.
func (t *Tensor) AddInPlace(other *Tensor) {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("tensor: AddInPlace shape mismatch %v vs %v", t.shape, other.shape))
	}
	for i, v := range other.data {
		t.data[i] += v
	}
}

// ScaleInPlace multiplies every element by f.
func (t *Tensor) ScaleInPlace(f float64) {
	for i := range t.data {
		t.data[i] *= f
	}
}

// Stack concatenates equally shaped [1, C, H, W] (or [C, H, W]) tensors along
// a new leading batch axis.
func Stack(items []*Tensor) (*Tensor, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("stack: no tensors")
	}
	base := items[0].shape
	if len(base) == 4 && base[0] == 1 {
		base = base[1:]
	}
	if len(base) != 3 {
		return nil, fmt.Errorf("stack: expected [C,H,W] items, got %v", items[0].shape)
	}
	per := base.NumElements()
	out := make([]float64, 0, per*len(items))
	for i, it := range items {
		if it.NumElements() != per {
			return nil, fmt.Errorf("stack: item %d has shape %v, want %v", i, it.shape, base)
		}
		out = append(out, it.data...)
	}
	return New(Shape{len(items), base[0], base[1], base[2]}, out), nil
}
