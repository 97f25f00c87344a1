package tensor

import (
	"fmt"
	"slices"
	"strings"
)

// Shape lists a tensor's dimensions, outermost first. Image batches are
// [N, C, H, W].
type Shape []int

// NumElements is the product of the dimensions. An empty shape is a scalar.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports the first non-positive dimension.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("dimension %d of %v is %d, want > 0", i, s, s[i])
	}
	return nil
}

func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

func (s Shape) Clone() Shape { return append(make(Shape, 0, len(s)), s...) }

// Strides returns row-major element strides: the last dimension is
// contiguous and each outer stride spans everything inside it.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

func (s Shape) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, d := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, d)
	}
	b.WriteByte(']')
	return b.String()
}
