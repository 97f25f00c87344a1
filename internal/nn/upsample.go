package nn

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Upsample2D repeats every pixel scale×scale times (nearest neighbour).
type Upsample2D struct {
	scale      int
	training   bool
	inputShape tensor.Shape
}

// NewUpsample2D creates a nearest-neighbour upsampling layer.
func NewUpsample2D(scale int) *Upsample2D {
	if scale <= 0 {
		panic(fmt.Sprintf("upsample2d: invalid scale %d", scale))
	}
	return &Upsample2D{scale: scale}
}

// Forward upsamples [N, C, H, W] to [N, C, H*scale, W*scale].
func (u *Upsample2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("upsample2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	h, w := shape[2], shape[3]
	oh, ow := h*u.scale, w*u.scale
	out := tensor.Zeros(tensor.Shape{shape[0], shape[1], oh, ow})
	src, dst := input.Data(), out.Data()
	for plane := 0; plane < shape[0]*shape[1]; plane++ {
		for y := 0; y < oh; y++ {
			srow := plane*h*w + (y/u.scale)*w
			drow := plane*oh*ow + y*ow
			for x := 0; x < ow; x++ {
				dst[drow+x] = src[srow+x/u.scale]
			}
		}
	}
	if u.training {
		u.inputShape = shape.Clone()
	}
	return out
}

// Backward sums the gradients of every replicated pixel.
func (u *Upsample2D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if u.inputShape == nil {
		panic(missingCache("upsample2d"))
	}
	h, w := u.inputShape[2], u.inputShape[3]
	oh, ow := h*u.scale, w*u.scale
	grad := tensor.Zeros(u.inputShape)
	src, dst := gradOutput.Data(), grad.Data()
	for plane := 0; plane < u.inputShape[0]*u.inputShape[1]; plane++ {
		for y := 0; y < oh; y++ {
			srow := plane*oh*ow + y*ow
			drow := plane*h*w + (y/u.scale)*w
			for x := 0; x < ow; x++ {
				dst[drow+x/u.scale] += src[srow+x]
			}
		}
	}
	u.inputShape = nil
	return grad
}

// Parameters returns nil.
func (u *Upsample2D) Parameters() []*Parameter {
	return nil
}

// SetTraining toggles caching of the input shape.
func (u *Upsample2D) SetTraining(training bool) {
	u.training = training
}

// String returns a string representation of the layer.
func (u *Upsample2D) String() string {
	return fmt.Sprintf("Upsample2D(scale=%d)", u.scale)
}
