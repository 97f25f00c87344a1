package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/graspnet/internal/parallel"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Each batch item is lowered with im2col into a
// [in_channels*kernel_h*kernel_w, out_h*out_w] matrix and multiplied by the
// weight matrix with gonum.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int
	useBias     bool

	weight *Parameter // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter // [out_channels] or nil

	training   bool
	inputShape tensor.Shape
	cols       []*mat.Dense // im2col buffers per batch item, kept for Backward
	outHW      [2]int

	par parallel.Config
}

// NewConv2D creates a new 2D convolutional layer with Xavier initialization.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (number of filters)
//   - kernelH, kernelW: Kernel dimensions
//   - stride: Stride for convolution (commonly 1 or 2)
//   - padding: Zero padding to apply to input
//   - useBias: Whether to include bias term
//   - rng: Source for weight initialization
func NewConv2D(
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	rng *rand.Rand,
) *Conv2D {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weight := Xavier(fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, rng)

	var bias *Parameter
	if useBias {
		bias = NewParameter("bias", tensor.Zeros(tensor.Shape{outChannels}))
	}

	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		useBias:     useBias,
		weight:      NewParameter("weight", weight),
		bias:        bias,
		par:         parallel.DefaultConfig(),
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D) Forward(input *tensor.Tensor) *tensor.Tensor {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", shape[1], c.inChannels))
	}

	n, h, w := shape[0], shape[2], shape[3]
	out := c.ComputeOutputSize(h, w)
	if out[0] <= 0 || out[1] <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions %v for input %v", out, shape))
	}
	hw := out[0] * out[1]
	output := tensor.Zeros(tensor.Shape{n, c.outChannels, out[0], out[1]})

	weights := c.weightMatrix()
	cols := make([]*mat.Dense, n)
	parallel.For(n, func(i int) {
		col := c.im2col(input.Item(i).Data(), h, w, out)
		dst := mat.NewDense(c.outChannels, hw, output.Item(i).Data())
		dst.Mul(weights, col)
		if c.useBias {
			b := c.bias.Tensor().Data()
			for oc := 0; oc < c.outChannels; oc++ {
				row := dst.RawRowView(oc)
				for j := range row {
					row[j] += b[oc]
				}
			}
		}
		cols[i] = col
	}, c.par)

	if c.training {
		c.inputShape = shape.Clone()
		c.cols = cols
		c.outHW = out
	}
	return output
}

// Backward accumulates weight and bias gradients and returns dL/dInput.
func (c *Conv2D) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if c.cols == nil {
		panic(missingCache("conv2d"))
	}
	n, h, w := c.inputShape[0], c.inputShape[2], c.inputShape[3]
	hw := c.outHW[0] * c.outHW[1]
	k := c.inChannels * c.kernelSize[0] * c.kernelSize[1]

	gradInput := tensor.Zeros(c.inputShape)
	weights := c.weightMatrix()
	weightGrads := make([]*mat.Dense, n)
	biasGrads := make([][]float64, n)

	parallel.For(n, func(i int) {
		g := mat.NewDense(c.outChannels, hw, gradOutput.Item(i).Data())

		dw := mat.NewDense(c.outChannels, k, nil)
		dw.Mul(g, c.cols[i].T())
		weightGrads[i] = dw

		if c.useBias {
			db := make([]float64, c.outChannels)
			for oc := range db {
				for _, v := range g.RawRowView(oc) {
					db[oc] += v
				}
			}
			biasGrads[i] = db
		}

		dcol := mat.NewDense(k, hw, nil)
		dcol.Mul(weights.T(), g)
		c.col2im(dcol, gradInput.Item(i).Data(), h, w)
	}, c.par)

	for i := 0; i < n; i++ {
		c.weight.AccumulateGrad(weightGrads[i].RawMatrix().Data)
		if c.useBias {
			c.bias.AccumulateGrad(biasGrads[i])
		}
	}
	c.cols = nil
	return gradInput
}

func (c *Conv2D) weightMatrix() *mat.Dense {
	k := c.inChannels * c.kernelSize[0] * c.kernelSize[1]
	return mat.NewDense(c.outChannels, k, c.weight.Tensor().Data())
}

// im2col lowers one [C, H, W] image into [C*KH*KW, outH*outW].
func (c *Conv2D) im2col(src []float64, h, w int, out [2]int) *mat.Dense {
	kh, kw := c.kernelSize[0], c.kernelSize[1]
	hw := out[0] * out[1]
	buf := make([]float64, c.inChannels*kh*kw*hw)
	for ch := 0; ch < c.inChannels; ch++ {
		plane := src[ch*h*w : (ch+1)*h*w]
		for ky := 0; ky < kh; ky++ {
			for kx := 0; kx < kw; kx++ {
				row := buf[((ch*kh+ky)*kw+kx)*hw:]
				for oy := 0; oy < out[0]; oy++ {
					iy := oy*c.stride - c.padding + ky
					if iy < 0 || iy >= h {
						continue
					}
					for ox := 0; ox < out[1]; ox++ {
						ix := ox*c.stride - c.padding + kx
						if ix < 0 || ix >= w {
							continue
						}
						row[oy*out[1]+ox] = plane[iy*w+ix]
					}
				}
			}
		}
	}
	return mat.NewDense(c.inChannels*kh*kw, hw, buf)
}

// col2im scatters a column gradient back onto one [C, H, W] image, summing overlaps.
func (c *Conv2D) col2im(cols *mat.Dense, dst []float64, h, w int) {
	kh, kw := c.kernelSize[0], c.kernelSize[1]
	out := c.outHW
	for ch := 0; ch < c.inChannels; ch++ {
		plane := dst[ch*h*w : (ch+1)*h*w]
		for ky := 0; ky < kh; ky++ {
			for kx := 0; kx < kw; kx++ {
				row := cols.RawRowView((ch*kh+ky)*kw + kx)
				for oy := 0; oy < out[0]; oy++ {
					iy := oy*c.stride - c.padding + ky
					if iy < 0 || iy >= h {
						continue
					}
					for ox := 0; ox < out[1]; ox++ {
						ix := ox*c.stride - c.padding + kx
						if ix < 0 || ix >= w {
							continue
						}
						plane[iy*w+ix] += row[oy*out[1]+ox]
					}
				}
			}
		}
	}
}

// Parameters returns all trainable parameters.
func (c *Conv2D) Parameters() []*Parameter {
	if c.useBias {
		return []*Parameter{c.weight, c.bias}
	}
	return []*Parameter{c.weight}
}

// SetTraining toggles caching of the im2col buffers.
func (c *Conv2D) SetTraining(training bool) {
	c.training = training
	if !training {
		c.cols = nil
	}
}

// Weight returns the weight parameter.
func (c *Conv2D) Weight() *Parameter {
	return c.weight
}

// Bias returns the bias parameter, or nil when the layer has none.
func (c *Conv2D) Bias() *Parameter {
	return c.bias
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding, c.useBias)
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv2D) InChannels() int {
	return c.inChannels
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (c *Conv2D) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}
