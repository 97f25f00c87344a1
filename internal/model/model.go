// Package model defines the grasp prediction networks: a swappable
// convolutional backbone followed by four 1-channel heads that predict
// grasp quality, cos 2θ, sin 2θ and opening width for every pixel.
package model

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Output heads in target order.
const (
	HeadPos = iota
	HeadCos
	HeadSin
	HeadWidth
	NumHeads
)

var (
	headNames = [NumHeads]string{"pos_output", "cos_output", "sin_output", "width_output"}
	lossNames = [NumHeads]string{"p_loss", "cos_loss", "sin_loss", "width_loss"}
)

// LossNames returns the keys of LossResult.Losses in head order.
func LossNames() []string {
	return lossNames[:]
}

// Prediction holds the raw head outputs, each [N, 1, H, W].
type Prediction struct {
	Pos, Cos, Sin, Width *tensor.Tensor
}

// Item returns the prediction of batch item i as [1, 1, H, W] views.
func (p Prediction) Item(i int) Prediction {
	return Prediction{Pos: p.Pos.Item(i), Cos: p.Cos.Item(i), Sin: p.Sin.Item(i), Width: p.Width.Item(i)}
}

func (p Prediction) heads() [NumHeads]*tensor.Tensor {
	return [NumHeads]*tensor.Tensor{p.Pos, p.Cos, p.Sin, p.Width}
}

// LossWeights scale the per-head MSE terms.
type LossWeights struct {
	Pos   float64 `yaml:"pos"`
	Cos   float64 `yaml:"cos"`
	Sin   float64 `yaml:"sin"`
	Width float64 `yaml:"width"`
}

// DefaultLossWeights weights every head equally.
func DefaultLossWeights() LossWeights {
	return LossWeights{Pos: 1, Cos: 1, Sin: 1, Width: 1}
}

func (w LossWeights) values() [NumHeads]float64 {
	return [NumHeads]float64{w.Pos, w.Cos, w.Sin, w.Width}
}

// LossResult is the output of ComputeLoss.
type LossResult struct {
	Loss   float64            // weighted sum of Losses
	Losses map[string]float64 // p_loss, cos_loss, sin_loss, width_loss
	Pred   Prediction

	grads [NumHeads]*tensor.Tensor
}

// Network predicts grasp maps from NCHW image batches.
type Network interface {
	Forward(x *tensor.Tensor) Prediction
	ComputeLoss(x *tensor.Tensor, y [NumHeads]*tensor.Tensor) *LossResult
	Backward(res *LossResult)
	SetTraining(training bool)
	Parameters() []*nn.Parameter
	StateDict() map[string]*tensor.Tensor
	LoadStateDict(dict map[string]*tensor.Tensor) error
	Summary(inputSize int) string
}

// Config selects and sizes a network.
type Config struct {
	Backbone      string
	InputChannels int
	Weights       LossWeights
	Seed          int64
}

// GraspNet is a backbone with four convolutional heads.
type GraspNet struct {
	cfg      Config
	backbone *nn.Sequential
	heads    [NumHeads]*nn.Conv2D
	features int
	stride   int
	training bool
}

// New builds the network described by cfg.
func New(cfg Config) (*GraspNet, error) {
	spec, err := lookup(cfg.Backbone)
	if err != nil {
		return nil, err
	}
	if cfg.InputChannels <= 0 {
		return nil, fmt.Errorf("input channels must be positive, got %d", cfg.InputChannels)
	}
	if cfg.Weights == (LossWeights{}) {
		cfg.Weights = DefaultLossWeights()
	}

	//nolint:gosec // G404: weight initialisation
	rng := rand.New(rand.NewSource(cfg.Seed))
	backbone := spec.Build(cfg.InputChannels, rng)
	nn.Prefix("backbone", backbone.Parameters())

	net := &GraspNet{cfg: cfg, backbone: backbone, features: spec.Features, stride: spec.Stride}
	for i := range net.heads {
		net.heads[i] = nn.NewConv2D(spec.Features, 1, 3, 3, 1, 1, true, rng)
		nn.Prefix(headNames[i], net.heads[i].Parameters())
	}
	return net, nil
}

// Config returns the configuration the network was built with.
func (g *GraspNet) Config() Config { return g.cfg }

// Stride returns the factor input sides must be divisible by.
func (g *GraspNet) Stride() int { return g.stride }

// CheckInputSize reports whether size×size inputs are supported.
func (g *GraspNet) CheckInputSize(size int) error {
	if size <= 0 || size%g.stride != 0 {
		return fmt.Errorf("backbone %s needs input sizes divisible by %d, got %d", g.cfg.Backbone, g.stride, size)
	}
	return nil
}

// Forward runs the backbone and every head.
func (g *GraspNet) Forward(x *tensor.Tensor) Prediction {
	s := x.Shape()
	if len(s) == 4 && (s[2]%g.stride != 0 || s[3]%g.stride != 0) {
		panic(fmt.Sprintf("model: input %v is not divisible by backbone stride %d", s, g.stride))
	}
	f := g.backbone.Forward(x)
	return Prediction{
		Pos:   g.heads[HeadPos].Forward(f),
		Cos:   g.heads[HeadCos].Forward(f),
		Sin:   g.heads[HeadSin].Forward(f),
		Width: g.heads[HeadWidth].Forward(f),
	}
}

// ComputeLoss runs Forward and scores it against the targets y.
func (g *GraspNet) ComputeLoss(x *tensor.Tensor, y [NumHeads]*tensor.Tensor) *LossResult {
	pred := g.Forward(x)
	res := &LossResult{Losses: make(map[string]float64, NumHeads), Pred: pred}
	weights := g.cfg.Weights.values()
	for i, p := range pred.heads() {
		l, grad := nn.MSELoss(p, y[i])
		res.Losses[lossNames[i]] = l
		res.Loss += weights[i] * l
		grad.ScaleInPlace(weights[i])
		res.grads[i] = grad
	}
	return res
}

// Backward back-propagates the loss of res, which must come from a
// training-mode ComputeLoss on this network.
func (g *GraspNet) Backward(res *LossResult) {
	var gradFeatures *tensor.Tensor
	for i, head := range g.heads {
		gi := head.Backward(res.grads[i])
		if gradFeatures == nil {
			gradFeatures = gi
		} else {
			gradFeatures.AddInPlace(gi)
		}
	}
	g.backbone.Backward(gradFeatures)
}

// SetTraining switches between training (activations cached for Backward)
// and inference mode.
func (g *GraspNet) SetTraining(training bool) {
	g.training = training
	g.backbone.SetTraining(training)
	for _, h := range g.heads {
		h.SetTraining(training)
	}
}

// Training reports the current mode.
func (g *GraspNet) Training() bool { return g.training }

// Parameters returns backbone parameters followed by head parameters.
func (g *GraspNet) Parameters() []*nn.Parameter {
	params := g.backbone.Parameters()
	for _, h := range g.heads {
		params = append(params, h.Parameters()...)
	}
	return params
}

// StateDict shares the parameter tensors keyed by name.
func (g *GraspNet) StateDict() map[string]*tensor.Tensor {
	return nn.StateDict(g.Parameters())
}

// LoadStateDict copies weights from dict.
func (g *GraspNet) LoadStateDict(dict map[string]*tensor.Tensor) error {
	return nn.LoadStateDict(g.Parameters(), dict)
}

func (g *GraspNet) String() string {
	return fmt.Sprintf("GraspNet(backbone=%s, in=%d, features=%d)", g.cfg.Backbone, g.cfg.InputChannels, g.features)
}
