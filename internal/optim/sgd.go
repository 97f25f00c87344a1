package optim

import (
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	params     []*nn.Parameter
	lr         float64
	momentum   float64
	velocities buffers
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(buffers),
	}
}

// Step performs a single optimization step.
func (s *SGD) Step() {
	for _, param := range s.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}
		g := grad.Data()
		w := param.Tensor().Data()

		if s.momentum == 0 {
			for i := range w {
				w[i] -= s.lr * g[i]
			}
			continue
		}

		vel := s.velocities.get(param).Data()
		for i := range w {
			vel[i] = s.momentum*vel[i] + g[i]
			w[i] -= s.lr * vel[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float64 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD) SetLR(lr float64) {
	s.lr = lr
}

// Name returns "SGD".
func (s *SGD) Name() string {
	return "SGD"
}

// StateDict exports velocity buffers as "velocity.<param>".
func (s *SGD) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	s.velocities.export("velocity", s.params, state)
	return state
}

// LoadStateDict restores velocity buffers.
func (s *SGD) LoadStateDict(state map[string]*tensor.Tensor) error {
	return s.velocities.restore("velocity", s.params, state)
}
