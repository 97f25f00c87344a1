package optim

import (
	"math"

	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)  // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	params []*nn.Parameter
	lr     float64
	beta1  float64
	beta2  float64
	eps    float64
	t      int     // Timestep for bias correction
	m      buffers // First moment estimates
	v      buffers // Second moment estimates
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer, filling zero config fields with the
// defaults LR=0.001, Betas=(0.9, 0.999), Eps=1e-8.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	return &Adam{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(buffers),
		v:      make(buffers),
	}
}

// Step performs a single optimization step.
func (a *Adam) Step() {
	a.t++

	biasCorrection1 := 1.0 - math.Pow(a.beta1, float64(a.t))
	biasCorrection2 := 1.0 - math.Pow(a.beta2, float64(a.t))

	for _, param := range a.params {
		grad := param.Grad()
		if grad == nil {
			continue
		}

		g := grad.Data()
		m := a.m.get(param).Data()
		v := a.v.get(param).Data()
		w := param.Tensor().Data()

		for i := range w {
			m[i] = a.beta1*m[i] + (1.0-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1.0-a.beta2)*g[i]*g[i]
			mHat := m[i] / biasCorrection1
			vHat := v[i] / biasCorrection2
			w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam) ZeroGrad() {
	zeroGrad(a.params)
}

// GetLR returns the current learning rate.
func (a *Adam) GetLR() float64 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam) SetLR(lr float64) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam) GetTimestep() int {
	return a.t
}

// Name returns "Adam".
func (a *Adam) Name() string {
	return "Adam"
}

// Config returns the hyperparameters for checkpoint metadata.
func (a *Adam) Config() map[string]any {
	return map[string]any{
		"lr":    a.lr,
		"beta1": a.beta1,
		"beta2": a.beta2,
		"eps":   a.eps,
	}
}

// StateDict exports the moment buffers ("m.<param>", "v.<param>") and the
// timestep ("step").
func (a *Adam) StateDict() map[string]*tensor.Tensor {
	state := make(map[string]*tensor.Tensor)
	a.m.export("m", a.params, state)
	a.v.export("v", a.params, state)
	state["step"] = tensor.New(tensor.Shape{1}, []float64{float64(a.t)})
	return state
}

// LoadStateDict restores moment buffers and the timestep.
func (a *Adam) LoadStateDict(state map[string]*tensor.Tensor) error {
	if err := a.m.restore("m", a.params, state); err != nil {
		return err
	}
	if err := a.v.restore("v", a.params, state); err != nil {
		return err
	}
	if step, ok := state["step"]; ok && step.NumElements() == 1 {
		a.t = int(step.Data()[0])
	}
	return nil
}
