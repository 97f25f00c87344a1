package nn

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/tensor"
)

// MSELoss computes Mean Squared Error loss.
//
// Loss = mean((predictions - targets)²)
//
// Example:
//
//	loss, grad := nn.MSELoss(pred, target)
//	model.Backward(grad)
func MSELoss(predictions, targets *tensor.Tensor) (float64, *tensor.Tensor) {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("MSELoss: predictions %v and targets %v must have the same shape",
			predictions.Shape(), targets.Shape()))
	}
	p, t := predictions.Data(), targets.Data()
	n := float64(len(p))
	grad := tensor.Zeros(predictions.Shape())
	g := grad.Data()
	var sum float64
	for i := range p {
		d := p[i] - t[i]
		sum += d * d
		g[i] = 2 * d / n
	}
	return sum / n, grad
}
