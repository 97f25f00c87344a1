package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = (rng.Float64()*2.0 - 1.0) * bound
	}
	return t
}
