package model

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/born-ml/graspnet/internal/nn"
)

// BackboneSpec describes how to build a feature extractor. The built
// module must map [N, in, H, W] to [N, features, H, W] for H and W
// divisible by stride.
type BackboneSpec struct {
	Build    func(in int, rng *rand.Rand) *nn.Sequential
	Features int
	Stride   int
}

var (
	registryMu sync.RWMutex
	registry   = map[string]BackboneSpec{}
)

// RegisterBackbone adds a backbone under name, replacing any existing one.
func RegisterBackbone(name string, spec BackboneSpec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = spec
}

// Backbones lists the registered names in order.
func Backbones() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return backbonesLocked()
}

func lookup(name string) (BackboneSpec, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	spec, ok := registry[name]
	if !ok {
		return BackboneSpec{}, fmt.Errorf("unknown backbone %q (available: %s)", name, strings.Join(backbonesLocked(), ", "))
	}
	return spec, nil
}

func backbonesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func conv(in, out, k int, rng *rand.Rand) *nn.Conv2D {
	return nn.NewConv2D(in, out, k, k, 1, k/2, true, rng)
}

func init() {
	// Small encoder/decoder: two poolings down, one 4× upsample back.
	RegisterBackbone("ggcnn", BackboneSpec{
		Build: func(in int, rng *rand.Rand) *nn.Sequential {
			return nn.NewSequential(
				conv(in, 32, 5, rng), nn.NewReLU(),
				nn.NewMaxPool2D(2, 2),
				conv(32, 16, 3, rng), nn.NewReLU(),
				nn.NewMaxPool2D(2, 2),
				conv(16, 16, 3, rng), nn.NewReLU(),
				nn.NewUpsample2D(4),
			)
		},
		Features: 16,
		Stride:   4,
	})

	// Deeper variant with paired convolutions and a gradual decoder.
	RegisterBackbone("ggcnn2", BackboneSpec{
		Build: func(in int, rng *rand.Rand) *nn.Sequential {
			return nn.NewSequential(
				conv(in, 16, 3, rng), nn.NewReLU(),
				conv(16, 16, 3, rng), nn.NewReLU(),
				nn.NewMaxPool2D(2, 2),
				conv(16, 32, 3, rng), nn.NewReLU(),
				nn.NewMaxPool2D(2, 2),
				conv(32, 32, 3, rng), nn.NewReLU(),
				nn.NewUpsample2D(2),
				conv(32, 16, 3, rng), nn.NewReLU(),
				nn.NewUpsample2D(2),
				conv(16, 16, 3, rng), nn.NewReLU(),
			)
		},
		Features: 16,
		Stride:   4,
	})
}
