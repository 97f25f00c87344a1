// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package model_test

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graspnet/model"
	"github.com/born-ml/graspnet/nn"
	"github.com/born-ml/graspnet/optim"
	"github.com/born-ml/graspnet/tensor"
)

func TestPredict(t *testing.T) {
	net, err := model.New(model.Config{Backbone: "ggcnn", InputChannels: 1, Weights: model.DefaultLossWeights()})
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{1, 1, 32, 32}, rand.New(rand.NewSource(1)))
	m, err := model.PredictMaps(net, x)
	require.NoError(t, err)
	assert.Equal(t, 32, m.Rows)
	assert.Len(t, m.Quality, 32*32)

	opts := model.DefaultDetectOptions()
	opts.MinDistance, opts.Threshold, opts.ExcludeBorder = 2, -1, false
	grasps, err := model.Predict(net, x, opts)
	require.NoError(t, err)
	assert.Len(t, grasps, 1)

	_, err = model.Predict(net, tensor.Zeros(tensor.Shape{2, 1, 32, 32}), opts)
	require.Error(t, err, "batch of two")
	_, err = model.Predict(net, tensor.Zeros(tensor.Shape{1, 3, 32, 32}), opts)
	require.Error(t, err, "channel mismatch")
	_, err = model.Predict(net, tensor.Zeros(tensor.Shape{1, 1, 30, 32}), opts)
	require.Error(t, err, "not divisible by the stride")
}

func TestCustomBackboneSaveLoad(t *testing.T) {
	model.RegisterBackbone("tiny", model.BackboneSpec{
		Build: func(in int, rng *rand.Rand) *nn.Sequential {
			return nn.NewSequential(
				nn.NewConv2D(in, 4, 3, 3, 1, 1, true, rng),
				nn.NewReLU(),
				nn.NewMaxPool2D(2, 2),
				nn.NewUpsample2D(2),
			)
		},
		Features: 4,
		Stride:   2,
	})
	assert.Contains(t, model.Backbones(), "tiny")

	net, err := model.New(model.Config{Backbone: "tiny", InputChannels: 2, Weights: model.DefaultLossWeights(), Seed: 3})
	require.NoError(t, err)
	assert.Positive(t, nn.CountParameters(net.Parameters()))
	opt := optim.NewAdam(net.Parameters(), optim.AdamConfig{})
	assert.InDelta(t, 0.001, opt.GetLR(), 1e-12)

	path := filepath.Join(t.TempDir(), "tiny.born")
	require.NoError(t, model.SaveStateDict(path, net))
	cp, err := model.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", cp.Net.Config().Backbone)
	assert.Equal(t, 2, cp.Net.Config().InputChannels)
}
