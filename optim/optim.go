// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used to train graspnet networks.
package optim

import (
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/optim"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer = optim.Optimizer

// SGD (Stochastic Gradient Descent)

// SGD is stochastic gradient descent with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD(net.Parameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9})
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// Adam (Adaptive Moment Estimation)

// Adam is the Adam optimizer with bias correction.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer. Zero config fields take the
// defaults LR=0.001, Betas=(0.9, 0.999), Eps=1e-8.
//
// Example:
//
//	optimizer := optim.NewAdam(net.Parameters(), optim.AdamConfig{LR: 0.001})
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}
