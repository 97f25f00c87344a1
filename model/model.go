// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model builds, saves and loads grasp prediction networks and runs
// them on single images.
//
// Example:
//
//	cp, err := model.Load("epoch_12_iou_0.81_statedict.born")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	grasps, err := model.Predict(cp.Net, x, model.DefaultDetectOptions())
package model

import (
	"fmt"

	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/tensor"
)

// GraspNet is a backbone followed by quality, cos 2θ, sin 2θ and width heads.
type GraspNet = model.GraspNet

// Config selects and sizes a network.
type Config = model.Config

// LossWeights scale the per-head losses.
type LossWeights = model.LossWeights

// BackboneSpec describes a registered backbone.
type BackboneSpec = model.BackboneSpec

// Checkpoint is a loaded model file.
type Checkpoint = model.Checkpoint

// Maps are the post-processed quality, angle and width maps.
type Maps = postprocess.Maps

// DetectOptions control grasp extraction from Maps.
type DetectOptions = postprocess.DetectOptions

// New builds the network described by cfg.
func New(cfg Config) (*GraspNet, error) { return model.New(cfg) }

// Backbones lists the registered backbone names.
func Backbones() []string { return model.Backbones() }

// RegisterBackbone adds a backbone under name, replacing any previous one.
func RegisterBackbone(name string, spec BackboneSpec) { model.RegisterBackbone(name, spec) }

// DefaultLossWeights weights every head equally.
func DefaultLossWeights() LossWeights { return model.DefaultLossWeights() }

// Load reads a state dict or checkpoint written by graspnet.
func Load(path string) (*Checkpoint, error) { return model.Load(path) }

// SaveStateDict writes the network weights to path.
func SaveStateDict(path string, net *GraspNet) error { return model.SaveStateDict(path, net) }

// DefaultDetectOptions returns the detection settings used in validation.
func DefaultDetectOptions() DetectOptions { return postprocess.DefaultDetectOptions() }

// PredictMaps runs net in inference mode on a single [1, C, H, W] input and
// post-processes the outputs.
func PredictMaps(net *GraspNet, x *tensor.Tensor) (Maps, error) {
	s := x.Shape()
	if len(s) != 4 || s[0] != 1 {
		return Maps{}, fmt.Errorf("expected a [1, C, H, W] input, got %v", s)
	}
	if s[1] != net.Config().InputChannels {
		return Maps{}, fmt.Errorf("network takes %d channels, got %d", net.Config().InputChannels, s[1])
	}
	for _, size := range s[2:] {
		if err := net.CheckInputSize(size); err != nil {
			return Maps{}, err
		}
	}
	net.SetTraining(false)
	pred := net.Forward(x)
	return postprocess.PostProcessOutput(pred.Pos, pred.Cos, pred.Sin, pred.Width)
}

// Predict returns the grasps detected in a single [1, C, H, W] input, best
// first, in input pixel coordinates.
func Predict(net *GraspNet, x *tensor.Tensor, opts DetectOptions) ([]grasp.Grasp, error) {
	m, err := PredictMaps(net, x)
	if err != nil {
		return nil, err
	}
	return postprocess.DetectGrasps(m, opts), nil
}
