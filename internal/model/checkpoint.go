package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/graspnet/internal/optim"
	"github.com/born-ml/graspnet/internal/serialization"
	"github.com/born-ml/graspnet/internal/tensor"
)

// Header metadata keys.
const (
	MetaKind          = "kind"
	MetaBackbone      = "backbone"
	MetaInputChannels = "input_channels"
	MetaLossWeights   = "loss_weights"
)

// File kinds.
const (
	KindStateDict  = "statedict"
	KindCheckpoint = "checkpoint"
)

const (
	modelPrefix     = "model."
	optimizerPrefix = "optimizer."
)

// CheckpointInfo is the training state stored in a full checkpoint.
type CheckpointInfo struct {
	Epoch int
	Step  int64
	Loss  float64
	IOU   float64
	RunID string
}

// Checkpoint is a loaded .born file.
type Checkpoint struct {
	Kind          string
	Net           *GraspNet
	Info          CheckpointInfo
	OptimizerType string
	Optimizer     map[string]*tensor.Tensor // nil for state dicts
}

func (g *GraspNet) header(kind string) serialization.Header {
	w := g.cfg.Weights
	return serialization.Header{
		ModelType: g.cfg.Backbone,
		Metadata: map[string]string{
			MetaKind:          kind,
			MetaBackbone:      g.cfg.Backbone,
			MetaInputChannels: strconv.Itoa(g.cfg.InputChannels),
			MetaLossWeights:   fmt.Sprintf("%g,%g,%g,%g", w.Pos, w.Cos, w.Sin, w.Width),
		},
	}
}

// SaveStateDict writes only the network weights to path.
func SaveStateDict(path string, net *GraspNet) error {
	if err := serialization.WriteFile(path, net.StateDict(), net.header(KindStateDict)); err != nil {
		return errors.Wrap(err, "save state dict")
	}
	return nil
}

// SaveCheckpoint writes the weights, the optimizer buffers and info.
func SaveCheckpoint(path string, net *GraspNet, opt optim.Optimizer, info CheckpointInfo) error {
	dict := make(map[string]*tensor.Tensor)
	for name, t := range net.StateDict() {
		dict[modelPrefix+name] = t
	}
	meta := &serialization.CheckpointMeta{
		Epoch: info.Epoch,
		Step:  info.Step,
		Loss:  info.Loss,
		IOU:   info.IOU,
		RunID: info.RunID,
	}
	if opt != nil {
		for name, t := range opt.StateDict() {
			dict[optimizerPrefix+name] = t
		}
		meta.OptimizerType = opt.Name()
		if c, ok := opt.(interface{ Config() map[string]any }); ok {
			meta.OptimizerConfig = c.Config()
		}
	}

	h := net.header(KindCheckpoint)
	h.CheckpointMeta = meta
	if err := serialization.WriteFile(path, dict, h); err != nil {
		return errors.Wrap(err, "save checkpoint")
	}
	return nil
}

// Load reads a state dict or a full checkpoint and rebuilds the network it
// describes.
func Load(path string) (*Checkpoint, error) {
	dict, h, err := serialization.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load model")
	}
	cfg, err := configFromHeader(h)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	net, err := New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}

	ckpt := &Checkpoint{Kind: h.Metadata[MetaKind], Net: net}
	weights := dict
	if ckpt.Kind == KindCheckpoint {
		weights = make(map[string]*tensor.Tensor)
		ckpt.Optimizer = make(map[string]*tensor.Tensor)
		for name, t := range dict {
			switch {
			case strings.HasPrefix(name, modelPrefix):
				weights[strings.TrimPrefix(name, modelPrefix)] = t
			case strings.HasPrefix(name, optimizerPrefix):
				ckpt.Optimizer[strings.TrimPrefix(name, optimizerPrefix)] = t
			default:
				return nil, errors.Errorf("%s: unexpected tensor %q in checkpoint", path, name)
			}
		}
		if m := h.CheckpointMeta; m != nil {
			ckpt.Info = CheckpointInfo{Epoch: m.Epoch, Step: m.Step, Loss: m.Loss, IOU: m.IOU, RunID: m.RunID}
			ckpt.OptimizerType = m.OptimizerType
		}
	}
	if err := net.LoadStateDict(weights); err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return ckpt, nil
}

func configFromHeader(h serialization.Header) (Config, error) {
	backbone := h.Metadata[MetaBackbone]
	if backbone == "" {
		backbone = h.ModelType
	}
	in, err := strconv.Atoi(h.Metadata[MetaInputChannels])
	if err != nil {
		return Config{}, errors.Wrap(err, "input channels metadata")
	}
	cfg := Config{Backbone: backbone, InputChannels: in, Weights: DefaultLossWeights()}
	if s, ok := h.Metadata[MetaLossWeights]; ok {
		parts := strings.Split(s, ",")
		if len(parts) != NumHeads {
			return Config{}, errors.Errorf("loss weights metadata %q: want %d values", s, NumHeads)
		}
		var v [NumHeads]float64
		for i, p := range parts {
			if v[i], err = strconv.ParseFloat(p, 64); err != nil {
				return Config{}, errors.Wrap(err, "loss weights metadata")
			}
		}
		cfg.Weights = LossWeights{Pos: v[HeadPos], Cos: v[HeadCos], Sin: v[HeadSin], Width: v[HeadWidth]}
	}
	return cfg, nil
}
