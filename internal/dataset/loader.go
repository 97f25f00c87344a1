package dataset

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/born-ml/graspnet/internal/parallel"
	"github.com/born-ml/graspnet/internal/tensor"
)

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
	Workers   int // Samples loaded concurrently; <= 1 loads sequentially
}

// Plan identifies the samples of one batch and their augmentation.
type Plan struct {
	Indices   []int
	Rotations []float64
	Zooms     []float64
}

// Batch is a stacked set of samples.
type Batch struct {
	Plan
	X *tensor.Tensor    // [N, C, H, W]
	Y [4]*tensor.Tensor // pos, cos, sin, width; each [N, 1, H, W]
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int { return len(b.Indices) }

// Loader groups dataset samples into batches.
type Loader struct {
	ds  *Cornell
	cfg LoaderConfig
	rng *rand.Rand
}

// NewLoader creates a loader over ds.
func NewLoader(ds *Cornell, cfg LoaderConfig) *Loader {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	//nolint:gosec // G404: augmentation does not need a cryptographic source
	return &Loader{ds: ds, cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Dataset returns the underlying dataset.
func (l *Loader) Dataset() *Cornell { return l.ds }

// Len returns the number of samples, not batches.
func (l *Loader) Len() int { return l.ds.Len() }

// NumBatches returns the number of batches per pass; the last may be short.
func (l *Loader) NumBatches() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Epoch draws the sample order and augmentation for one pass.
func (l *Loader) Epoch() []Plan {
	order := make([]int, l.ds.Len())
	for i := range order {
		order[i] = i
	}
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	plans := make([]Plan, 0, l.NumBatches())
	for start := 0; start < len(order); start += l.cfg.BatchSize {
		idx := order[start:min(start+l.cfg.BatchSize, len(order))]
		p := Plan{
			Indices:   idx,
			Rotations: make([]float64, len(idx)),
			Zooms:     make([]float64, len(idx)),
		}
		for i := range idx {
			p.Rotations[i], p.Zooms[i] = l.ds.Augment(l.rng)
		}
		plans = append(plans, p)
	}
	return plans
}

// Load reads and stacks the samples of p.
func (l *Loader) Load(p Plan) (*Batch, error) {
	samples := make([]*Sample, len(p.Indices))
	cfg := parallel.Config{Workers: l.cfg.Workers, MinChunkSize: 1}
	err := parallel.ForErr(len(p.Indices), func(i int) error {
		s, err := l.ds.Sample(p.Indices[i], p.Rotations[i], p.Zooms[i])
		if err != nil {
			return err
		}
		samples[i] = s
		return nil
	}, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "load batch")
	}

	images := make([]*tensor.Tensor, len(samples))
	for i, s := range samples {
		images[i] = s.Image
	}
	x, err := tensor.Stack(images)
	if err != nil {
		return nil, errors.Wrap(err, "stack images")
	}

	b := &Batch{Plan: p, X: x}
	for k := range b.Y {
		targets := make([]*tensor.Tensor, len(samples))
		for i, s := range samples {
			targets[i] = s.Targets[k]
		}
		if b.Y[k], err = tensor.Stack(targets); err != nil {
			return nil, errors.Wrap(err, "stack targets")
		}
	}
	return b, nil
}
