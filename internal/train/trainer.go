// Package train runs the epoch loop: optimisation over the training split,
// grasp-success validation over the held-out split, metric logging and
// checkpointing.
package train

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/evaluation"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/born-ml/graspnet/internal/optim"
	"github.com/born-ml/graspnet/internal/postprocess"
)

// ArchFile is the model summary written next to the checkpoints.
const ArchFile = "arch.txt"

// logEvery is the batch interval of progress log lines.
const logEvery = 100

// Options configure a Trainer.
type Options struct {
	Net       *model.GraspNet
	Optimizer optim.Optimizer
	Train     *dataset.Loader
	Val       *dataset.Loader

	Epochs          int
	BatchesPerEpoch int
	ValBatches      int

	Thresholds evaluation.Thresholds     // zero value selects the defaults
	Detect     postprocess.DetectOptions // zero value selects the defaults
	Policy     *CheckpointPolicy         // nil selects NewCheckpointPolicy

	ModelDir string // checkpoints and arch.txt
	LogDir   string // scalars.jsonl and visualisations
	RunID    string // generated when empty
	Vis      bool
	Logger   logrus.FieldLogger
}

// Trainer owns one training run.
type Trainer struct {
	opts    Options
	log     logrus.FieldLogger
	scalars *ScalarWriter
	step    int64
}

// New validates opts, creates the run directories and writes the model
// summary.
func New(opts Options) (*Trainer, error) {
	switch {
	case opts.Net == nil || opts.Optimizer == nil:
		return nil, errors.New("network and optimizer are required")
	case opts.Train == nil || opts.Val == nil:
		return nil, errors.New("training and validation loaders are required")
	case opts.Epochs <= 0 || opts.BatchesPerEpoch <= 0 || opts.ValBatches <= 0:
		return nil, errors.Errorf("epochs (%d), batches per epoch (%d) and validation batches (%d) must be positive",
			opts.Epochs, opts.BatchesPerEpoch, opts.ValBatches)
	case opts.ModelDir == "" || opts.LogDir == "":
		return nil, errors.New("model and log directories are required")
	}
	size := opts.Train.Dataset().OutputSize()
	if err := opts.Net.CheckInputSize(size); err != nil {
		return nil, errors.Wrap(err, "input size")
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Policy == nil {
		opts.Policy = NewCheckpointPolicy()
	}
	if opts.Thresholds == (evaluation.Thresholds{}) {
		opts.Thresholds = evaluation.DefaultThresholds()
	}
	if opts.Detect == (postprocess.DetectOptions{}) {
		opts.Detect = postprocess.DefaultDetectOptions()
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}

	if err := os.MkdirAll(opts.ModelDir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create model dir")
	}
	arch := opts.Net.Summary(size)
	if err := os.WriteFile(filepath.Join(opts.ModelDir, ArchFile), []byte(arch), 0o600); err != nil {
		return nil, errors.Wrap(err, "write model summary")
	}
	scalars, err := NewScalarWriter(opts.LogDir, opts.RunID)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		opts:    opts,
		log:     opts.Logger.WithFields(logrus.Fields{"component": "train", "run": opts.RunID}),
		scalars: scalars,
	}, nil
}

// RunID identifies this run in checkpoints and the scalar log.
func (t *Trainer) RunID() string { return t.opts.RunID }

// Step returns the number of optimizer steps taken so far.
func (t *Trainer) Step() int64 { return t.step }

// Close releases the scalar log.
func (t *Trainer) Close() error { return t.scalars.Close() }

// Run trains for the configured number of epochs.
func (t *Trainer) Run(ctx context.Context) error {
	t.log.WithFields(logrus.Fields{
		"train_samples": t.opts.Train.Len(),
		"val_samples":   t.opts.Val.Len(),
		"epochs":        t.opts.Epochs,
	}).Info("Training started")

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		log := t.log.WithField("epoch", epoch)
		log.Infof("Beginning Epoch %02d", epoch)

		tr, err := t.TrainEpoch(ctx, epoch)
		if err != nil {
			return errors.Wrapf(err, "train epoch %d", epoch)
		}
		if err := t.logLosses("loss/train_loss", "train_loss/", tr.Loss, tr.Losses, epoch); err != nil {
			return err
		}

		log.Info("Validating...")
		cfg := EvalConfig{MaxBatches: t.opts.ValBatches, Thresholds: t.opts.Thresholds, Detect: t.opts.Detect}
		if t.opts.Vis {
			cfg.VisPath = filepath.Join(t.opts.LogDir, "vis", fmt.Sprintf("epoch_%02d.png", epoch))
		}
		vr, err := Evaluate(ctx, t.opts.Net, t.opts.Val, cfg)
		if err != nil {
			return errors.Wrapf(err, "validate epoch %d", epoch)
		}
		iou, err := SuccessRate(vr)
		if errors.Is(err, ErrNoValidationSamples) {
			log.Warn("No validation samples were evaluated, success rate is 0")
		}
		log.Infof("%d/%d = %f", vr.Correct, vr.Total(), iou)

		if err := t.scalars.Add("loss/IOU", iou, epoch); err != nil {
			return err
		}
		if err := t.logLosses("loss/val_loss", "val_loss/", vr.Loss, vr.Losses, epoch); err != nil {
			return err
		}

		if t.opts.Policy.ShouldSave(epoch, iou) {
			if err := t.save(epoch, iou, vr.Loss); err != nil {
				return err
			}
		}
	}
	return nil
}

// TrainEpoch runs BatchesPerEpoch optimisation steps, making as many passes
// over the training split as needed.
func (t *Trainer) TrainEpoch(ctx context.Context, epoch int) (EpochResults, error) {
	net, opt := t.opts.Net, t.opts.Optimizer
	net.SetTraining(true)

	var acc epochAccumulator
	for len(acc.loss) < t.opts.BatchesPerEpoch {
		plans := t.opts.Train.Epoch()
		if len(plans) == 0 {
			return EpochResults{}, errors.New("training split is empty")
		}
		for _, p := range plans {
			if len(acc.loss) >= t.opts.BatchesPerEpoch {
				break
			}
			if err := ctx.Err(); err != nil {
				return EpochResults{}, err
			}
			batch, err := t.opts.Train.Load(p)
			if err != nil {
				return EpochResults{}, err
			}

			opt.ZeroGrad()
			res := net.ComputeLoss(batch.X, batch.Y)
			net.Backward(res)
			opt.Step()
			t.step++
			acc.add(res)

			if n := len(acc.loss); n%logEvery == 0 {
				t.log.WithFields(logrus.Fields{"epoch": epoch, "batch": n}).
					Infof("Epoch: %d, Batch: %d, Loss: %0.4f", epoch, n, res.Loss)
			}
		}
	}
	return acc.results(), nil
}

// Validate scores the network on the validation split.
func (t *Trainer) Validate(ctx context.Context) (Results, error) {
	return Evaluate(ctx, t.opts.Net, t.opts.Val, EvalConfig{
		MaxBatches: t.opts.ValBatches,
		Thresholds: t.opts.Thresholds,
		Detect:     t.opts.Detect,
	})
}

func (t *Trainer) logLosses(total, prefix string, loss float64, losses map[string]float64, epoch int) error {
	if err := t.scalars.Add(total, loss, epoch); err != nil {
		return err
	}
	for _, name := range model.LossNames() {
		if err := t.scalars.Add(prefix+name, losses[name], epoch); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trainer) save(epoch int, iou, loss float64) error {
	info := model.CheckpointInfo{Epoch: epoch, Step: t.step, Loss: loss, IOU: iou, RunID: t.opts.RunID}
	path := filepath.Join(t.opts.ModelDir, CheckpointName(epoch, iou))
	if err := model.SaveCheckpoint(path, t.opts.Net, t.opts.Optimizer, info); err != nil {
		return errors.Wrapf(err, "epoch %d", epoch)
	}
	if err := model.SaveStateDict(filepath.Join(t.opts.ModelDir, StateDictName(epoch, iou)), t.opts.Net); err != nil {
		return errors.Wrapf(err, "epoch %d", epoch)
	}
	t.log.WithFields(logrus.Fields{"epoch": epoch, "iou": iou, "path": path}).Info("Saved checkpoint")
	return nil
}
