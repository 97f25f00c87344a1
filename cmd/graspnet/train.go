package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/graspnet/internal/config"
	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/evaluation"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/born-ml/graspnet/internal/nn"
	"github.com/born-ml/graspnet/internal/optim"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/train"
)

// Synthetic frames are this large; the network crops input-size windows.
const (
	syntheticRows = 120
	syntheticCols = 160
)

func runTrain(args []string, _ io.Writer) error {
	var synthetic int
	cfg, err := parseConfig("train", args, func(fs *flag.FlagSet) {
		fs.IntVar(&synthetic, "synthetic", 0, "Write this many synthetic samples to dataset-path first")
	})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	if synthetic > 0 {
		dir := filepath.Join(cfg.DatasetPath, "01")
		log.WithField("dir", dir).Infof("Writing %d synthetic samples", synthetic)
		if err := dataset.WriteSynthetic(dir, synthetic, syntheticRows, syntheticCols, cfg.Seed); err != nil {
			return err
		}
	}

	log.Info("Loading Cornell Dataset...")
	trainSet, valSet, err := splits(cfg)
	if err != nil {
		return err
	}
	log.Infof("Training size: %d, validation size: %d", trainSet.Len(), valSet.Len())

	log.Info("Loading Network...")
	net, err := model.New(model.Config{
		Backbone:      cfg.Network,
		InputChannels: cfg.InputChannels(),
		Weights:       cfg.Loss,
		Seed:          cfg.Seed,
	})
	if err != nil {
		return errors.Wrap(err, "build network")
	}
	opt, err := newOptimizer(cfg, net)
	if err != nil {
		return err
	}

	runName := cfg.RunName(time.Now())
	runID := uuid.NewString()
	tr, err := train.New(train.Options{
		Net:       net,
		Optimizer: opt,
		Train: dataset.NewLoader(trainSet, dataset.LoaderConfig{
			BatchSize: cfg.BatchSize, Shuffle: true, Seed: cfg.Seed, Workers: cfg.NumWorkers,
		}),
		Val: dataset.NewLoader(valSet, dataset.LoaderConfig{
			BatchSize: 1, Seed: cfg.Seed + 1, Workers: cfg.NumWorkers,
		}),
		Epochs:          cfg.Epochs,
		BatchesPerEpoch: cfg.BatchesPerEpoch,
		ValBatches:      cfg.ValBatches,
		Thresholds:      thresholds(cfg),
		Detect:          postprocess.DefaultDetectOptions(),
		ModelDir:        filepath.Join(cfg.OutDir, runName),
		LogDir:          filepath.Join(cfg.LogDir, runName),
		RunID:           runID,
		Vis:             cfg.Vis,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tr.Close() }()
	if err := cfg.Save(filepath.Join(cfg.OutDir, runName, "config.yaml")); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"run": runID, "name": runName, "parameters": nn.CountParameters(net.Parameters())}).Info("Done")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return tr.Run(ctx)
}

// splits builds the training split [0, split) and the validation split
// [split, 1).
func splits(cfg *config.Config) (trainSet, valSet *dataset.Cornell, err error) {
	opts := dataset.Options{
		Path:         cfg.DatasetPath,
		DSRotate:     cfg.DSRotate,
		OutputSize:   cfg.InputSize,
		IncludeDepth: cfg.UseDepth,
		IncludeRGB:   cfg.UseRGB,
		RandomRotate: cfg.RandomRotate,
		RandomZoom:   cfg.RandomZoom,
	}
	opts.Start, opts.End = 0, cfg.Split
	if trainSet, err = dataset.NewCornell(opts); err != nil {
		return nil, nil, errors.Wrap(err, "training split")
	}
	opts.Start, opts.End = cfg.Split, 1
	if valSet, err = dataset.NewCornell(opts); err != nil {
		return nil, nil, errors.Wrap(err, "validation split")
	}
	return trainSet, valSet, nil
}

func newOptimizer(cfg *config.Config, net *model.GraspNet) (optim.Optimizer, error) {
	switch cfg.Optimizer {
	case "adam":
		return optim.NewAdam(net.Parameters(), optim.AdamConfig{
			LR:    cfg.LR,
			Betas: [2]float64{cfg.Beta1, cfg.Beta2},
			Eps:   cfg.Eps,
		}), nil
	case "sgd":
		return optim.NewSGD(net.Parameters(), optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	}
	return nil, errors.Errorf("unknown optimizer %q", cfg.Optimizer)
}

func thresholds(cfg *config.Config) evaluation.Thresholds {
	return evaluation.Thresholds{IOU: cfg.IOUThreshold, Angle: cfg.AngleThresholdRad()}
}
