package main

import (
	"flag"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/graspnet/internal/config"
)

// bindConfig registers a flag for every configuration option, writing into cfg.
func bindConfig(fs *flag.FlagSet, cfg *config.Config) {
	// Network
	fs.StringVar(&cfg.Network, "network", cfg.Network, "Backbone name (ggcnn, ggcnn2)")
	fs.IntVar(&cfg.InputSize, "input-size", cfg.InputSize, "Side of the square network input")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	fs.StringVar(&cfg.Device, "device", cfg.Device, "Compute device (cpu)")

	// Dataset
	fs.StringVar(&cfg.Dataset, "dataset", cfg.Dataset, "Dataset name (cornell)")
	fs.StringVar(&cfg.DatasetPath, "dataset-path", cfg.DatasetPath, "Path to the dataset")
	fs.BoolVar(&cfg.UseDepth, "use-depth", cfg.UseDepth, "Use depth image for training")
	fs.BoolVar(&cfg.UseRGB, "use-rgb", cfg.UseRGB, "Use RGB image for training")
	fs.BoolVar(&cfg.RandomRotate, "random-rotate", cfg.RandomRotate, "Rotate samples by random quarter turns")
	fs.BoolVar(&cfg.RandomZoom, "random-zoom", cfg.RandomZoom, "Zoom samples by a random factor in [0.5, 1)")
	fs.Float64Var(&cfg.Split, "split", cfg.Split, "Fraction of data for training (remainder is validation)")
	fs.Float64Var(&cfg.DSRotate, "ds-rotate", cfg.DSRotate, "Shift the dataset by this fraction before splitting")
	fs.IntVar(&cfg.NumWorkers, "num-workers", cfg.NumWorkers, "Samples loaded concurrently")

	// Training
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Batch size")
	fs.IntVar(&cfg.Epochs, "epochs", cfg.Epochs, "Training epochs")
	fs.IntVar(&cfg.BatchesPerEpoch, "batches-per-epoch", cfg.BatchesPerEpoch, "Batches per epoch")
	fs.IntVar(&cfg.ValBatches, "val-batches", cfg.ValBatches, "Validation batches")
	fs.StringVar(&cfg.Optimizer, "optimizer", cfg.Optimizer, "Optimizer (adam, sgd)")
	fs.Float64Var(&cfg.LR, "lr", cfg.LR, "Learning rate")
	fs.Float64Var(&cfg.Momentum, "momentum", cfg.Momentum, "SGD momentum")
	fs.Float64Var(&cfg.IOUThreshold, "iou-threshold", cfg.IOUThreshold, "IOU a grasp must exceed to count as correct")
	fs.Float64Var(&cfg.AngleThreshold, "angle-threshold", cfg.AngleThreshold, "Angle difference (degrees) a grasp must stay under")

	// Logging
	fs.StringVar(&cfg.Description, "description", cfg.Description, "Training description")
	fs.StringVar(&cfg.OutDir, "outdir", cfg.OutDir, "Training output directory")
	fs.StringVar(&cfg.LogDir, "logdir", cfg.LogDir, "Log directory")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.Vis, "vis", cfg.Vis, "Render a validation sample every epoch")
}

// parseConfig parses args into a configuration: defaults, then the file
// named by -config, then every flag set explicitly on the command line.
// extra registers command specific flags on the set before parsing.
func parseConfig(name string, args []string, extra func(fs *flag.FlagSet)) (*config.Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", "", "YAML configuration file")
	bindConfig(fs, config.Default())
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *path != "" {
		var err error
		if cfg, err = config.Load(*path); err != nil {
			return nil, err
		}
	}

	// Replay explicit flags onto the loaded configuration.
	apply := flag.NewFlagSet(name, flag.ContinueOnError)
	apply.SetOutput(io.Discard)
	bindConfig(apply, cfg)
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil || apply.Lookup(f.Name) == nil {
			return
		}
		err = apply.Set(f.Name, f.Value.String())
	})
	if err != nil {
		return nil, errors.Wrap(err, "apply flags")
	}
	return cfg, nil
}

func newLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(lvl)
	return log, nil
}
