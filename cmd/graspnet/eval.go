package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"

	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/train"
)

func runEval(args []string, stdout io.Writer) error {
	var modelPath, visPath string
	var numGrasps int
	cfg, err := parseConfig("eval", args, func(fs *flag.FlagSet) {
		fs.StringVar(&modelPath, "model", "", "Saved state dict or checkpoint")
		fs.StringVar(&visPath, "vis-out", "", "Render the first validation sample to this PNG")
		fs.IntVar(&numGrasps, "n-grasps", 1, "Grasps detected per image")
	})
	if err != nil {
		return err
	}
	if modelPath == "" {
		return errors.New("-model is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	cp, err := model.Load(modelPath)
	if err != nil {
		return err
	}
	if got, want := cp.Net.Config().InputChannels, cfg.InputChannels(); got != want {
		return errors.Errorf("model takes %d input channels but the configuration provides %d", got, want)
	}
	_, valSet, err := splits(cfg)
	if err != nil {
		return err
	}
	log.WithField("model", modelPath).Infof("Evaluating %d samples", valSet.Len())

	detect := postprocess.DefaultDetectOptions()
	detect.NumGrasps = numGrasps
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := train.Evaluate(ctx, cp.Net, dataset.NewLoader(valSet, dataset.LoaderConfig{
		BatchSize: 1, Seed: cfg.Seed, Workers: cfg.NumWorkers,
	}), train.EvalConfig{
		MaxBatches: cfg.ValBatches,
		Thresholds: thresholds(cfg),
		Detect:     detect,
		VisPath:    visPath,
	})
	if err != nil {
		return err
	}
	rate, err := train.SuccessRate(res)
	if errors.Is(err, train.ErrNoValidationSamples) {
		log.Warn("No validation samples were evaluated")
	}
	_, err = fmt.Fprintf(stdout, "IOU results: %d/%d = %f\nLoss: %0.4f\n", res.Correct, res.Total(), rate, res.Loss)
	return err
}
