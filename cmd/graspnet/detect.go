package main

import (
	"flag"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/render"
)

func runDetect(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	modelPath := fs.String("model", "", "Saved state dict or checkpoint")
	depthPath := fs.String("depth", "", "Depth TIFF")
	rgbPath := fs.String("rgb", "", "RGB image")
	size := fs.Int("input-size", 300, "Side of the square window cropped from the image centre")
	numGrasps := fs.Int("n-grasps", 1, "Grasps to detect")
	out := fs.String("out", "", "Write a visualisation PNG here")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		return errors.New("-model is required")
	}

	cp, err := model.Load(*modelPath)
	if err != nil {
		return err
	}
	net := cp.Net
	if err := net.CheckInputSize(*size); err != nil {
		return err
	}
	frame, err := dataset.PrepareInput(*depthPath, *rgbPath, *size)
	if err != nil {
		return err
	}
	if got, want := frame.Input.Shape()[1], net.Config().InputChannels; got != want {
		return errors.Errorf("model takes %d input channels but %d were provided", want, got)
	}

	net.SetTraining(false)
	pred := net.Forward(frame.Input)
	maps, err := postprocess.PostProcessOutput(pred.Pos, pred.Cos, pred.Sin, pred.Width)
	if err != nil {
		return errors.Wrap(err, "post-process")
	}
	opts := postprocess.DefaultDetectOptions()
	opts.NumGrasps = *numGrasps
	detected := postprocess.DetectGrasps(maps, opts)

	for i, g := range detected {
		s := frame.ToSource(g)
		if _, err := fmt.Fprintf(stdout, "%d: center=(%.1f, %.1f) angle=%.1f° length=%.1f width=%.1f\n",
			i, s.Center.X, s.Center.Y, s.Angle*180/math.Pi, s.Length, s.Width); err != nil {
			return err
		}
	}
	if len(detected) == 0 {
		if _, err := fmt.Fprintln(stdout, "no grasps found"); err != nil {
			return err
		}
	}

	if *out != "" {
		img, err := render.Visualisation(frame.Input, maps, detected, nil)
		if err != nil {
			return err
		}
		return render.Save(*out, img)
	}
	return nil
}
