package train

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/born-ml/graspnet/internal/dataset"
	"github.com/born-ml/graspnet/internal/evaluation"
	"github.com/born-ml/graspnet/internal/grasp"
	"github.com/born-ml/graspnet/internal/model"
	"github.com/born-ml/graspnet/internal/postprocess"
	"github.com/born-ml/graspnet/internal/render"
)

// EvalConfig controls Evaluate.
type EvalConfig struct {
	MaxBatches int // <= 0 evaluates the whole split
	Thresholds evaluation.Thresholds
	Detect     postprocess.DetectOptions
	VisPath    string // when set, the first sample is rendered here
}

// Evaluate runs net in inference mode over up to cfg.MaxBatches batches of
// val. Losses are divided by the number of batches in a full pass over val
// and every sample is scored against its augmented ground truth.
func Evaluate(ctx context.Context, net model.Network, val *dataset.Loader, cfg EvalConfig) (Results, error) {
	net.SetTraining(false)
	results := NewResults()
	ld := val.NumBatches()
	if ld == 0 {
		return results, nil
	}

	for i, p := range val.Epoch() {
		if cfg.MaxBatches > 0 && i >= cfg.MaxBatches {
			break
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		batch, err := val.Load(p)
		if err != nil {
			return results, err
		}
		res := net.ComputeLoss(batch.X, batch.Y)
		results.AddBatch(res.Loss, res.Losses, ld)

		for k := 0; k < batch.Size(); k++ {
			item := res.Pred.Item(k)
			maps, err := postprocess.PostProcessOutput(item.Pos, item.Cos, item.Sin, item.Width)
			if err != nil {
				return results, errors.Wrap(err, "post-process")
			}
			gts, err := val.Dataset().GroundTruth(batch.Indices[k], batch.Rotations[k], batch.Zooms[k])
			if err != nil {
				return results, err
			}
			if evaluation.CalculateIOUMatch(maps, gts, cfg.Thresholds, cfg.Detect) {
				results.Correct++
			} else {
				results.Failed++
			}

			if cfg.VisPath != "" && i == 0 && k == 0 {
				detected := postprocess.DetectGrasps(maps, cfg.Detect)
				if err := visualise(cfg.VisPath, batch, k, maps, detected, gts); err != nil {
					return results, err
				}
			}
		}
	}
	return results, nil
}

func visualise(path string, batch *dataset.Batch, k int, maps postprocess.Maps, detected []grasp.Grasp, gts grasp.Rectangles) error {
	img, err := render.Visualisation(batch.X.Item(k), maps, detected, gts)
	if err != nil {
		return errors.Wrap(err, "render validation sample")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.Wrap(err, "create visualisation dir")
	}
	return render.Save(path, img)
}
