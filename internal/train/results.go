package train

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/graspnet/internal/model"
)

// ErrNoValidationSamples is returned by SuccessRate when nothing was scored.
var ErrNoValidationSamples = errors.New("no validation samples were evaluated")

// Results accumulates one validation pass.
type Results struct {
	Correct int
	Failed  int
	Loss    float64
	Losses  map[string]float64
}

// NewResults returns empty results with every sub-loss key present.
func NewResults() Results {
	r := Results{Losses: make(map[string]float64, model.NumHeads)}
	for _, name := range model.LossNames() {
		r.Losses[name] = 0
	}
	return r
}

// AddBatch adds the loss of one batch divided by n, the number of batches
// in the validation set.
func (r *Results) AddBatch(loss float64, losses map[string]float64, n int) {
	d := float64(n)
	r.Loss += loss / d
	if r.Losses == nil {
		r.Losses = make(map[string]float64, len(losses))
	}
	for name, l := range losses {
		r.Losses[name] += l / d
	}
}

// Total returns the number of evaluated samples.
func (r Results) Total() int { return r.Correct + r.Failed }

// SuccessRate returns Correct / (Correct + Failed). With no samples it
// returns 0 and ErrNoValidationSamples.
func SuccessRate(r Results) (float64, error) {
	if r.Total() == 0 {
		return 0, ErrNoValidationSamples
	}
	return float64(r.Correct) / float64(r.Total()), nil
}

// EpochResults summarises one training epoch.
type EpochResults struct {
	Batches int
	Loss    float64            // mean over batches
	Losses  map[string]float64 // mean over batches
}

// epochAccumulator collects per-batch losses for EpochResults.
type epochAccumulator struct {
	loss   []float64
	losses map[string][]float64
}

func (a *epochAccumulator) add(res *model.LossResult) {
	if a.losses == nil {
		a.losses = make(map[string][]float64, len(res.Losses))
	}
	a.loss = append(a.loss, res.Loss)
	for name, l := range res.Losses {
		a.losses[name] = append(a.losses[name], l)
	}
}

func (a *epochAccumulator) results() EpochResults {
	r := EpochResults{Batches: len(a.loss), Losses: make(map[string]float64, len(a.losses))}
	if r.Batches == 0 {
		return r
	}
	n := float64(r.Batches)
	r.Loss = floats.Sum(a.loss) / n
	for name, ls := range a.losses {
		r.Losses[name] = floats.Sum(ls) / n
	}
	return r
}
