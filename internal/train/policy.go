package train

import "fmt"

// DefaultSaveEvery is the period of unconditional checkpoints.
const DefaultSaveEvery = 10

// CheckpointPolicy decides after each validation whether to save.
// A checkpoint is written when the success rate beats the last saved one,
// on the first epoch and every Every epochs. The reference rate is reset to
// the current one on every save, so a periodic save with a worse rate lowers
// the bar for the next epoch.
type CheckpointPolicy struct {
	Every int
	best  float64
}

// NewCheckpointPolicy returns a policy saving every DefaultSaveEvery epochs.
func NewCheckpointPolicy() *CheckpointPolicy {
	return &CheckpointPolicy{Every: DefaultSaveEvery}
}

// ShouldSave reports whether epoch with success rate iou gets a checkpoint.
func (p *CheckpointPolicy) ShouldSave(epoch int, iou float64) bool {
	periodic := p.Every > 0 && epoch%p.Every == 0
	if iou > p.best || epoch == 0 || periodic {
		p.best = iou
		return true
	}
	return false
}

// Best returns the success rate of the last save.
func (p *CheckpointPolicy) Best() float64 { return p.best }

// CheckpointName is the base file name of the checkpoint saved for epoch.
func CheckpointName(epoch int, iou float64) string {
	return fmt.Sprintf("epoch_%02d_iou_%0.2f", epoch, iou)
}

// StateDictName is the file name of the weights-only companion file.
func StateDictName(epoch int, iou float64) string {
	return CheckpointName(epoch, iou) + "_statedict.born"
}
