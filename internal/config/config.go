// Package config holds the training configuration, loaded from YAML and
// overridden by command-line flags.
package config

import (
	"bytes"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/graspnet/internal/model"
)

// Config is the full set of run options.
type Config struct {
	// Network
	Network   string            `yaml:"network"`
	InputSize int               `yaml:"input_size"`
	Loss      model.LossWeights `yaml:"loss_weights"`
	Seed      int64             `yaml:"seed"`
	Device    string            `yaml:"device"`

	// Dataset
	Dataset      string  `yaml:"dataset"`
	DatasetPath  string  `yaml:"dataset_path"`
	UseDepth     bool    `yaml:"use_depth"`
	UseRGB       bool    `yaml:"use_rgb"`
	RandomRotate bool    `yaml:"random_rotate"`
	RandomZoom   bool    `yaml:"random_zoom"`
	Split        float64 `yaml:"split"`
	DSRotate     float64 `yaml:"ds_rotate"`
	NumWorkers   int     `yaml:"num_workers"`

	// Training
	BatchSize       int     `yaml:"batch_size"`
	Epochs          int     `yaml:"epochs"`
	BatchesPerEpoch int     `yaml:"batches_per_epoch"`
	ValBatches      int     `yaml:"val_batches"`
	Optimizer       string  `yaml:"optimizer"`
	LR              float64 `yaml:"lr"`
	Beta1           float64 `yaml:"beta1"`
	Beta2           float64 `yaml:"beta2"`
	Eps             float64 `yaml:"eps"`
	Momentum        float64 `yaml:"momentum"`

	// Evaluation
	IOUThreshold   float64 `yaml:"iou_threshold"`
	AngleThreshold float64 `yaml:"angle_threshold_deg"`

	// Logging and output
	Description string `yaml:"description"`
	OutDir      string `yaml:"outdir"`
	LogDir      string `yaml:"logdir"`
	LogLevel    string `yaml:"log_level"`
	Vis         bool   `yaml:"vis"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Network:   "ggcnn",
		InputSize: 300,
		Loss:      model.DefaultLossWeights(),
		Seed:      1,
		Device:    "cpu",

		Dataset:      "cornell",
		UseDepth:     true,
		UseRGB:       false,
		RandomRotate: true,
		RandomZoom:   true,
		Split:        0.9,
		NumWorkers:   8,

		BatchSize:       8,
		Epochs:          50,
		BatchesPerEpoch: 1000,
		ValBatches:      250,
		Optimizer:       "adam",
		LR:              0.001,
		Beta1:           0.9,
		Beta2:           0.999,
		Eps:             1e-8,

		IOUThreshold:   0.25,
		AngleThreshold: 30,

		OutDir:   "output/models",
		LogDir:   "logs",
		LogLevel: "info",
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: config path is user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, nil
}

// Save writes cfg as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o600), "write config")
}

// Validate reports the first invalid option.
func (c *Config) Validate() error {
	switch {
	case !slices.Contains(model.Backbones(), c.Network):
		return errors.Errorf("network %q is not one of %v", c.Network, model.Backbones())
	case c.InputSize <= 0:
		return errors.Errorf("input_size must be positive, got %d", c.InputSize)
	case c.Device != "cpu":
		return errors.Errorf("device %q is not supported, only cpu", c.Device)
	case c.Dataset != "cornell":
		return errors.Errorf("dataset %q is not supported, only cornell", c.Dataset)
	case c.DatasetPath == "":
		return errors.New("dataset_path is required")
	case !c.UseDepth && !c.UseRGB:
		return errors.New("at least one of use_depth or use_rgb must be set")
	case c.Split <= 0 || c.Split >= 1:
		return errors.Errorf("split must be in (0, 1), got %g", c.Split)
	case c.DSRotate < 0 || c.DSRotate >= 1:
		return errors.Errorf("ds_rotate must be in [0, 1), got %g", c.DSRotate)
	case c.NumWorkers < 0:
		return errors.Errorf("num_workers must not be negative, got %d", c.NumWorkers)
	case c.BatchSize <= 0:
		return errors.Errorf("batch_size must be positive, got %d", c.BatchSize)
	case c.Epochs <= 0:
		return errors.Errorf("epochs must be positive, got %d", c.Epochs)
	case c.BatchesPerEpoch <= 0:
		return errors.Errorf("batches_per_epoch must be positive, got %d", c.BatchesPerEpoch)
	case c.ValBatches <= 0:
		return errors.Errorf("val_batches must be positive, got %d", c.ValBatches)
	case c.Optimizer != "adam" && c.Optimizer != "sgd":
		return errors.Errorf("optimizer %q is not one of adam, sgd", c.Optimizer)
	case c.LR <= 0:
		return errors.Errorf("lr must be positive, got %g", c.LR)
	case c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1:
		return errors.Errorf("betas must be in [0, 1), got %g, %g", c.Beta1, c.Beta2)
	case c.IOUThreshold < 0 || c.IOUThreshold >= 1:
		return errors.Errorf("iou_threshold must be in [0, 1), got %g", c.IOUThreshold)
	case c.AngleThreshold <= 0 || c.AngleThreshold > 90:
		return errors.Errorf("angle_threshold_deg must be in (0, 90], got %g", c.AngleThreshold)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// InputChannels returns 1 for depth plus 3 for RGB.
func (c *Config) InputChannels() int {
	n := 0
	if c.UseDepth {
		n++
	}
	if c.UseRGB {
		n += 3
	}
	return n
}

// AngleThresholdRad returns the angle threshold in radians.
func (c *Config) AngleThresholdRad() float64 {
	return c.AngleThreshold * math.Pi / 180
}

// RunName names the output folder of a run started at now:
// yymmdd_HHMM followed by the description words joined with underscores.
func (c *Config) RunName(now time.Time) string {
	name := now.Format("060102_1504")
	if words := strings.Fields(c.Description); len(words) > 0 {
		name += "_" + strings.Join(words, "_")
	}
	return name
}
