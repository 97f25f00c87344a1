package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.DatasetPath = "/data/cornell"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ggcnn", cfg.Network)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, 50, cfg.Epochs)
	assert.Equal(t, 1000, cfg.BatchesPerEpoch)
	assert.Equal(t, 250, cfg.ValBatches)
	assert.InDelta(t, 0.9, cfg.Split, 1e-12)
	assert.True(t, cfg.UseDepth)
	assert.False(t, cfg.UseRGB)
	assert.Equal(t, 1, cfg.InputChannels())

	// Default lacks only the dataset path.
	require.Error(t, cfg.Validate())
	require.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network", func(c *Config) { c.Network = "resnet" }},
		{"zero input size", func(c *Config) { c.InputSize = 0 }},
		{"gpu device", func(c *Config) { c.Device = "cuda" }},
		{"other dataset", func(c *Config) { c.Dataset = "jacquard" }},
		{"no inputs", func(c *Config) { c.UseDepth, c.UseRGB = false, false }},
		{"split one", func(c *Config) { c.Split = 1 }},
		{"split zero", func(c *Config) { c.Split = 0 }},
		{"ds rotate one", func(c *Config) { c.DSRotate = 1 }},
		{"negative workers", func(c *Config) { c.NumWorkers = -1 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero batches per epoch", func(c *Config) { c.BatchesPerEpoch = 0 }},
		{"zero val batches", func(c *Config) { c.ValBatches = 0 }},
		{"unknown optimizer", func(c *Config) { c.Optimizer = "rmsprop" }},
		{"zero lr", func(c *Config) { c.LR = 0 }},
		{"beta one", func(c *Config) { c.Beta2 = 1 }},
		{"iou threshold", func(c *Config) { c.IOUThreshold = 1 }},
		{"angle threshold", func(c *Config) { c.AngleThreshold = 0 }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInputChannels(t *testing.T) {
	cfg := validConfig()
	cfg.UseRGB = true
	assert.Equal(t, 4, cfg.InputChannels())
	cfg.UseDepth = false
	assert.Equal(t, 3, cfg.InputChannels())
	require.NoError(t, cfg.Validate())
}

func TestAngleThresholdRad(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, 0.5235987755982988, cfg.AngleThresholdRad(), 1e-12)
}

func TestRunName(t *testing.T) {
	now := time.Date(2024, time.March, 7, 9, 5, 0, 0, time.UTC)
	cfg := Default()
	assert.Equal(t, "240307_0905", cfg.RunName(now))

	cfg.Description = "  depth only  small net "
	assert.Equal(t, "240307_0905_depth_only_small_net", cfg.RunName(now))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.yaml")
	data := `
network: ggcnn2
dataset_path: /data/cornell
use_rgb: true
batch_size: 4
loss_weights:
  pos: 2
  cos: 1
  sin: 1
  width: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ggcnn2", cfg.Network)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.True(t, cfg.UseRGB)
	assert.True(t, cfg.UseDepth, "unset keys keep defaults")
	assert.InDelta(t, 2.0, cfg.Loss.Pos, 1e-12)
	assert.InDelta(t, 0.5, cfg.Loss.Width, 1e-12)
	assert.Equal(t, 50, cfg.Epochs)
	require.NoError(t, cfg.Validate())
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("learning_rate: 0.1\n"), 0o600))
	_, err = Load(unknown)
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("batch_size: eight\n"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := validConfig()
	cfg.Description = "round trip"
	cfg.Seed = 42
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
