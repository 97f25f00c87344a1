package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "BORN"
	FormatVersion   = 2  // With SHA-256 checksum
	HeaderAlignment = 64 // Tensor data starts on a 64-byte boundary
	FixedHeaderSize = 64 // Fixed header size (0x40 bytes)
	ChecksumSize    = 32 // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20
	DTypeFloat64    = "float64"
)

// Flags for the .born format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	Version        string            `json:"version"`              // graspnet version that wrote the file
	ModelType      string            `json:"model_type"`           // Backbone name, e.g. "ggcnn"
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Present for full checkpoints
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch           int            `json:"epoch"`
	Step            int64          `json:"step"`
	Loss            float64        `json:"loss"`
	IOU             float64        `json:"iou"`
	RunID           string         `json:"run_id"`
	OptimizerType   string         `json:"optimizer_type"`
	OptimizerConfig map[string]any `json:"optimizer_config"`
	TrainingMeta    map[string]any `json:"training_meta"`
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "backbone.0.weight")
	DType  string `json:"dtype"`  // Always "float64"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Bytes from start of tensor data
	Size   int64  `json:"size"`   // Size in bytes
}

func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
