// Package serialization implements the .born container used for grasp network
// weights and training checkpoints.
//
//	Layout:
//	  0x00 [4 bytes: Magic "BORN"]
//	  0x04 [4 bytes: Version (uint32 LE)]
//	  0x08 [4 bytes: Flags (uint32 LE)]
//	  0x0C [4 bytes: reserved]
//	  0x10 [8 bytes: Header size (uint64 LE)]
//	  0x18 [8 bytes: Data size (uint64 LE)]
//	  0x20 [32 bytes: SHA-256 of the data section]
//	  0x40 [Header: JSON metadata]
//	       [padding to 64 bytes]
//	       [Tensor data: float64 little endian, in header order]
//
// Example usage:
//
//	err := serialization.WriteFile("model.born", stateDict, serialization.Header{
//	    ModelType: "ggcnn",
//	})
//
//	stateDict, header, err := serialization.ReadFile("model.born")
package serialization
