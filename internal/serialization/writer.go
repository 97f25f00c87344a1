package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Version is recorded in every header written by this package.
const Version = "0.3.0"

// Encode writes stateDict and header in .born format to w.
//
// Tensors are written in name order so identical inputs give identical
// bytes (apart from CreatedAt). Header.Tensors is filled in by Encode.
func Encode(w io.Writer, stateDict map[string]*tensor.Tensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var offset int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	data := make([]byte, 0)
	for _, name := range names {
		t := stateDict[name]
		size := int64(t.NumElements() * 8)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat64,
			Shape:  []int(t.Shape().Clone()),
			Offset: offset,
			Size:   size,
		})
		for _, v := range t.Data() {
			data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
		}
		offset += size
	}

	header.FormatVersion = FormatVersion
	if header.Version == "" {
		header.Version = Version
	}
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagHasOptimizer
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	sum := Checksum(headerJSON, data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], sum[:])

	padding := alignedOffset(int64(len(headerJSON))) - int64(FixedHeaderSize+len(headerJSON))

	for _, chunk := range [][]byte{fixed, headerJSON, make([]byte, padding), data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write .born data: %w", err)
		}
	}
	return nil
}

// WriteFile encodes to a temporary file next to path and renames it into
// place, so a crash never leaves a truncated checkpoint behind.
func WriteFile(path string, stateDict map[string]*tensor.Tensor, header Header) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = Encode(bw, stateDict, header); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move checkpoint into place: %w", err)
	}
	return nil
}
