package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/born-ml/graspnet/internal/tensor"
)

// Decode reads a .born stream, verifies its checksum and returns the tensors
// keyed by name together with the parsed header.
func Decode(r io.Reader) (map[string]*tensor.Tensor, Header, error) {
	return decode(r, -1)
}

// decode is Decode with an optional total input size. When size >= 0 the
// declared data section must fit inside it.
func decode(r io.Reader, size int64) (map[string]*tensor.Tensor, Header, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, Header{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(fixed[4:8]); v != FormatVersion {
		return nil, Header{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, v, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	if headerSize > MaxHeaderSize {
		return nil, Header{}, ErrHeaderTooLarge
	}
	if dataSize > math.MaxInt64 {
		return nil, Header{}, fmt.Errorf("%w: %d bytes", ErrDataTooLarge, dataSize)
	}
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read header JSON: %w", err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // headerSize and dataSize are bounded above
	dataOffset, dataLen := alignedOffset(int64(headerSize)), int64(dataSize)
	padding := dataOffset - int64(FixedHeaderSize) - int64(len(headerBytes))
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read padding: %w", err)
	}

	if size >= 0 && dataLen > size-dataOffset {
		return nil, Header{}, fmt.Errorf("%w: %d bytes declared, %d available",
			ErrDataTooLarge, dataLen, size-dataOffset)
	}
	if err := ValidateHeader(&header, dataLen); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	// The buffer grows with what is actually read, not with the declared size.
	data, err := io.ReadAll(io.LimitReader(r, dataLen))
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if int64(len(data)) != dataLen {
		return nil, Header{}, fmt.Errorf("failed to read tensor data: %w", io.ErrUnexpectedEOF)
	}
	if err := verifyChecksum(headerBytes, data, stored); err != nil {
		return nil, Header{}, err
	}

	stateDict := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		raw := data[meta.Offset : meta.Offset+meta.Size]
		values := make([]float64, meta.Size/8)
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
		stateDict[meta.Name] = tensor.New(tensor.Shape(meta.Shape), values)
	}
	return stateDict, header, nil
}

// ReadFile decodes the .born file at path.
func ReadFile(path string) (map[string]*tensor.Tensor, Header, error) {
	//nolint:gosec // G304: path is a user-supplied checkpoint location
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to stat file: %w", err)
	}

	dict, header, err := decode(bufio.NewReader(f), info.Size())
	if err != nil {
		return nil, Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return dict, header, nil
}
