package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Checksum hashes the JSON header followed by the tensor data, so edits to
// either section are detected.
func Checksum(header, data []byte) [ChecksumSize]byte {
	h := sha256.New()
	h.Write(header)
	h.Write(data)
	var sum [ChecksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func verifyChecksum(header, data []byte, stored [ChecksumSize]byte) error {
	if got := Checksum(header, data); got != stored {
		return fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch,
			hex.EncodeToString(stored[:8]), hex.EncodeToString(got[:8]))
	}
	return nil
}
