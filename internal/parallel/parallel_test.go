package parallel

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	for _, cfg := range []Config{DefaultConfig(), Sequential(), {Workers: 3, MinChunkSize: 16}} {
		t.Run(fmt.Sprintf("workers=%d", cfg.Workers), func(t *testing.T) {
			var counter int64
			seen := make([]bool, 1000)
			For(len(seen), func(i int) {
				atomic.AddInt64(&counter, 1)
				seen[i] = true
			}, cfg)
			assert.Equal(t, int64(1000), counter)
			for i, ok := range seen {
				require.True(t, ok, "index %d not visited", i)
			}
		})
	}
}

func TestForZero(t *testing.T) {
	called := false
	For(0, func(int) { called = true }, DefaultConfig())
	assert.False(t, called)
}

func TestForErrReturnsLowestIndex(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	var ran int64
	err := ForErr(50, func(i int) error {
		atomic.AddInt64(&ran, 1)
		switch i {
		case 7:
			return errA
		case 30:
			return errB
		}
		return nil
	}, Config{Workers: 4, MinChunkSize: 1})
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, int64(50), ran)

	assert.NoError(t, ForErr(10, func(int) error { return nil }, Sequential()))
}
