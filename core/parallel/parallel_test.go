package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParallelizeCoversEveryItemOnce(t *testing.T) {
	for _, items := range []int{1, 7, 100, 1001} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			assert.Equal(t, int32(1), h, "items=%d index=%d", items, i)
		}
	}
}

func TestParallelizeZeroItems(t *testing.T) {
	called := false
	Parallelize(0, func(start, end int) { called = true })
	ParallelizeWithThreshold(0, 10, func(start, end int) { called = true })
	assert.False(t, called)
}

func TestParallelizeWithThresholdSequential(t *testing.T) {
	var calls int32
	ParallelizeWithThreshold(50, 1000, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, 0, start)
		assert.Equal(t, 50, end)
	})
	assert.Equal(t, int32(1), calls)
}

func TestWorkers(t *testing.T) {
	assert.Equal(t, 1, Workers(0))
	assert.Equal(t, 1, Workers(1))
	assert.LessOrEqual(t, Workers(3), 3)
}
