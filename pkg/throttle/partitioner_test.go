// Copyright 2025 Takhin Data, Inc.

package throttle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionedIntegerPartSumsExactly(t *testing.T) {
	cases := []struct {
		total, parts int
	}{
		{100, 1}, {100, 3}, {7, 3}, {0, 5}, {1, 7}, {1000, 17},
	}

	for _, c := range cases {
		sum := 0
		for i := 0; i < c.parts; i++ {
			part := partitionedIntegerPart(c.total, c.parts, i)
			assert.GreaterOrEqual(t, part, 0)
			sum += part
		}
		assert.Equalf(t, c.total, sum, "total=%d parts=%d", c.total, c.parts)
	}
}

func TestPartitionedIntegerPartEachPartWithinOneOfAverage(t *testing.T) {
	total, parts := 101, 9
	floor := total / parts
	for i := 0; i < parts; i++ {
		part := partitionedIntegerPart(total, parts, i)
		assert.Contains(t, []int{floor, floor + 1}, part)
	}
}

func TestPartitionedIntegerPartRemainderGoesToLowIndices(t *testing.T) {
	// 7 split 3 ways: [3, 2, 2] per the spec's seed scenario 3.
	require.Equal(t, 3, partitionedIntegerPart(7, 3, 0))
	require.Equal(t, 2, partitionedIntegerPart(7, 3, 1))
	require.Equal(t, 2, partitionedIntegerPart(7, 3, 2))
}

func TestPartitionedIntegerPartZeroTotal(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, partitionedIntegerPart(0, 5, i))
	}
}

func TestPartitionedIntegerPartSingleParticipant(t *testing.T) {
	assert.Equal(t, 42, partitionedIntegerPart(42, 1, 0))
}

func TestPartitionedIntegerPartZeroPartsPanics(t *testing.T) {
	assert.Panics(t, func() {
		partitionedIntegerPart(10, 0, 0)
	})
}

func TestPartitionedIntegerPartIndexOutOfRangePanics(t *testing.T) {
	assert.Panics(t, func() {
		partitionedIntegerPart(10, 3, 3)
	})
	assert.Panics(t, func() {
		partitionedIntegerPart(10, 3, -1)
	})
}
