package entropy

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeterministic(t *testing.T) {
	a := NewStream(7)
	b := NewStream(7)
	assert.Equal(t, uint64(7), a.Seed())
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Float(), b.Float())
	}

	c := NewStream(8)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Float() == c.Float() {
			same++
		}
	}
	assert.Less(t, same, 5)
}

func TestUniformBounds(t *testing.T) {
	s := NewStream(1)
	for i := 0; i < 1000; i++ {
		v := s.Uniform(1.25, 1.40)
		require.GreaterOrEqual(t, v, 1.25)
		require.Less(t, v, 1.40)
	}
}

func TestIntBetweenInclusive(t *testing.T) {
	s := NewStream(2)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := s.IntBetween(20, 30)
		require.GreaterOrEqual(t, v, 20)
		require.LessOrEqual(t, v, 30)
		seen[v] = true
	}
	assert.Len(t, seen, 11)
	assert.Equal(t, 4, s.IntBetween(4, 4))
}

func TestSample(t *testing.T) {
	s := NewStream(3)
	for i := 0; i < 200; i++ {
		got := s.Sample(10, 3)
		require.Len(t, got, 3)
		require.Less(t, got[0], got[1])
		require.Less(t, got[1], got[2])
		require.GreaterOrEqual(t, got[0], 0)
		require.Less(t, got[2], 10)
	}

	assert.Equal(t, []int{0, 1, 2}, s.Sample(3, 5))
	assert.Empty(t, s.Sample(5, 0))
}

func TestSampleSameSeedSameIndices(t *testing.T) {
	a, b := NewStream(21), NewStream(21)
	seen := make(map[int]bool)
	for i := 0; i < 300; i++ {
		got := a.Sample(15, 3)
		require.Equal(t, got, b.Sample(15, 3))
		require.True(t, slices.IsSorted(got))
		for _, j := range got {
			seen[j] = true
		}
	}
	assert.Len(t, seen, 15, "every index should be drawn eventually")
}

func TestBetaDrawsInUnitInterval(t *testing.T) {
	s := NewStream(4)
	dist := s.Beta(1, 15)
	sum := 0.0
	const n = 5000
	for i := 0; i < n; i++ {
		v := dist.Rand()
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
		sum += v
	}
	// Mean of Beta(1,15) is 1/16.
	assert.InDelta(t, 1.0/16.0, sum/n, 0.01)
}

func TestDriftBounded(t *testing.T) {
	d := NewDrift(11)
	for x := 0.0; x < 50; x += 0.37 {
		v := d.At(x)
		require.GreaterOrEqual(t, v, -1.0)
		require.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, d.At(3.5), NewDrift(11).At(3.5))
}
