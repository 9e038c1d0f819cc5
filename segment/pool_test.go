package segment

import (
	"testing"

	"github.com/hupe1980/regiongrow/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Lifecycle(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		offHeap bool
	}{
		{"heap", nil, false},
		{"off heap", []Option{WithOffHeapThreshold(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.opts...)
			require.NoError(t, p.Initialize(5, 3))
			defer p.Clear()

			assert.Equal(t, 5, p.Capacity())
			assert.Equal(t, 3, p.FeaturesLen())
			assert.Equal(t, tt.offHeap, p.OffHeap())

			for i := 0; i < 5; i++ {
				h, ok := p.Next()
				require.True(t, ok)
				assert.Equal(t, Handle(i), h)

				s := p.Get(h)
				require.Len(t, s.Features, 3)
				for j := range s.Features {
					s.Features[j] = float64(i*10 + j)
				}
			}
			_, ok := p.Next()
			assert.False(t, ok)
			assert.Equal(t, 5, p.Len())

			// Feature vectors do not overlap.
			for i := 0; i < 5; i++ {
				assert.Equal(t, []float64{float64(i * 10), float64(i*10 + 1), float64(i*10 + 2)}, p.Get(Handle(i)).Features)
			}

			p.ResetUseCounter()
			assert.Zero(t, p.Len())
			h, ok := p.Next()
			require.True(t, ok)
			assert.Equal(t, Handle(0), h)
		})
	}
}

func TestPool_NextClearsNeighbors(t *testing.T) {
	p := NewPool()
	require.NoError(t, p.Initialize(2, 1))

	h, _ := p.Next()
	p.Get(h).AddNeighbor(1)

	p.ResetUseCounter()
	h, _ = p.Next()
	assert.Empty(t, p.Get(h).Neighbors)
}

func TestPool_ZeroFeatures(t *testing.T) {
	p := NewPool(WithOffHeapThreshold(1))
	require.NoError(t, p.Initialize(3, 0))
	assert.False(t, p.OffHeap())

	h, ok := p.Next()
	require.True(t, ok)
	assert.Empty(t, p.Get(h).Features)
}

func TestPool_InvalidCapacity(t *testing.T) {
	p := NewPool()
	assert.ErrorIs(t, p.Initialize(-1, 2), ErrInvalidCapacity)
	assert.ErrorIs(t, p.Initialize(2, -1), ErrInvalidCapacity)
}

func TestPool_ResourceController(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 10})

	p := NewPool(WithResourceController(rc))
	err := p.Initialize(1000, 4)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.Zero(t, rc.MemoryUsage())

	require.NoError(t, p.Initialize(2, 2))
	assert.Positive(t, rc.MemoryUsage())

	require.NoError(t, p.Clear())
	assert.Zero(t, rc.MemoryUsage())
	assert.Zero(t, p.Capacity())
}
