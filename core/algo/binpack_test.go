package algo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(id string, minutes int, resources ...string) Unit {
	return Unit{ID: id, Items: []string{id}, Size: time.Duration(minutes) * time.Minute, Resources: resources}
}

func TestPackLPTBalances(t *testing.T) {
	units := []Unit{unit("a", 5), unit("b", 4), unit("c", 3), unit("d", 3), unit("e", 2)}
	p := PackLPT(units, 2, 0)

	require.Len(t, p.Bins, 2)
	assert.Equal(t, []string{"a", "d"}, p.Bins[0].Items())
	assert.Equal(t, []string{"b", "c", "e"}, p.Bins[1].Items())
	assert.Equal(t, 8*time.Minute, p.Bins[0].Load)
	assert.Equal(t, 9*time.Minute, p.Bins[1].Load)
	assert.Empty(t, p.Oversized)
}

func TestPackLPTConflicts(t *testing.T) {
	units := []Unit{unit("a", 5, "db"), unit("b", 1, "db"), unit("c", 1)}
	p := PackLPT(units, 1, 0)

	require.Len(t, p.Bins, 2)
	assert.Equal(t, []string{"a"}, p.Bins[0].Items())
	assert.Equal(t, []string{"b", "c"}, p.Bins[1].Items())
}

func TestPackLPTCapacity(t *testing.T) {
	units := []Unit{unit("big", 20), unit("a", 6), unit("b", 6)}
	p := PackLPT(units, 1, 10*time.Minute)

	assert.Equal(t, []string{"big"}, p.Oversized)
	require.Len(t, p.Bins, 3)
	assert.Equal(t, []string{"big"}, p.Bins[0].Items())
	assert.Equal(t, []string{"a"}, p.Bins[1].Items())
	assert.Equal(t, []string{"b"}, p.Bins[2].Items())
}

func TestPackLPTDeterministicTies(t *testing.T) {
	units := []Unit{unit("c", 1), unit("a", 1), unit("b", 1)}
	for range 5 {
		p := PackLPT(units, 3, 0)
		require.Len(t, p.Bins, 3)
		assert.Equal(t, []string{"a"}, p.Bins[0].Items())
		assert.Equal(t, []string{"b"}, p.Bins[1].Items())
		assert.Equal(t, []string{"c"}, p.Bins[2].Items())
	}
}
