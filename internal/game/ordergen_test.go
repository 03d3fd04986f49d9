package game

import (
	"testing"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomOrdersShape(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var g RandomOrders

	seenTotals := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		o, err := g.Generate(start, 10*time.Second)
		require.NoError(t, err)

		total := 0
		for _, it := range models.ItemTypes {
			n, ok := o.Required[it]
			require.True(t, ok)
			require.GreaterOrEqual(t, n, 0)
			require.Zero(t, o.Submitted[it])
			total += n
		}
		require.GreaterOrEqual(t, total, 1)
		require.LessOrEqual(t, total, 5)
		seenTotals[total] = true

		assert.Equal(t, models.OrderActive, o.Status)
		assert.Equal(t, start.Add(10*time.Second), o.EndsAt)
	}
	assert.Len(t, seenTotals, 5, "every total from 1 to 5 shows up")
}

func TestRandomOrdersDeterministicSource(t *testing.T) {
	// always drawing the top of each range gives five items over four kinds
	g := RandomOrders{Intn: func(n int) int { return n - 1 }}
	o, err := g.Generate(time.Now(), time.Second)
	require.NoError(t, err)

	total, kinds := 0, 0
	for _, n := range o.Required {
		total += n
		if n > 0 {
			kinds++
		}
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 4, kinds)
}
