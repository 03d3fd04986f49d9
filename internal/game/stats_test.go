package game

import (
	"testing"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerStatsSelectionAndRounding(t *testing.T) {
	now := time.Now()
	r := models.NewRoom("ABCDEF", now)

	add := func(name string, hits int, connected bool) {
		p := models.NewPlayer(name, "c-"+name, now)
		p.HitCount = hits
		p.IsConnected = connected
		r.Players[p.ID] = p
	}
	add("top", 2, true)
	add("gone-but-helped", 1, false)
	add("idle", 0, true)
	add("gone-idle", 0, false)

	stats := computePlayerStatsUnsafe(r)
	require.Len(t, stats, 3)
	assert.Equal(t, "top", stats[0].Name)
	assert.Equal(t, 66.7, stats[0].Percentage)
	assert.Equal(t, "gone-but-helped", stats[1].Name)
	assert.Equal(t, 33.3, stats[1].Percentage)
	assert.Equal(t, "idle", stats[2].Name)
	assert.Zero(t, stats[2].Percentage)
}

func TestPlayerStatsWithoutHits(t *testing.T) {
	now := time.Now()
	r := models.NewRoom("ABCDEF", now)
	p := models.NewPlayer("solo", "c1", now)
	r.Players[p.ID] = p

	stats := computePlayerStatsUnsafe(r)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].Percentage)
}
