package game

import (
	"math"
	"sort"

	"github.com/jason-s-yu/hungrygod/internal/models"
)

// computePlayerStatsUnsafe ranks every player who is still connected or contributed
// at least one hit. Percentages are of all hits in the room, rounded to one decimal.
func computePlayerStatsUnsafe(room *models.Room) []models.PlayerStats {
	total := 0
	for _, p := range room.Players {
		total += p.HitCount
	}

	stats := make([]models.PlayerStats, 0, len(room.Players))
	for _, p := range room.Players {
		if !p.IsConnected && p.HitCount == 0 {
			continue
		}
		pct := 0.0
		if total > 0 {
			pct = math.Round(float64(p.HitCount)/float64(total)*1000) / 10
		}
		stats = append(stats, models.PlayerStats{
			PlayerID:   p.ID,
			Name:       p.Name,
			HitCount:   p.HitCount,
			Percentage: pct,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].HitCount != stats[j].HitCount {
			return stats[i].HitCount > stats[j].HitCount
		}
		return stats[i].Name < stats[j].Name
	})
	return stats
}
