package game

import (
	"math/rand/v2"
	"time"

	"github.com/jason-s-yu/hungrygod/internal/models"
)

const (
	minOrderItems = 1
	maxOrderItems = 5
)

// OrderGenerator produces the next order of a game.
type OrderGenerator interface {
	Generate(startsAt time.Time, duration time.Duration) (*models.Order, error)
}

// RandomOrders draws a total of 1 to 5 items and spreads it over 1 to 4 distinct item
// types, each picked type receiving at least one.
type RandomOrders struct {
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

func (g RandomOrders) Generate(startsAt time.Time, duration time.Duration) (*models.Order, error) {
	intn := g.Intn
	if intn == nil {
		intn = rand.IntN
	}

	total := minOrderItems + intn(maxOrderItems-minOrderItems+1)
	kinds := 1 + intn(min(total, len(models.ItemTypes)))

	types := make([]models.ItemType, len(models.ItemTypes))
	copy(types, models.ItemTypes)
	for i := len(types) - 1; i > 0; i-- {
		j := intn(i + 1)
		types[i], types[j] = types[j], types[i]
	}
	types = types[:kinds]

	required := make(map[models.ItemType]int, len(models.ItemTypes))
	for _, it := range types {
		required[it] = 1
	}
	for left := total - kinds; left > 0; left-- {
		required[types[intn(kinds)]]++
	}

	return models.NewOrder(required, startsAt, duration)
}
