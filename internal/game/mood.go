package game

import "github.com/jason-s-yu/hungrygod/internal/models"

// MoodCalculator derives the god's mood from a game's cumulative results.
type MoodCalculator interface {
	Calculate(successCount, failCount int) models.Mood
	IsBurnout(mood models.Mood) bool
}

// CounterMood recomputes mood from the Neutral baseline every time: one step up per
// two successes, one step down per failure, clamped to [Burned, Happy]. The result
// depends only on the two counters, never on the order they were reached in.
type CounterMood struct{}

func (CounterMood) Calculate(successCount, failCount int) models.Mood {
	level := int(models.MoodNeutral) + successCount/2 - failCount
	if level > int(models.MoodHappy) {
		level = int(models.MoodHappy)
	}
	if level < int(models.MoodBurned) {
		level = int(models.MoodBurned)
	}
	return models.Mood(level)
}

// IsBurnout reports whether mood fell below Angry.
func (CounterMood) IsBurnout(mood models.Mood) bool {
	return mood < models.MoodAngry
}
