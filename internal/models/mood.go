// internal/models/mood.go
package models

import "fmt"

// Mood is the god's ordinal temper, lowest first.
type Mood int

const (
	MoodBurned Mood = iota
	MoodAngry
	MoodNeutral
	MoodHappy
)

var moodNames = [...]string{"Burned", "Angry", "Neutral", "Happy"}

func (m Mood) String() string {
	if m < 0 || int(m) >= len(moodNames) {
		return fmt.Sprintf("Mood(%d)", int(m))
	}
	return moodNames[m]
}

func (m Mood) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mood) UnmarshalText(b []byte) error {
	for i, name := range moodNames {
		if name == string(b) {
			*m = Mood(i)
			return nil
		}
	}
	return fmt.Errorf("unknown mood %q", string(b))
}
