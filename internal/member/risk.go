package member

// Score bounds. Every member starts at InitialScore: maximum risk, not yet engaged.
const (
	InitialScore = 100
	MinScore     = 0
	MaxScore     = 100
)

// Delta returns how much an interaction lowers the risk score.
func Delta(action string) int {
	switch Kind(action) {
	case ActionMessage:
		return 5
	case ActionReaction:
		return 2
	case ActionVoiceJoin:
		return 15
	case ActionButtonClick:
		return 20
	default:
		return 1
	}
}

// ApplyInteraction returns the score after one interaction. It never raises a score.
func ApplyInteraction(score int, action string) int {
	return Clamp(score - Delta(action))
}

// Clamp bounds a score into [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Band is a coarse risk classification used by stats and the join reducer.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor classifies a score: >= high is high, >= medium is medium, otherwise low.
func BandFor(score, high, medium int) Band {
	switch {
	case score >= high:
		return BandHigh
	case score >= medium:
		return BandMedium
	default:
		return BandLow
	}
}
