// Package analytics computes the derived engagement metrics folded into a
// user's analytics profile.  The functions are pure so the weighting can
// be tested without a database.
package analytics

import "encoding/json"

// Sample is one page-engagement observation reported by the renderer.
type Sample struct {
	TimeOnPageMs int64
	Interactions int
	Completed    bool
}

// Weighting of the engagement score.  Time on page saturates at two
// minutes and interactions at ten per page, so a child idling on an open
// page cannot inflate the score without bound.
const (
	timeWeight        = 40.0
	interactionWeight = 40.0
	completionWeight  = 20.0
	timeSaturationMs  = 2 * 60 * 1000
	interactionCap    = 10
	foldAlpha         = 0.3 // weight of the newest sample in the running score
)

// SampleScore maps one observation to a 0-100 score.  It is monotone in
// time on page and interaction count: for equal or greater values of both,
// the score never decreases.
func SampleScore(s Sample) float64 {
	t := float64(s.TimeOnPageMs) / float64(timeSaturationMs)
	if t > 1 {
		t = 1
	}
	if t < 0 {
		t = 0
	}
	i := float64(s.Interactions) / float64(interactionCap)
	if i > 1 {
		i = 1
	}
	if i < 0 {
		i = 0
	}
	score := timeWeight*t + interactionWeight*i
	if s.Completed {
		score += completionWeight
	}
	if score > 100 {
		score = 100
	}
	return score
}

// FoldScore blends a new sample into the previous running score with an
// exponential moving average.  A brand-new profile (prev <= 0) takes the
// sample score directly.
func FoldScore(prev float64, s Sample) float64 {
	cur := SampleScore(s)
	if prev <= 0 {
		return cur
	}
	out := prev + foldAlpha*(cur-prev)
	if out < 0 {
		out = 0
	}
	if out > 100 {
		out = 100
	}
	return out
}

// FoldCompletion blends a page-completion observation into the running
// completion rate (0-100) with the same moving average as FoldScore.
func FoldCompletion(prev float64, completed bool) float64 {
	cur := 0.0
	if completed {
		cur = 100.0
	}
	if prev <= 0 && completed {
		return cur
	}
	out := prev + foldAlpha*(cur-prev)
	if out < 0 {
		out = 0
	}
	if out > 100 {
		out = 100
	}
	return out
}

// FoldPatterns merges interaction type counts into the stored
// interaction_patterns JSON.  Unparsable stored state starts over empty
// rather than failing the telemetry path.
func FoldPatterns(prevJSON string, interactionTypes []string) string {
	patterns := map[string]int64{}
	if prevJSON != "" {
		_ = json.Unmarshal([]byte(prevJSON), &patterns)
	}
	for _, t := range interactionTypes {
		if t == "" {
			continue
		}
		patterns[t]++
	}
	b, err := json.Marshal(patterns)
	if err != nil {
		return "{}"
	}
	return string(b)
}
