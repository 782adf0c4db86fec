package chat

import (
	"fmt"
	"strings"
)

// Effort is the reasoning-effort label exposed in the UI. It does not reach
// the server directly; it biases the sampling options instead, so it works
// with any model.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ParseEffort accepts the label case-insensitively; empty means medium.
func ParseEffort(s string) (Effort, error) {
	switch Effort(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return EffortMedium, nil
	case EffortLow:
		return EffortLow, nil
	case EffortMedium:
		return EffortMedium, nil
	case EffortHigh:
		return EffortHigh, nil
	default:
		return "", fmt.Errorf("unknown effort %q (want low, medium or high)", s)
	}
}

// SystemPrompt is the default system message for the effort level. Medium
// and high ask the model to surface its reasoning, which is what gives the
// marker-based reasoning split something to find.
func (e Effort) SystemPrompt() string {
	switch e {
	case EffortLow:
		return "You are a helpful assistant. Provide concise, direct answers."
	case EffortHigh:
		return fmt.Sprintf("You are a helpful assistant. Think through the problem step by step. Provide your final answer clearly. Reasoning effort: %s.", e)
	default:
		return fmt.Sprintf("You are a helpful assistant. Show brief reasoning before your answer. Reasoning effort: %s.", e)
	}
}

// sampling maps the effort label onto temperature and top_p. Low narrows the
// distribution, high widens it within the server's accepted bounds.
func (e Effort) sampling(temperature float64) (float64, float64) {
	switch e {
	case EffortLow:
		temp := temperature * 0.6
		if temp < 0.1 {
			temp = 0.1
		}
		return temp, 0.9
	case EffortHigh:
		temp := temperature * 1.2
		if temp > 2.0 {
			temp = 2.0
		}
		return temp, 1.0
	default:
		return temperature, 0.95
	}
}
