package chat

import (
	"regexp"
	"strings"
)

// Parsed separates a model reply into chain-of-thought and the final answer.
type Parsed struct {
	Reasoning string
	Answer    string
}

// markerPatterns match inline reasoning blocks. Each pattern captures the
// reasoning in group 1; group 2, when present, is the terminator that must
// stay part of the answer (RE2 has no lookahead).
var markerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<thinking>(.*?)</thinking>`),
	regexp.MustCompile(`(?is)Reasoning:(.*?)(\n\n|\nAnswer:|\nConclusion:|\z)`),
	regexp.MustCompile(`(?is)Let me think.*?:(.*?)(\n\n|\nFinal|Answer:|\z)`),
}

var answerCues = []string{"therefore", "in conclusion", "final answer", "answer:"}

// SplitReasoning extracts an inline reasoning block from content. When no
// marker captures anything, a line-based heuristic looks for a concluding cue
// in longer replies. Nothing detected means the whole content is the answer.
func SplitReasoning(content string) Parsed {
	parsed := Parsed{Answer: content}

	for _, pat := range markerPatterns {
		loc := pat.FindStringSubmatchIndex(content)
		if loc == nil {
			continue
		}
		reasoning := strings.TrimSpace(content[loc[2]:loc[3]])
		cutEnd := loc[1]
		if len(loc) >= 6 && loc[4] >= 0 {
			cutEnd = loc[4]
		}
		answer := strings.TrimSpace(content[:loc[0]] + content[cutEnd:])
		if answer == "" {
			answer = content
		}
		parsed = Parsed{Reasoning: reasoning, Answer: answer}
		break
	}
	if parsed.Reasoning != "" {
		return parsed
	}

	// A marker may match with an empty capture ("Reasoning:\n\n..."); the
	// heuristic then still gets a chance on the full content.
	if strings.Contains(content, "\n") {
		lines := strings.Split(content, "\n")
		if len(lines) > 3 {
			for i, line := range lines {
				lower := strings.ToLower(line)
				for _, cue := range answerCues {
					if strings.Contains(lower, cue) {
						return Parsed{
							Reasoning: strings.TrimSpace(strings.Join(lines[:i], "\n")),
							Answer:    strings.TrimSpace(strings.Join(lines[i:], "\n")),
						}
					}
				}
			}
		}
	}

	return parsed
}
