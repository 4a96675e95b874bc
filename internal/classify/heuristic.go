// Package classify provides urgency classification for intake submissions.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/bissquit/crisiskit/internal/domain"
)

var criticalKeywords = []string{
	"fire", "burning", "flame", "smoke",
	"trapped", "stuck", "cannot escape", "cannot move",
	"injury", "injured", "bleeding", "broken", "hurt",
	"medical", "emergency", "ambulance", "doctor", "hospital",
	"life-threatening", "dying", "death",
	"flood", "water rising", "drowning",
	"earthquake", "collapsed", "collapse",
	"help now", "immediate", "urgent", "asap", "critical",
	"baby", "child", "elderly", "disabled", "pregnant",
}

var moderateKeywords = []string{
	"food", "water", "hungry", "thirsty",
	"shelter", "homeless", "nowhere to go",
	"cold", "freezing", "hot",
	"medication", "medicine", "prescription",
	"power out", "no electricity", "blackout",
	"need help", "assistance needed",
	"stranded", "lost", "separated",
}

var lowKeywords = []string{
	"information", "info", "question", "asking",
	"update", "status", "news",
	"supplies", "donation", "volunteer",
	"later", "non-urgent", "when possible",
}

// Heuristic is a keyword-based urgency classifier, used as the fallback when
// no AI-backed classifier is configured.
type Heuristic struct{}

// NewHeuristic creates the keyword classifier.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Classify assigns an urgency level from keyword matches over the needs and
// location text. Unclear submissions default to MODERATE rather than LOW, so
// a vague request is never parked behind clearly low-priority ones.
func (h *Heuristic) Classify(_ context.Context, needs, location string) domain.Classification {
	text := strings.ToLower(needs + " " + location)

	if matches := matchKeywords(text, criticalKeywords); len(matches) > 0 {
		return classification(domain.UrgencyCritical, matches)
	}
	if matches := matchKeywords(text, moderateKeywords); len(matches) > 0 {
		return classification(domain.UrgencyModerate, matches)
	}
	if matches := matchKeywords(text, lowKeywords); len(matches) > 0 {
		return classification(domain.UrgencyLow, matches)
	}

	return domain.Classification{
		Urgency:   domain.UrgencyModerate,
		Reasoning: "No clear urgency indicators",
	}
}

func matchKeywords(text string, keywords []string) []string {
	matches := make([]string, 0, 2)
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			matches = append(matches, keyword)
			if len(matches) == 2 {
				break
			}
		}
	}
	return matches
}

func classification(urgency domain.Urgency, matches []string) domain.Classification {
	return domain.Classification{
		Urgency:   urgency,
		Reasoning: fmt.Sprintf("Keywords: %s", strings.Join(matches, ", ")),
	}
}
