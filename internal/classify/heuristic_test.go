package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bissquit/crisiskit/internal/domain"
)

func TestHeuristic_Classify(t *testing.T) {
	classifier := NewHeuristic()

	tests := []struct {
		name     string
		needs    string
		location string
		want     domain.Urgency
	}{
		{"fire is critical", "house on fire, please help", "", domain.UrgencyCritical},
		{"trapped is critical", "we are trapped under debris", "", domain.UrgencyCritical},
		{"medical is critical", "need medical attention", "", domain.UrgencyCritical},
		{"child mention is critical", "baby needs formula", "", domain.UrgencyCritical},
		{"location keywords count", "need supplies", "building collapsed here", domain.UrgencyCritical},
		{"food is moderate", "we need food and water", "", domain.UrgencyModerate},
		{"shelter is moderate", "homeless after the storm", "", domain.UrgencyModerate},
		{"power outage is moderate", "power out since yesterday", "", domain.UrgencyModerate},
		{"information is low", "asking for information about road closures", "", domain.UrgencyLow},
		{"volunteer is low", "want to volunteer", "", domain.UrgencyLow},
		{"unclear defaults to moderate", "xyz", "", domain.UrgencyModerate},
		{"empty defaults to moderate", "", "", domain.UrgencyModerate},
		{"critical beats moderate", "fire, also need food", "", domain.UrgencyCritical},
		{"moderate beats low", "need food, also asking for info", "", domain.UrgencyModerate},
		{"case insensitive", "FIRE in the building", "", domain.UrgencyCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := classifier.Classify(context.Background(), tt.needs, tt.location)
			assert.Equal(t, tt.want, result.Urgency)
			assert.NotEmpty(t, result.Reasoning)
		})
	}
}

func TestHeuristic_ReasoningNamesKeywords(t *testing.T) {
	classifier := NewHeuristic()

	result := classifier.Classify(context.Background(), "fire and smoke everywhere", "")
	assert.Equal(t, domain.UrgencyCritical, result.Urgency)
	assert.Contains(t, result.Reasoning, "fire")
	assert.Contains(t, result.Reasoning, "smoke")

	result = classifier.Classify(context.Background(), "nothing matching here zq", "")
	assert.Equal(t, "No clear urgency indicators", result.Reasoning)
}

func TestHeuristic_ReasoningCapsAtTwoKeywords(t *testing.T) {
	classifier := NewHeuristic()

	result := classifier.Classify(context.Background(), "fire smoke trapped injured bleeding", "")
	assert.Equal(t, domain.UrgencyCritical, result.Urgency)
	// Only the first two matches are reported.
	assert.Equal(t, "Keywords: fire, smoke", result.Reasoning)
}
