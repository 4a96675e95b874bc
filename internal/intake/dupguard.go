package intake

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/bissquit/crisiskit/internal/domain"
)

// duplicateWindow is how far back a submission from the same contact counts
// as a likely repeat.
const duplicateWindow = time.Hour

// CheckDuplicate reports whether contact already submitted within the
// duplicate window, and builds a human-readable warning from the most recent
// such match. The warning is advisory: a repeat submit proceeds regardless.
func CheckDuplicate(existing []domain.StoredResponse, contact string, now time.Time) (bool, string) {
	folder := cases.Fold()
	folded := folder.String(strings.TrimSpace(contact))
	if folded == "" {
		return false, ""
	}

	var latest *domain.StoredResponse
	for i := range existing {
		candidate := &existing[i]
		if folder.String(strings.TrimSpace(candidate.Contact)) != folded {
			continue
		}
		if now.Sub(candidate.SubmittedAt) >= duplicateWindow {
			continue
		}
		if latest == nil || candidate.SubmittedAt.After(latest.SubmittedAt) {
			latest = candidate
		}
	}

	if latest == nil {
		return false, ""
	}

	warning := fmt.Sprintf(
		"A request from this contact was already submitted at %s. Submitting again will update your information.",
		latest.SubmittedAt.Format("15:04:05"),
	)
	return true, warning
}
