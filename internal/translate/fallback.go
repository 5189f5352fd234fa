package translate

import (
	"strings"

	"github.com/clinimatch/clinimatch/internal/model"
)

// Marker phrases that distinguish a fallback translation from a model one.
// The success-rate calculation depends on these staying stable.
const (
	fallbackEligibilityMarker = "Please review the detailed eligibility criteria"
	fallbackTimeCommitment    = "Time commitment information not available. Please contact the study team for details."
	fallbackKeyBenefits       = "Benefits information not available. Please contact the study team for details."
	fallbackNoCompensation    = "Compensation information not available."
)

const (
	descriptionTruncateAt = 200
	criteriaTruncateAt    = 150
)

// Fallback builds a deterministic translation from the raw trial text.
// Used when the model call fails, times out, or returns an invalid response.
func Fallback(req Request) model.TrialTranslation {
	tr := model.TrialTranslation{
		TimeCommitment: fallbackTimeCommitment,
		KeyBenefits:    fallbackKeyBenefits,
	}

	if len(req.Description) > descriptionTruncateAt {
		tr.SimplifiedDescription = "This study is titled '" + req.Title + "'. " +
			req.Description[:descriptionTruncateAt] + "..."
	} else {
		tr.SimplifiedDescription = req.Description
	}

	if len(req.Criteria) > criteriaTruncateAt {
		tr.EligibilitySimplified = fallbackEligibilityMarker + ": " +
			req.Criteria[:criteriaTruncateAt] + "..."
	} else {
		tr.EligibilitySimplified = req.Criteria
	}

	if req.Compensation != "" {
		tr.CompensationExplanation = req.Compensation
	} else {
		tr.CompensationExplanation = fallbackNoCompensation
	}

	return tr
}

// IsFallback reports whether a translation was produced by Fallback rather
// than the model, detected via the marker phrases.
func IsFallback(tr model.TrialTranslation) bool {
	return strings.Contains(tr.EligibilitySimplified, fallbackEligibilityMarker) ||
		strings.Contains(tr.TimeCommitment, "Time commitment information not available")
}
