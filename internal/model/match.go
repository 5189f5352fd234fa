package model

import "time"

// TrialTranslation holds the plain-language rendering of one trial's
// technical text, produced by the AI translator or the local fallback.
type TrialTranslation struct {
	SimplifiedDescription   string `json:"simplified_description"`
	EligibilitySimplified   string `json:"eligibility_simplified"`
	TimeCommitment          string `json:"time_commitment"`
	KeyBenefits             string `json:"key_benefits"`
	CompensationExplanation string `json:"compensation_explanation,omitempty"`
}

// TrialMatch is one finished, user-presentable result: the trial's
// structural fields merged with its plain-language translation.
type TrialMatch struct {
	NCTID                   string          `json:"nct_id"`
	Title                   string          `json:"title"`
	OriginalDescription     string          `json:"original_description"`
	SimplifiedDescription   string          `json:"simplified_description"`
	EligibilityCriteria     string          `json:"eligibility_criteria"`
	EligibilitySimplified   string          `json:"eligibility_simplified"`
	TimeCommitment          string          `json:"time_commitment"`
	KeyBenefits             string          `json:"key_benefits"`
	CompensationExplanation string          `json:"compensation_explanation,omitempty"`
	Locations               []TrialLocation `json:"locations"`
	Contact                 ContactInfo     `json:"contact"`
	StudyType               string          `json:"study_type"`
	Phase                   string          `json:"phase,omitempty"`
	Status                  string          `json:"status"`
	Sponsor                 string          `json:"sponsor"`
	Conditions              []string        `json:"conditions"`
	Interventions           []string        `json:"interventions"`
}

// NewTrialMatch merges a raw trial with a translation.
func NewTrialMatch(trial *RawTrial, tr TrialTranslation) TrialMatch {
	return TrialMatch{
		NCTID:                   trial.NCTID,
		Title:                   trial.Title,
		OriginalDescription:     trial.Description(),
		SimplifiedDescription:   tr.SimplifiedDescription,
		EligibilityCriteria:     trial.EligibilityCriteria,
		EligibilitySimplified:   tr.EligibilitySimplified,
		TimeCommitment:          tr.TimeCommitment,
		KeyBenefits:             tr.KeyBenefits,
		CompensationExplanation: tr.CompensationExplanation,
		Locations:               trial.Locations,
		Contact:                 trial.Contact,
		StudyType:               trial.StudyType,
		Phase:                   trial.Phase,
		Status:                  trial.Status,
		Sponsor:                 trial.Sponsor,
		Conditions:              trial.Conditions,
		Interventions:           trial.Interventions,
	}
}

// MatchingResult is the final output of one matching request. Match order is
// completion order of the concurrent translation phase and is not stable.
type MatchingResult struct {
	Matches                  []TrialMatch  `json:"matches"`
	TotalFound               int           `json:"total_found"`
	ProcessingTime           time.Duration `json:"processing_time"`
	SearchParams             SearchParams  `json:"search_params"`
	Cached                   bool          `json:"cached"`
	AITranslationSuccessRate float64       `json:"ai_translation_success_rate"`
}
