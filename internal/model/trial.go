package model

import "strings"

// TrialLocation is a physical study site.
type TrialLocation struct {
	Facility string `json:"facility"`
	City     string `json:"city"`
	State    string `json:"state"`
	Country  string `json:"country"`
	ZipCode  string `json:"zip_code,omitempty"`
}

// ContactInfo is the study team's point of contact, when published.
type ContactInfo struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// RawTrial is one registry record as returned by the trial source adapter.
// Read-only downstream of the adapter.
type RawTrial struct {
	NCTID               string          `json:"nct_id"`
	Title               string          `json:"title"`
	BriefSummary        string          `json:"brief_summary"`
	DetailedDescription string          `json:"detailed_description"`
	EligibilityCriteria string          `json:"eligibility_criteria"`
	InclusionCriteria   []string        `json:"inclusion_criteria"`
	ExclusionCriteria   []string        `json:"exclusion_criteria"`
	Locations           []TrialLocation `json:"locations"`
	Contact             ContactInfo     `json:"contact"`
	StudyType           string          `json:"study_type"`
	Phase               string          `json:"phase,omitempty"`
	Status              string          `json:"status"`
	StartDate           string          `json:"start_date,omitempty"`
	CompletionDate      string          `json:"completion_date,omitempty"`
	Sponsor             string          `json:"sponsor"`
	Conditions          []string        `json:"conditions"`
	Interventions       []string        `json:"interventions"`
}

// Description returns the best available free-text description: the brief
// summary when present, otherwise the detailed description.
func (t *RawTrial) Description() string {
	if strings.TrimSpace(t.BriefSummary) != "" {
		return t.BriefSummary
	}
	return t.DetailedDescription
}

// IsClosed reports whether the trial can no longer accept participants.
// Closed trials are unconditionally excluded from matching.
func (t *RawTrial) IsClosed() bool {
	switch strings.ToLower(t.Status) {
	case "completed", "terminated", "withdrawn":
		return true
	}
	return false
}
