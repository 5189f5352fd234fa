package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DrinkingHabit describes alcohol consumption frequency.
type DrinkingHabit string

const (
	DrinkingNever      DrinkingHabit = "never"
	DrinkingOccasional DrinkingHabit = "occasional"
	DrinkingRegular    DrinkingHabit = "regular"
)

// Location is the user's home location used for geographic relevance.
type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
	ZipCode string `json:"zip_code,omitempty"`
}

// Lifestyle captures lifestyle factors collected from the intake form.
type Lifestyle struct {
	Smoking  bool          `json:"smoking"`
	Drinking DrinkingHabit `json:"drinking"`
}

// UserProfile is the validated patient profile a matching request runs
// against. Construct via NewUserProfile; treat as immutable afterwards.
type UserProfile struct {
	Age         int       `json:"age"`
	Conditions  []string  `json:"conditions"`
	Medications []string  `json:"medications"`
	Location    Location  `json:"location"`
	Lifestyle   Lifestyle `json:"lifestyle"`
}

// SearchParams are the profile fields forwarded to the trial registry.
type SearchParams struct {
	Conditions []string `json:"conditions"`
	Location   Location `json:"location"`
	Age        int      `json:"age"`
}

// NewUserProfile validates raw intake data and returns a profile. Defaults:
// country "United States", drinking "never".
func NewUserProfile(age int, conditions, medications []string, loc Location, life Lifestyle) (*UserProfile, error) {
	if age <= 0 || age >= 120 {
		return nil, eris.Errorf("model: age %d out of range (1-119)", age)
	}
	if len(conditions) == 0 {
		return nil, eris.New("model: at least one condition is required")
	}
	for _, c := range conditions {
		if strings.TrimSpace(c) == "" {
			return nil, eris.New("model: conditions must be non-empty strings")
		}
	}
	if strings.TrimSpace(loc.City) == "" {
		return nil, eris.New("model: location city is required")
	}
	if strings.TrimSpace(loc.State) == "" {
		return nil, eris.New("model: location state is required")
	}
	if loc.Country == "" {
		loc.Country = "United States"
	}
	switch life.Drinking {
	case DrinkingNever, DrinkingOccasional, DrinkingRegular:
	case "":
		life.Drinking = DrinkingNever
	default:
		return nil, eris.Errorf("model: invalid drinking habit %q", life.Drinking)
	}
	if medications == nil {
		medications = []string{}
	}

	return &UserProfile{
		Age:         age,
		Conditions:  conditions,
		Medications: medications,
		Location:    loc,
		Lifestyle:   life,
	}, nil
}

// SearchParams returns the registry-facing subset of the profile.
func (p *UserProfile) SearchParams() SearchParams {
	return SearchParams{
		Conditions: p.Conditions,
		Location:   p.Location,
		Age:        p.Age,
	}
}
