package registry

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/clinimatch/clinimatch/internal/model"
)

// studiesResponse is the envelope of GET /studies.
type studiesResponse struct {
	Studies    []study `json:"studies"`
	TotalCount int     `json:"totalCount"`
}

// study mirrors the v2 API's protocolSection layout, limited to the modules
// this service reads.
type study struct {
	ProtocolSection struct {
		IdentificationModule struct {
			NCTID      string `json:"nctId"`
			BriefTitle string `json:"briefTitle"`
		} `json:"identificationModule"`
		DescriptionModule struct {
			BriefSummary        string `json:"briefSummary"`
			DetailedDescription string `json:"detailedDescription"`
		} `json:"descriptionModule"`
		EligibilityModule struct {
			EligibilityCriteria string `json:"eligibilityCriteria"`
		} `json:"eligibilityModule"`
		ContactsLocationsModule struct {
			Locations []struct {
				Facility string `json:"facility"`
				City     string `json:"city"`
				State    string `json:"state"`
				Country  string `json:"country"`
				Zip      string `json:"zip"`
			} `json:"locations"`
			CentralContacts []struct {
				Name  string `json:"name"`
				Phone string `json:"phone"`
				Email string `json:"email"`
			} `json:"centralContacts"`
			OverallOfficials []struct {
				Name string `json:"name"`
			} `json:"overallOfficials"`
		} `json:"contactsLocationsModule"`
		DesignModule struct {
			StudyType string   `json:"studyType"`
			Phases    []string `json:"phases"`
		} `json:"designModule"`
		StatusModule struct {
			OverallStatus   string `json:"overallStatus"`
			StartDateStruct struct {
				Date string `json:"date"`
			} `json:"startDateStruct"`
			CompletionDateStruct struct {
				Date string `json:"date"`
			} `json:"completionDateStruct"`
		} `json:"statusModule"`
		SponsorCollaboratorsModule struct {
			LeadSponsor struct {
				Name string `json:"name"`
			} `json:"leadSponsor"`
		} `json:"sponsorCollaboratorsModule"`
		ConditionsModule struct {
			Conditions []string `json:"conditions"`
		} `json:"conditionsModule"`
		ArmsInterventionsModule struct {
			Interventions []struct {
				Name string `json:"name"`
			} `json:"interventions"`
		} `json:"armsInterventionsModule"`
	} `json:"protocolSection"`
}

// parseStudy converts one registry record into a RawTrial.
func parseStudy(s study) (*model.RawTrial, error) {
	p := s.ProtocolSection

	if p.IdentificationModule.NCTID == "" {
		return nil, eris.New("study missing nctId")
	}

	criteria := p.EligibilityModule.EligibilityCriteria
	inclusion, exclusion := splitEligibilityCriteria(criteria)

	var locations []model.TrialLocation
	for _, loc := range p.ContactsLocationsModule.Locations {
		// Skip entries with neither a facility nor a city.
		if loc.Facility == "" && loc.City == "" {
			continue
		}
		locations = append(locations, model.TrialLocation{
			Facility: loc.Facility,
			City:     loc.City,
			State:    loc.State,
			Country:  loc.Country,
			ZipCode:  loc.Zip,
		})
	}

	var contact model.ContactInfo
	if cc := p.ContactsLocationsModule.CentralContacts; len(cc) > 0 {
		contact = model.ContactInfo{Name: cc[0].Name, Phone: cc[0].Phone, Email: cc[0].Email}
	} else if oo := p.ContactsLocationsModule.OverallOfficials; len(oo) > 0 {
		contact = model.ContactInfo{Name: oo[0].Name}
	}

	phase := ""
	if len(p.DesignModule.Phases) > 0 {
		phase = p.DesignModule.Phases[0]
	}

	interventions := make([]string, 0, len(p.ArmsInterventionsModule.Interventions))
	for _, iv := range p.ArmsInterventionsModule.Interventions {
		interventions = append(interventions, iv.Name)
	}

	return &model.RawTrial{
		NCTID:               p.IdentificationModule.NCTID,
		Title:               p.IdentificationModule.BriefTitle,
		BriefSummary:        p.DescriptionModule.BriefSummary,
		DetailedDescription: p.DescriptionModule.DetailedDescription,
		EligibilityCriteria: criteria,
		InclusionCriteria:   inclusion,
		ExclusionCriteria:   exclusion,
		Locations:           locations,
		Contact:             contact,
		StudyType:           p.DesignModule.StudyType,
		Phase:               phase,
		Status:              p.StatusModule.OverallStatus,
		StartDate:           p.StatusModule.StartDateStruct.Date,
		CompletionDate:      p.StatusModule.CompletionDateStruct.Date,
		Sponsor:             p.SponsorCollaboratorsModule.LeadSponsor.Name,
		Conditions:          p.ConditionsModule.Conditions,
		Interventions:       interventions,
	}, nil
}

// splitEligibilityCriteria decomposes free-text criteria into inclusion and
// exclusion bullet lists, splitting on the "Exclusion Criteria" header.
func splitEligibilityCriteria(text string) (inclusion, exclusion []string) {
	if text == "" {
		return nil, nil
	}

	lower := strings.ToLower(text)
	var inclusionText, exclusionText string

	if idx := strings.Index(lower, "exclusion criteria"); idx >= 0 {
		inclusionText = text[:idx]
		exclusionText = text[idx+len("exclusion criteria"):]
	} else if strings.HasPrefix(lower, "exclusion") {
		exclusionText = text
	} else {
		inclusionText = text
	}

	inclusionText = stripHeader(inclusionText, "inclusion criteria")
	if inclusionText != "" {
		inclusion = parseCriteriaList(inclusionText)
	}
	if exclusionText != "" {
		exclusion = parseCriteriaList(exclusionText)
	}
	return inclusion, exclusion
}

func stripHeader(text, header string) string {
	lower := strings.ToLower(text)
	if idx := strings.Index(lower, header); idx >= 0 {
		text = text[:idx] + text[idx+len(header):]
	}
	return strings.TrimSpace(text)
}

var bulletPrefix = regexp.MustCompile(`^(\*|-|•|\d+\.)\s*`)

// parseCriteriaList splits a criteria block into individual items on bullet
// markers, joining continuation lines.
func parseCriteriaList(text string) []string {
	var criteria []string
	var current string

	flush := func() {
		c := strings.TrimSpace(current)
		if len(c) > 1 {
			criteria = append(criteria, c)
		}
		current = ""
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if bulletPrefix.MatchString(line) {
			flush()
			current = bulletPrefix.ReplaceAllString(line, "")
		} else if current != "" {
			current += " " + line
		} else {
			current = line
		}
	}
	flush()

	return criteria
}

var (
	ageRangePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*(?:-|to)\s*(\d+)\s*years?`),
		regexp.MustCompile(`ages?\s*(\d+)\s*(?:-|to)\s*(\d+)`),
		regexp.MustCompile(`between\s*(\d+)\s*and\s*(\d+)`),
	}
	minAgePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(\d+)\s*years?\s*or\s*older`),
		regexp.MustCompile(`age\s*(\d+)\s*or\s*older`),
		regexp.MustCompile(`minimum\s*age\s*(\d+)`),
		regexp.MustCompile(`at\s*least\s*(\d+)\s*years?`),
	}
)

// ageEligible scans free-text criteria for age bounds. This is a coarse
// screen: when no age language is found the trial is assumed eligible.
func ageEligible(criteria string, age int) bool {
	text := strings.ToLower(criteria)

	for _, re := range ageRangePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			minAge, _ := strconv.Atoi(m[1])
			maxAge, _ := strconv.Atoi(m[2])
			return age >= minAge && age <= maxAge
		}
	}

	for _, re := range minAgePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			minAge, _ := strconv.Atoi(m[1])
			return age >= minAge
		}
	}

	return true
}
