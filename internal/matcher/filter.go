package matcher

import (
	_ "embed"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/clinimatch/clinimatch/internal/model"
)

//go:embed regions.yaml
var regionsYAML []byte

type regionTable struct {
	Regions []struct {
		Name   string   `yaml:"name"`
		States []string `yaml:"states"`
		Nearby []string `yaml:"nearby"`
	} `yaml:"regions"`
}

// nearbyStates maps a state to the set of states its regional cluster
// considers nearby. States outside every cluster are absent.
var nearbyStates = loadRegions()

func loadRegions() map[string]map[string]bool {
	var table regionTable
	if err := yaml.Unmarshal(regionsYAML, &table); err != nil {
		// The table is embedded at build time, so this is a programmer error.
		panic("matcher: invalid regions table: " + err.Error())
	}

	out := make(map[string]map[string]bool)
	for _, region := range table.Regions {
		nearby := make(map[string]bool, len(region.Nearby))
		for _, s := range region.Nearby {
			nearby[strings.ToUpper(s)] = true
		}
		for _, s := range region.States {
			out[strings.ToUpper(s)] = nearby
		}
	}
	return out
}

// FilterConfig bounds each relevance bucket. The caps were tuned against
// production traffic; treat them as defaults, not derivations.
type FilterConfig struct {
	NearbyCap     int
	RecruitingCap int
	ActiveCap     int
	BackfillMin   int
	BackfillCap   int
}

// DefaultFilterConfig returns the production bucket caps.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		NearbyCap:     20,
		RecruitingCap: 30,
		ActiveCap:     15,
		BackfillMin:   10,
		BackfillCap:   15,
	}
}

// Filter reduces a raw trial set to a prioritized, size-bounded set for
// translation. Closed trials are dropped unconditionally. The rest are
// bucketed by priority: trials with a site in the user's state (unbounded),
// trials with a site in a nearby state (capped), then by recruitment status
// (capped). If the bucketed total comes up short, extra non-excluded trials
// are appended so sparse regions still get a useful result.
func Filter(trials []model.RawTrial, userState string, cfg FilterConfig) []model.RawTrial {
	userState = strings.ToUpper(strings.TrimSpace(userState))
	nearby := nearbyStates[userState]

	var local, near, recruiting, active []model.RawTrial

	for _, trial := range trials {
		if trial.IsClosed() {
			continue
		}

		switch {
		case trialInState(trial, userState):
			local = append(local, trial)
		case nearby != nil && trialInStates(trial, nearby):
			near = append(near, trial)
		default:
			switch normalizeStatus(trial.Status) {
			case "recruiting", "not yet recruiting":
				recruiting = append(recruiting, trial)
			case "active not recruiting", "enrolling by invitation":
				active = append(active, trial)
			}
		}
	}

	result := make([]model.RawTrial, 0, len(local))
	result = append(result, local...)
	result = append(result, capped(near, cfg.NearbyCap)...)
	result = append(result, capped(recruiting, cfg.RecruitingCap)...)
	result = append(result, capped(active, cfg.ActiveCap)...)

	// Backfill from whatever was cut or unbucketed, append-only so the
	// priority ordering above is preserved.
	if len(result) < cfg.BackfillMin {
		result = backfill(result, trials, cfg.BackfillCap)
	}

	zap.L().Debug("matcher: filter complete",
		zap.Int("input", len(trials)),
		zap.Int("local", len(local)),
		zap.Int("nearby", len(near)),
		zap.Int("recruiting", len(recruiting)),
		zap.Int("active", len(active)),
		zap.Int("output", len(result)),
	)

	return result
}

func capped(trials []model.RawTrial, limit int) []model.RawTrial {
	if limit >= 0 && len(trials) > limit {
		return trials[:limit]
	}
	return trials
}

// backfill appends up to extra non-excluded trials not already selected,
// in input order.
func backfill(selected, all []model.RawTrial, extra int) []model.RawTrial {
	seen := make(map[string]bool, len(selected))
	for _, t := range selected {
		seen[t.NCTID] = true
	}

	added := 0
	for _, trial := range all {
		if added >= extra {
			break
		}
		if trial.IsClosed() || seen[trial.NCTID] {
			continue
		}
		selected = append(selected, trial)
		seen[trial.NCTID] = true
		added++
	}
	return selected
}

func trialInState(trial model.RawTrial, state string) bool {
	if state == "" {
		return false
	}
	for _, loc := range trial.Locations {
		if strings.EqualFold(strings.TrimSpace(loc.State), state) {
			return true
		}
	}
	return false
}

func trialInStates(trial model.RawTrial, states map[string]bool) bool {
	for _, loc := range trial.Locations {
		if states[strings.ToUpper(strings.TrimSpace(loc.State))] {
			return true
		}
	}
	return false
}

// normalizeStatus folds the registry's status spellings ("RECRUITING",
// "Active, not recruiting", "ACTIVE_NOT_RECRUITING") into one form.
func normalizeStatus(status string) string {
	status = strings.ReplaceAll(status, "_", " ")
	status = strings.ReplaceAll(status, ",", "")
	return strings.Join(strings.Fields(strings.ToLower(status)), " ")
}
