// Package matcher implements the matching pipeline: cache key derivation,
// relevance filtering, the bounded translation pool, and result assembly.
package matcher

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/clinimatch/clinimatch/internal/model"
)

// keySchemaVersion is baked into every key so a change to the key layout
// invalidates the whole cache rather than aliasing old entries.
const keySchemaVersion = "1.0"

// keyPayload is the normalized search fingerprint. Field order is fixed by
// the struct definition, which keeps the JSON serialization deterministic.
type keyPayload struct {
	Conditions []string `json:"conditions"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Country    string   `json:"country"`
	AgeBucket  string   `json:"age_bucket"`
	Version    string   `json:"version"`
}

var foldCaser = cases.Fold()

func normalize(s string) string {
	return foldCaser.String(strings.TrimSpace(s))
}

// CacheKey derives a stable fingerprint for a profile's search intent.
// Profiles that differ only in condition order or letter case map to the
// same key; profiles in different age buckets map to different keys.
func CacheKey(profile *model.UserProfile) string {
	conditions := make([]string, 0, len(profile.Conditions))
	for _, c := range profile.Conditions {
		conditions = append(conditions, normalize(c))
	}
	sort.Strings(conditions)

	payload := keyPayload{
		Conditions: conditions,
		City:       normalize(profile.Location.City),
		State:      normalize(profile.Location.State),
		Country:    normalize(profile.Location.Country),
		AgeBucket:  ageBucket(profile.Age),
		Version:    keySchemaVersion,
	}

	// Struct marshaling preserves field order, so this is deterministic.
	raw, _ := json.Marshal(payload)

	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// ageBucket coarsens age into five ranges so near-identical searches share
// cache entries.
func ageBucket(age int) string {
	switch {
	case age < 18:
		return "under_18"
	case age <= 29:
		return "18_29"
	case age <= 49:
		return "30_49"
	case age <= 64:
		return "50_64"
	default:
		return "65_plus"
	}
}
