package matcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/internal/registry"
	"github.com/clinimatch/clinimatch/internal/store"
	"github.com/clinimatch/clinimatch/internal/translate"
)

// SourceError classifies an unrecoverable trial-source failure. Translation
// and cache failures never produce one; they degrade in place.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string {
	return "matcher: trial source failed: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

// Config tunes one Matcher instance.
type Config struct {
	Filter     FilterConfig
	Workers    int
	MaxResults int
	CacheTTL   time.Duration
}

// Matcher runs the full pipeline: cache lookup, registry search, relevance
// filtering, concurrent translation, and result assembly. All collaborators
// are injected at construction.
type Matcher struct {
	source registry.Client
	pool   *Pool
	cache  store.CacheStore
	cfg    Config
}

// New creates a Matcher. cache may be nil to disable caching entirely.
func New(source registry.Client, translator translate.Translator, cache store.CacheStore, cfg Config) *Matcher {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.Filter == (FilterConfig{}) {
		cfg.Filter = DefaultFilterConfig()
	}
	return &Matcher{
		source: source,
		pool:   NewPool(translator, cfg.Workers),
		cache:  cache,
		cfg:    cfg,
	}
}

// FindMatches resolves a profile to translated trial matches. A cache hit
// short-circuits before any registry or model call. A registry miss (no
// trials for the query) yields an empty result, not an error; only an
// unrecoverable source failure returns a SourceError.
func (m *Matcher) FindMatches(ctx context.Context, profile *model.UserProfile) (*model.MatchingResult, error) {
	start := time.Now()
	params := profile.SearchParams()
	key := CacheKey(profile)

	if cached := m.lookupCache(ctx, key); cached != nil {
		cached.Cached = true
		cached.ProcessingTime = time.Since(start)
		zap.L().Info("matcher: cache hit", zap.String("key", key))
		return cached, nil
	}

	trials, err := m.source.Search(ctx, params, m.cfg.MaxResults)
	if err != nil {
		if errors.Is(err, registry.ErrNoTrials) {
			zap.L().Info("matcher: no trials for query", zap.Strings("conditions", params.Conditions))
			return &model.MatchingResult{
				ProcessingTime: time.Since(start),
				SearchParams:   params,
			}, nil
		}
		return nil, &SourceError{Err: err}
	}

	filtered := Filter(trials, profile.Location.State, m.cfg.Filter)
	matches, rate := m.pool.Translate(ctx, filtered)

	result := &model.MatchingResult{
		Matches:                  matches,
		TotalFound:               len(trials),
		ProcessingTime:           time.Since(start),
		SearchParams:             params,
		AITranslationSuccessRate: rate,
	}

	m.storeCache(ctx, key, result)

	zap.L().Info("matcher: matching complete",
		zap.Int("found", len(trials)),
		zap.Int("filtered", len(filtered)),
		zap.Int("matches", len(matches)),
		zap.Float64("success_rate", rate),
		zap.Duration("elapsed", result.ProcessingTime),
	)

	return result, nil
}

// GetTrial fetches and translates a single trial by registry identifier,
// bypassing the filter. Returns (nil, nil) when the registry has no such
// trial.
func (m *Matcher) GetTrial(ctx context.Context, nctID string) (*model.TrialMatch, error) {
	trial, err := m.source.GetByNCTID(ctx, nctID)
	if err != nil {
		if errors.Is(err, registry.ErrNoTrials) {
			return nil, nil
		}
		return nil, &SourceError{Err: err}
	}

	match, _ := m.pool.translateOne(ctx, trial)
	return &match, nil
}

// lookupCache returns the cached result for key, or nil. Read failures are
// logged and treated as misses.
func (m *Matcher) lookupCache(ctx context.Context, key string) *model.MatchingResult {
	if m.cache == nil {
		return nil
	}
	result, err := m.cache.GetMatches(ctx, key)
	if err != nil {
		zap.L().Warn("matcher: cache read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return result
}

// storeCache persists a result best-effort. A write failure never fails the
// request.
func (m *Matcher) storeCache(ctx context.Context, key string, result *model.MatchingResult) {
	if m.cache == nil {
		return
	}
	if err := m.cache.PutMatches(ctx, key, result, m.cfg.CacheTTL); err != nil {
		zap.L().Warn("matcher: cache write failed", zap.String("key", key), zap.Error(err))
	}
}
