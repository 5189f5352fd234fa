package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clinimatch/clinimatch/internal/matcher"
	"github.com/clinimatch/clinimatch/internal/registry"
	"github.com/clinimatch/clinimatch/internal/store"
	"github.com/clinimatch/clinimatch/internal/translate"
	"github.com/clinimatch/clinimatch/pkg/anthropic"
)

// env bundles the wired collaborators a command needs.
type env struct {
	Matcher *matcher.Matcher
	Cache   store.CacheStore
}

func (e *env) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache store", zap.Error(err))
		}
	}
}

// initStore opens and migrates the configured cache backend.
func initStore(ctx context.Context) (store.CacheStore, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initMatcher wires the registry client, translator, and cache into a
// Matcher per the loaded config.
func initMatcher(ctx context.Context) (*env, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic.key is required (CLINIMATCH_ANTHROPIC_KEY)")
	}

	var cache store.CacheStore
	if !cfg.Cache.Disabled {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		cache = st
	}

	source := registry.NewClient(
		registry.WithBaseURL(cfg.Registry.BaseURL),
		registry.WithUserAgent(cfg.Registry.UserAgent),
		registry.WithTimeout(time.Duration(cfg.Registry.TimeoutSecs)*time.Second),
		registry.WithMaxRetries(cfg.Registry.MaxRetries),
	)

	translator := translate.New(anthropic.NewClient(cfg.Anthropic.Key), translate.Options{
		Model:     cfg.Anthropic.Model,
		MaxTokens: int64(cfg.Translate.MaxTokens),
		Timeout:   time.Duration(cfg.Translate.TimeoutSecs) * time.Second,
	})

	m := matcher.New(source, translator, cache, matcher.Config{
		Filter: matcher.FilterConfig{
			NearbyCap:     cfg.Match.NearbyCap,
			RecruitingCap: cfg.Match.RecruitingCap,
			ActiveCap:     cfg.Match.ActiveCap,
			BackfillMin:   cfg.Match.BackfillMin,
			BackfillCap:   cfg.Match.BackfillCap,
		},
		Workers:    cfg.Translate.Workers,
		MaxResults: cfg.Registry.MaxResults,
		CacheTTL:   time.Duration(cfg.Cache.TTLHours) * time.Hour,
	})

	return &env{Matcher: m, Cache: cache}, nil
}
