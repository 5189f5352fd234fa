package matcher

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/internal/store"
	"github.com/clinimatch/clinimatch/internal/translate"
)

// --- Trial Source Mock ---

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Search(ctx context.Context, params model.SearchParams, maxResults int) ([]model.RawTrial, error) {
	args := m.Called(ctx, params, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RawTrial), args.Error(1)
}

func (m *mockSource) GetByNCTID(ctx context.Context, nctID string) (*model.RawTrial, error) {
	args := m.Called(ctx, nctID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RawTrial), args.Error(1)
}

// --- Translator Mock ---

type mockTranslator struct {
	mock.Mock
}

func (m *mockTranslator) Translate(ctx context.Context, req translate.Request) (*model.TrialTranslation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TrialTranslation), args.Error(1)
}

// --- Cache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetMatches(ctx context.Context, key string) (*model.MatchingResult, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MatchingResult), args.Error(1)
}

func (m *mockCache) PutMatches(ctx context.Context, key string, result *model.MatchingResult, ttl time.Duration) error {
	args := m.Called(ctx, key, result, ttl)
	return args.Error(0)
}

func (m *mockCache) Stats(ctx context.Context) (store.CacheStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(store.CacheStats), args.Error(1)
}

func (m *mockCache) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) Clear(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCache) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// goodTranslation is a well-formed model translation for stubbing.
func goodTranslation() *model.TrialTranslation {
	return &model.TrialTranslation{
		SimplifiedDescription: "A study testing a new treatment.",
		EligibilitySimplified: "Adults with the condition.",
		TimeCommitment:        "Monthly visits for a year.",
		KeyBenefits:           "Free treatment and checkups.",
	}
}
