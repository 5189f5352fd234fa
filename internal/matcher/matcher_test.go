package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/internal/registry"
)

func newTestMatcher(source *mockSource, translator *mockTranslator, cache *mockCache) *Matcher {
	if cache == nil {
		return New(source, translator, nil, Config{Workers: 2})
	}
	return New(source, translator, cache, Config{Workers: 2})
}

func TestFindMatches_CacheHitShortCircuits(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}
	cache := &mockCache{}

	cached := &model.MatchingResult{
		Matches:    []model.TrialMatch{{NCTID: "NCT1"}},
		TotalFound: 1,
	}
	cache.On("GetMatches", mock.Anything, mock.Anything).Return(cached, nil)

	m := newTestMatcher(source, translator, cache)
	profile := testProfile(t, 45, []string{"diabetes"})

	result, err := m.FindMatches(context.Background(), profile)
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.Len(t, result.Matches, 1)
	source.AssertNotCalled(t, "Search")
	translator.AssertNotCalled(t, "Translate")
	cache.AssertNotCalled(t, "PutMatches")
}

func TestFindMatches_CacheMissRunsPipeline(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}
	cache := &mockCache{}

	cache.On("GetMatches", mock.Anything, mock.Anything).Return(nil, nil)
	cache.On("PutMatches", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	source.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.RawTrial{
		trial("NCT1", "CA", "Recruiting"),
	}, nil)
	translator.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil)

	m := newTestMatcher(source, translator, cache)
	profile := testProfile(t, 45, []string{"diabetes"})

	result, err := m.FindMatches(context.Background(), profile)
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 1, result.TotalFound)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "NCT1", result.Matches[0].NCTID)
	assert.Equal(t, 1.0, result.AITranslationSuccessRate)
	cache.AssertCalled(t, "PutMatches", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFindMatches_CacheReadFailureIsMiss(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}
	cache := &mockCache{}

	cache.On("GetMatches", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	cache.On("PutMatches", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	source.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.RawTrial{
		trial("NCT1", "CA", "Recruiting"),
	}, nil)
	translator.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil)

	m := newTestMatcher(source, translator, cache)

	result, err := m.FindMatches(context.Background(), testProfile(t, 45, []string{"diabetes"}))
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
}

func TestFindMatches_CacheWriteFailureSwallowed(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}
	cache := &mockCache{}

	cache.On("GetMatches", mock.Anything, mock.Anything).Return(nil, nil)
	cache.On("PutMatches", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	source.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.RawTrial{
		trial("NCT1", "CA", "Recruiting"),
	}, nil)
	translator.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil)

	m := newTestMatcher(source, translator, cache)

	result, err := m.FindMatches(context.Background(), testProfile(t, 45, []string{"diabetes"}))
	require.NoError(t, err)
	assert.Len(t, result.Matches, 1)
}

func TestFindMatches_NoTrialsIsEmptyResult(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	source.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, registry.ErrNoTrials)

	m := newTestMatcher(source, translator, nil)

	result, err := m.FindMatches(context.Background(), testProfile(t, 45, []string{"rare condition"}))
	require.NoError(t, err)

	assert.Empty(t, result.Matches)
	assert.Zero(t, result.TotalFound)
	assert.Zero(t, result.AITranslationSuccessRate)
	translator.AssertNotCalled(t, "Translate")
}

func TestFindMatches_SourceFailureIsTyped(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	source.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	m := newTestMatcher(source, translator, nil)

	_, err := m.FindMatches(context.Background(), testProfile(t, 45, []string{"diabetes"}))
	require.Error(t, err)

	var srcErr *SourceError
	assert.ErrorAs(t, err, &srcErr)
}

// The worked example end to end: one recruiting CA trial, one completed CA
// trial, one recruiting TX trial. Two matches come out, the completed trial
// never reaches the translator.
func TestFindMatches_FilterAndBackfillExample(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	source.On("Search", mock.Anything, mock.Anything, mock.Anything).Return([]model.RawTrial{
		trial("NCT-CA-R", "CA", "Recruiting"),
		trial("NCT-CA-C", "CA", "Completed"),
		trial("NCT-TX-R", "TX", "Recruiting"),
	}, nil)
	translator.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil)

	m := newTestMatcher(source, translator, nil)

	result, err := m.FindMatches(context.Background(), testProfile(t, 45, []string{"diabetes"}))
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalFound)
	require.Len(t, result.Matches, 2)

	ids := map[string]bool{}
	for _, match := range result.Matches {
		ids[match.NCTID] = true
	}
	assert.True(t, ids["NCT-CA-R"])
	assert.True(t, ids["NCT-TX-R"])
	translator.AssertNumberOfCalls(t, "Translate", 2)
}

func TestGetTrial_Found(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	raw := trial("NCT123", "CA", "Recruiting")
	source.On("GetByNCTID", mock.Anything, "NCT123").Return(&raw, nil)
	translator.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil)

	m := newTestMatcher(source, translator, nil)

	match, err := m.GetTrial(context.Background(), "NCT123")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "NCT123", match.NCTID)
	assert.Equal(t, "A study testing a new treatment.", match.SimplifiedDescription)
}

func TestGetTrial_AbsentIsNil(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	source.On("GetByNCTID", mock.Anything, "NCT999").Return(nil, registry.ErrNoTrials)

	m := newTestMatcher(source, translator, nil)

	match, err := m.GetTrial(context.Background(), "NCT999")
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestGetTrial_SourceFailure(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	source.On("GetByNCTID", mock.Anything, "NCT123").Return(nil, errors.New("timeout"))

	m := newTestMatcher(source, translator, nil)

	_, err := m.GetTrial(context.Background(), "NCT123")
	var srcErr *SourceError
	assert.ErrorAs(t, err, &srcErr)
}

func TestGetTrial_TranslationFailureFallsBack(t *testing.T) {
	source := &mockSource{}
	translator := &mockTranslator{}

	raw := trial("NCT123", "CA", "Recruiting")
	raw.BriefSummary = "Short summary."
	source.On("GetByNCTID", mock.Anything, "NCT123").Return(&raw, nil)
	translator.On("Translate", mock.Anything, mock.Anything).Return(nil, errors.New("model down"))

	m := newTestMatcher(source, translator, nil)

	match, err := m.GetTrial(context.Background(), "NCT123")
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Contains(t, match.TimeCommitment, "Time commitment information not available")
}
