package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/internal/translate"
)

func rawTrials(n int) []model.RawTrial {
	trials := make([]model.RawTrial, n)
	for i := range trials {
		trials[i] = model.RawTrial{
			NCTID:               fmt.Sprintf("NCT%05d", i),
			Title:               fmt.Sprintf("Study %d", i),
			BriefSummary:        "A study of an investigational treatment.",
			EligibilityCriteria: "Adults 18 years or older.",
			Status:              "Recruiting",
		}
	}
	return trials
}

func TestPool_EmptyInput(t *testing.T) {
	tr := &mockTranslator{}
	pool := NewPool(tr, 5)

	matches, rate := pool.Translate(context.Background(), nil)

	assert.Empty(t, matches)
	assert.Zero(t, rate)
	tr.AssertNotCalled(t, "Translate")
}

func TestPool_AllSucceed(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil)

	pool := NewPool(tr, 5)
	matches, rate := pool.Translate(context.Background(), rawTrials(8))

	assert.Len(t, matches, 8)
	assert.Equal(t, 1.0, rate)
	for _, m := range matches {
		assert.Equal(t, "A study testing a new treatment.", m.SimplifiedDescription)
	}
}

func TestPool_AllFail_FallbackOnly(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, mock.Anything).Return(nil, errors.New("model unavailable"))

	pool := NewPool(tr, 5)
	matches, rate := pool.Translate(context.Background(), rawTrials(6))

	// Every submitted trial still yields a match.
	assert.Len(t, matches, 6)
	assert.Zero(t, rate)
	for _, m := range matches {
		assert.Contains(t, m.TimeCommitment, "Time commitment information not available")
	}
}

func TestPool_PartialFailure(t *testing.T) {
	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil).Times(2)
	tr.On("Translate", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	pool := NewPool(tr, 1)
	matches, rate := pool.Translate(context.Background(), rawTrials(4))

	assert.Len(t, matches, 4)
	assert.InDelta(t, 0.5, rate, 1e-9)
}

func TestPool_ConcurrencyBounded(t *testing.T) {
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)

	tr := &mockTranslator{}
	tr.On("Translate", mock.Anything, mock.Anything).Return(goodTranslation(), nil).Run(func(mock.Arguments) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()

		mu.Lock()
		inFlight--
		mu.Unlock()
	})

	pool := NewPool(tr, 3)
	matches, _ := pool.Translate(context.Background(), rawTrials(20))

	require.Len(t, matches, 20)
	assert.LessOrEqual(t, peak, 3)
}

func TestPool_FallbackRequestCarriesTrialText(t *testing.T) {
	tr := &mockTranslator{}
	var got translate.Request
	tr.On("Translate", mock.Anything, mock.Anything).Return(nil, errors.New("down")).Run(func(args mock.Arguments) {
		got = args.Get(1).(translate.Request)
	})

	trial := model.RawTrial{
		NCTID:               "NCT00001",
		Title:               "Insulin Study",
		BriefSummary:        "Short summary.",
		EligibilityCriteria: "Adults with type 2 diabetes.",
	}

	pool := NewPool(tr, 1)
	matches, _ := pool.Translate(context.Background(), []model.RawTrial{trial})

	require.Len(t, matches, 1)
	assert.Equal(t, "Insulin Study", got.Title)
	assert.Equal(t, "Short summary.", got.Description)
	// Short text passes through the fallback untruncated.
	assert.Equal(t, "Short summary.", matches[0].SimplifiedDescription)
	assert.Equal(t, "Adults with type 2 diabetes.", matches[0].EligibilitySimplified)
}
