package matcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/clinimatch/clinimatch/internal/model"
	"github.com/clinimatch/clinimatch/internal/translate"
)

// Pool fans trial translations out to a bounded number of concurrent model
// calls. Every submitted trial yields exactly one TrialMatch: a failed or
// timed-out translation falls back to deterministic local text instead of
// dropping the trial or aborting the batch.
type Pool struct {
	translator translate.Translator
	workers    int
}

// NewPool creates a translation pool with at most workers concurrent calls.
func NewPool(translator translate.Translator, workers int) *Pool {
	if workers <= 0 {
		workers = 5
	}
	return &Pool{translator: translator, workers: workers}
}

// Translate processes all trials concurrently and returns the matches in
// completion order along with the fraction that got a real model
// translation. The rate is 0 for an empty input.
func (p *Pool) Translate(ctx context.Context, trials []model.RawTrial) ([]model.TrialMatch, float64) {
	if len(trials) == 0 {
		return nil, 0
	}

	var (
		mu        sync.Mutex
		matches   = make([]model.TrialMatch, 0, len(trials))
		succeeded int
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, trial := range trials {
		trial := trial
		g.Go(func() error {
			match, ok := p.translateOne(ctx, &trial)

			mu.Lock()
			matches = append(matches, match)
			if ok {
				succeeded++
			}
			mu.Unlock()

			// Per-trial failures are absorbed into fallbacks; returning an
			// error here would cancel sibling translations.
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	rate := float64(succeeded) / float64(len(trials))

	zap.L().Info("matcher: translation batch complete",
		zap.Int("trials", len(trials)),
		zap.Int("succeeded", succeeded),
		zap.Float64("success_rate", rate),
	)

	return matches, rate
}

// translateOne produces a match for a single trial, reporting whether the
// translation came from the model rather than the fallback path.
func (p *Pool) translateOne(ctx context.Context, trial *model.RawTrial) (model.TrialMatch, bool) {
	req := translate.Request{
		Title:       trial.Title,
		Criteria:    trial.EligibilityCriteria,
		Description: trial.Description(),
	}

	tr, err := p.translator.Translate(ctx, req)
	if err != nil {
		zap.L().Warn("matcher: translation failed, using fallback",
			zap.String("nct_id", trial.NCTID),
			zap.Error(err),
		)
		return model.NewTrialMatch(trial, translate.Fallback(req)), false
	}

	return model.NewTrialMatch(trial, *tr), !translate.IsFallback(*tr)
}
