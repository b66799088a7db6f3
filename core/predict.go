package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/ingest"
	"github.com/huangsam/retest/schema"
	"golang.org/x/sync/errgroup"
)

// Reasons for falling back to the rule-based score.
const (
	fallbackTimeout       = "timeout"
	fallbackError         = "error"
	fallbackInvalid       = "invalid_response"
	fallbackLowConfidence = "low_confidence"
)

// PredictorBlender combines rule-based scores with an external failure predictor.
type PredictorBlender struct {
	predictor     contract.Predictor
	workers       int
	timeout       time.Duration
	minConfidence float64
	thresholds    map[schema.Bucket]float64
}

// NewPredictorBlender creates a blender using the predictor settings of cfg.
func NewPredictorBlender(predictor contract.Predictor, cfg *contract.Config) *PredictorBlender {
	return &PredictorBlender{
		predictor:     predictor,
		workers:       max(cfg.Workers, 1),
		timeout:       cfg.PredictorTimeout,
		minConfidence: cfg.PredictorMinConfidence,
		thresholds:    cfg.Thresholds(),
	}
}

type predictionOutcome struct {
	prediction schema.Prediction
	reason     string // empty when the prediction is usable
}

// Blend asks the predictor about every test with a non-zero rule score and
// mixes confident answers into the score. Calls that failed, timed out or
// answered below the confidence floor are reported in a single aggregated
// warning. Scores are updated in place.
func (b *PredictorBlender) Blend(ctx context.Context, catalog *schema.Catalog, impact *schema.ImpactAnalysis, scores []schema.RelevanceScore) ([]schema.Warning, error) {
	if b.predictor == nil {
		return nil, nil
	}

	tests := catalog.TestIndex()
	outcomes := make([]*predictionOutcome, len(scores))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, s := range scores {
		if s.RuleScore <= 0 {
			continue
		}
		t := tests[s.TestID]
		req := schema.PredictionRequest{
			TestID:     t.ID,
			ChangeID:   impact.ChangeID,
			Components: schema.UniqueSorted(t.Covers),
			Features:   schema.UniqueSorted(t.Features),
			RuleScore:  s.RuleScore,
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = b.predict(gctx, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reasons := make(map[string]int)
	var fellBack []string
	for i, o := range outcomes {
		if o == nil {
			continue
		}
		s := &scores[i]
		if o.reason != "" {
			predictorFallbacks.WithLabelValues(o.reason).Inc()
			reasons[o.reason]++
			fellBack = append(fellBack, s.TestID)
			continue
		}
		c, p := o.prediction.Confidence, o.prediction.Probability
		s.Score = schema.Clamp01((1-c)*s.RuleScore + c*p)
		s.Bucket = schema.BucketFor(s.Score, b.thresholds)
		s.Breakdown[schema.BreakdownPredictor] = p
		s.PredictorUsed = true
	}

	if len(fellBack) == 0 {
		return nil, nil
	}
	var warns warnings
	warns.add(schema.WarnPredictorUnavailable,
		fmt.Sprintf("predictor unavailable for %d test(s), using rule-based scores (%s)", len(fellBack), formatCounts(reasons)),
		fellBack...)
	return warns.items(), nil
}

// predict calls the predictor under the per-call timeout and classifies the answer.
func (b *PredictorBlender) predict(ctx context.Context, req schema.PredictionRequest) *predictionOutcome {
	pred, err := callWithTimeout(ctx, b.timeout, func(ctx context.Context) (schema.Prediction, error) {
		return b.predictor.Predict(ctx, req)
	})
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &predictionOutcome{reason: fallbackTimeout}
	case err != nil:
		contract.LogWarn(fmt.Sprintf("Predictor failed for %s", req.TestID), err)
		return &predictionOutcome{reason: fallbackError}
	}
	if err := ingest.ValidateStruct(pred); err != nil {
		return &predictionOutcome{reason: fallbackInvalid}
	}
	if pred.Confidence < b.minConfidence {
		return &predictionOutcome{reason: fallbackLowConfidence}
	}
	return &predictionOutcome{prediction: pred}
}
