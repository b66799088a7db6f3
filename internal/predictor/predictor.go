// Package predictor has the failure predictors that can be blended into
// relevance scores.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/internal/ingest"
	"github.com/huangsam/retest/schema"
)

// Default prediction used when no predictor is configured. Its confidence is
// below any sensible minimum so rule-based scores are kept.
const (
	DefaultProbability = 0.5
	DefaultConfidence  = 0.1
)

// maxResponseBytes bounds how much of a predictor response is read.
const maxResponseBytes = 1 << 20

// Constant returns the same prediction for every test.
type Constant struct {
	Prediction schema.Prediction
}

var _ contract.Predictor = &Constant{} // Compile-time check

// NewConstant returns the low-confidence default predictor.
func NewConstant() *Constant {
	return &Constant{Prediction: schema.Prediction{Probability: DefaultProbability, Confidence: DefaultConfidence}}
}

// Predict implements contract.Predictor.
func (c *Constant) Predict(ctx context.Context, _ schema.PredictionRequest) (schema.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return schema.Prediction{}, err
	}
	return c.Prediction, nil
}

// HTTPClient asks a remote service for predictions. Each request is a JSON
// PredictionRequest posted to the endpoint, answered by a JSON Prediction.
type HTTPClient struct {
	endpoint string
	client   *http.Client
}

var _ contract.Predictor = &HTTPClient{} // Compile-time check

// NewHTTPClient creates a client for endpoint. The timeout caps a whole
// request including reading the body.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Predict implements contract.Predictor.
func (c *HTTPClient) Predict(ctx context.Context, req schema.PredictionRequest) (schema.Prediction, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return schema.Prediction{}, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return schema.Prediction{}, fmt.Errorf("failed to build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return schema.Prediction{}, fmt.Errorf("%w: %w", contract.ErrPredictorUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return schema.Prediction{}, fmt.Errorf("%w: predictor returned %s", contract.ErrPredictorUnavailable, resp.Status)
	}

	var pred schema.Prediction
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&pred); err != nil {
		return schema.Prediction{}, fmt.Errorf("failed to decode prediction for %s: %w", req.TestID, err)
	}
	if err := ingest.ValidateStruct(pred); err != nil {
		return schema.Prediction{}, fmt.Errorf("invalid prediction for %s: %w", req.TestID, err)
	}
	return pred, nil
}
