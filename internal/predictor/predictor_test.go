package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/huangsam/retest/internal/contract"
	"github.com/huangsam/retest/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstant(t *testing.T) {
	p := NewConstant()
	pred, err := p.Predict(context.Background(), schema.PredictionRequest{TestID: "t"})
	require.NoError(t, err)
	assert.Equal(t, DefaultProbability, pred.Probability)
	assert.Equal(t, DefaultConfidence, pred.Confidence)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Predict(ctx, schema.PredictionRequest{TestID: "t"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClient(t *testing.T) {
	var got schema.PredictionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(schema.Prediction{Probability: 0.7, Confidence: 0.9})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	pred, err := c.Predict(context.Background(), schema.PredictionRequest{
		TestID:     "test_checkout",
		ChangeID:   "c1",
		Components: []string{"payments"},
		RuleScore:  0.6,
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, pred.Probability, 1e-9)
	assert.InDelta(t, 0.9, pred.Confidence, 1e-9)
	assert.Equal(t, "test_checkout", got.TestID)
	assert.Equal(t, []string{"payments"}, got.Components)
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		isUnav  bool
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			isUnav: true,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
		},
		{
			name: "out of range",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"probability": 1.5, "confidence": 0.9}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, time.Second).Predict(context.Background(), schema.PredictionRequest{TestID: "t"})
			require.Error(t, err)
			assert.Equal(t, tt.isUnav, isUnavailable(err))
		})
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPClient(srv.URL, 50*time.Millisecond).Predict(context.Background(), schema.PredictionRequest{TestID: "t"})
	require.Error(t, err)
	assert.True(t, isUnavailable(err))
}

func isUnavailable(err error) bool {
	return errors.Is(err, contract.ErrPredictorUnavailable)
}
