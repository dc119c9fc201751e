package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMissingScore marks a predictor response without an anomaly_score
	ErrMissingScore = errors.New("inference: response has no anomaly_score")
	// ErrInsufficientHistory is reported when fewer points than the model window exist
	ErrInsufficientHistory = errors.New("inference: insufficient history")
)

// Prediction is what the external model returns for one sequence
type Prediction struct {
	AnomalyScore      float64
	FeatureImportance []float64
}

// Predictor scores a feature sequence (rows oldest first, columns in catalog order)
type Predictor interface {
	Predict(ctx context.Context, sequence [][]float64) (Prediction, error)
}

type predictRequest struct {
	Sequence [][]float64 `json:"sequence"`
}

type predictResponse struct {
	AnomalyScore      *float64  `json:"anomaly_score"`
	FeatureImportance []float64 `json:"feature_importance,omitempty"`
}

// HTTPPredictor calls the ML service's POST /predict endpoint
type HTTPPredictor struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPredictor(baseURL string, timeout time.Duration) *HTTPPredictor {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPredictor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, sequence [][]float64) (Prediction, error) {
	body, err := json.Marshal(predictRequest{Sequence: sequence})
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to marshal sequence: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to call ML service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, fmt.Errorf("ML service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Prediction{}, fmt.Errorf("failed to decode ML response: %w", err)
	}
	if out.AnomalyScore == nil {
		return Prediction{}, ErrMissingScore
	}
	score := *out.AnomalyScore
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Prediction{}, fmt.Errorf("ML service returned non-finite score %v", score)
	}

	return Prediction{
		AnomalyScore:      math.Max(0, math.Min(1, score)),
		FeatureImportance: out.FeatureImportance,
	}, nil
}
