package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Analysis is the oracle's view of a learner's current engagement state.
type Analysis struct {
	EngagementScore     float64            `json:"engagement_score"`
	AttentionScore      *float64           `json:"attention_score"`
	Emotion             string             `json:"emotion"`
	EmotionDistribution map[string]float64 `json:"emotion_distribution"`
	NeedsIntervention   bool               `json:"needs_intervention"`
	SuggestedType       string             `json:"suggested_intervention"`
	IsInactive          bool               `json:"is_inactive"`
}

// Oracle scores a learner's live engagement from raw signals. It may be slow
// or down; callers are expected to bound the call and fall back to stored
// telemetry.
type Oracle interface {
	ScoreEngagement(ctx context.Context, learnerID uuid.UUID) (*Analysis, error)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{baseURL: baseURL, timeout: timeout, httpClient: hc}, nil
}

type analysisEnvelope struct {
	Success  bool      `json:"success"`
	Analysis *Analysis `json:"analysis"`
	Message  string    `json:"message"`
}

func (c *Client) ScoreEngagement(ctx context.Context, learnerID uuid.UUID) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/analyze/engagement?learnerId=%s",
		c.baseURL, url.QueryEscape(learnerID.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring oracle: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("scoring oracle: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring oracle: status %d", resp.StatusCode)
	}

	var env analysisEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("scoring oracle: decode: %w", err)
	}
	if !env.Success || env.Analysis == nil {
		return nil, fmt.Errorf("scoring oracle: no analysis (%s)", env.Message)
	}
	return env.Analysis, nil
}
