package ml_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"news-analyzer/internal/models"
)

// ErrMalformedResponse is returned when a success body does not have the
// expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx answer from the prediction service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Client is a client for the prediction service API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new prediction service client. A zero timeout leaves
// request deadlines to the transport and the caller's context.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// predictionPayload mirrors PredictionResult with pointers so that missing
// required fields can be told apart from zero values.
type predictionPayload struct {
	Label   *string  `json:"label"`
	Score   *float64 `json:"score"`
	Pattern *string  `json:"pattern"`
	Abstain *bool    `json:"abstain"`
}

// Predict sends the input to /predict
func (c *Client) Predict(ctx context.Context, in models.Input) (*models.PredictionResult, error) {
	body, err := c.post(ctx, "/predict", in.Normalize().Request())
	if err != nil {
		return nil, err
	}

	var payload predictionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, malformed(err)
	}
	if payload.Label == nil {
		return nil, fmt.Errorf("%w: missing field label", ErrMalformedResponse)
	}
	if payload.Score == nil {
		return nil, fmt.Errorf("%w: missing field score", ErrMalformedResponse)
	}
	if *payload.Score < 0 || *payload.Score > 1 {
		return nil, fmt.Errorf("%w: score %v out of range", ErrMalformedResponse, *payload.Score)
	}

	result := &models.PredictionResult{
		Label: *payload.Label,
		Score: *payload.Score,
		Raw:   json.RawMessage(body),
	}
	if payload.Pattern != nil {
		result.Pattern = *payload.Pattern
	}
	if payload.Abstain != nil {
		result.Abstain = *payload.Abstain
	}

	c.logger.Debug("Prediction received",
		zap.String("label", result.Label),
		zap.Float64("score", result.Score),
		zap.Bool("abstain", result.Abstain))

	return result, nil
}

// Explain sends the input to /explain
func (c *Client) Explain(ctx context.Context, in models.Input) (*models.ExplanationResult, error) {
	body, err := c.post(ctx, "/explain", in.Normalize().Request())
	if err != nil {
		return nil, err
	}

	var result models.ExplanationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformed(err)
	}

	c.logger.Debug("Explanation received", zap.Int("terms", len(result.TopTerms)))

	return &result, nil
}

// Root fetches the service root, used as a health probe
func (c *Client) Root(ctx context.Context) (any, error) {
	body, err := c.get(ctx, "/")
	if err != nil {
		return nil, err
	}

	var result any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformed(err)
	}

	return result, nil
}

// Metrics retrieves the per-label counters kept by the service
func (c *Client) Metrics(ctx context.Context) (*models.Metrics, error) {
	body, err := c.get(ctx, "/metrics")
	if err != nil {
		return nil, err
	}

	var result models.Metrics
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, malformed(err)
	}

	return &result, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "POST "+path)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	return c.do(req, "GET "+path)
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode}
		}
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}

	return body, nil
}

// errorDetail extracts the "detail" string of an error body, if any.
func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	detail, ok := payload.Detail.(string)
	if !ok {
		return ""
	}
	return detail
}

func malformed(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Errorf("%w: field %s has type %s, want %s", ErrMalformedResponse, typeErr.Field, typeErr.Value, typeErr.Type)
	}
	return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
}
