// Package churnapi is the HTTP client for the churn prediction service.
//
// Metadata reads (stats, feature importance, benchmark) are retried on transport
// errors and 5xx responses. Scoring calls (predict, test-sample) are sent once;
// their failures go straight back to the caller.
package churnapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/models"
)

// Client provides access to the churn prediction API
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	now            func() time.Time
}

// ClientConfig holds tunables for the HTTP client.
type ClientConfig struct {
	MaxRetries          int
	RetryDelayBase      time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// NewClient creates a new API client. baseURL includes the /api prefix.
func NewClient(baseURL string, timeout time.Duration, cfgs ...ClientConfig) *Client {
	cfg := ClientConfig{
		MaxRetries:          3,
		RetryDelayBase:      time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.MaxRetries > 0 {
			cfg.MaxRetries = c.MaxRetries
		}
		if c.RetryDelayBase > 0 {
			cfg.RetryDelayBase = c.RetryDelayBase
		}
		if c.MaxIdleConns > 0 {
			cfg.MaxIdleConns = c.MaxIdleConns
		}
		if c.MaxIdleConnsPerHost > 0 {
			cfg.MaxIdleConnsPerHost = c.MaxIdleConnsPerHost
		}
		if c.IdleConnTimeout > 0 {
			cfg.IdleConnTimeout = c.IdleConnTimeout
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
			},
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		now:            time.Now,
	}
}

// FetchStats retrieves model statistics. An offline model is reported as a
// ServerError with status 503 and the server's message as detail.
func (c *Client) FetchStats(ctx context.Context) (*models.ModelStats, error) {
	var raw models.RawStats
	if err := c.getJSON(ctx, "stats", "/stats", &raw); err != nil {
		return nil, err
	}
	if raw.Offline() {
		detail := raw.Message
		if detail == "" {
			detail = raw.Status
		}
		return nil, &ServerError{Op: "stats", Status: http.StatusServiceUnavailable, Detail: detail}
	}
	stats := raw.Stats()
	return &stats, nil
}

// FetchFeatureImportance retrieves feature weights in server order.
func (c *Client) FetchFeatureImportance(ctx context.Context) ([]models.FeatureImportance, error) {
	var features []models.FeatureImportance
	if err := c.getJSON(ctx, "feature-importance", "/feature-importance", &features); err != nil {
		return nil, err
	}
	for i := range features {
		if err := features[i].Validate(); err != nil {
			return nil, &ParseError{Op: "feature-importance", Err: fmt.Errorf("feature %d: %w", i, err)}
		}
	}
	return features, nil
}

// FetchBenchmark retrieves algorithm benchmark entries in server order, clamped to valid ranges.
func (c *Client) FetchBenchmark(ctx context.Context) ([]models.BenchmarkEntry, error) {
	var entries []models.BenchmarkEntry
	if err := c.getJSON(ctx, "benchmark", "/benchmark", &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i] = entries[i].Clamp()
		if err := entries[i].Validate(); err != nil {
			return nil, &ParseError{Op: "benchmark", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
	}
	return entries, nil
}

// Predict uploads a CSV as multipart field "file" and returns the scored result.
func (c *Client) Predict(ctx context.Context, filename string, content io.Reader) (*models.PredictionResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	return c.postResult(ctx, "predict", "/predict", &body, mw.FormDataContentType())
}

// TestSample asks the server to score its canned dataset.
func (c *Client) TestSample(ctx context.Context) (*models.PredictionResult, error) {
	return c.postResult(ctx, "test-sample", "/test-sample", nil, "")
}

func (c *Client) postResult(ctx context.Context, op, path string, body io.Reader, contentType string) (*models.PredictionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(op, resp)
	}

	var raw models.RawResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	result, err := models.Normalize(raw, c.now())
	if err != nil {
		return nil, &ParseError{Op: op, Err: err}
	}
	logger.Debug("%s returned %d predictions (summary: %s)", op, len(result.Predictions), result.SummarySource)
	return result, nil
}

func (c *Client) getJSON(ctx context.Context, op, path string, out interface{}) error {
	resp, err := c.doRequest(ctx, op, c.baseURL+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ParseError{Op: op, Err: err}
	}
	return nil
}

// doRequest performs a GET with retry on transport errors and 5xx responses.
// 4xx responses are returned as ServerError without retrying.
func (c *Client) doRequest(ctx context.Context, op, url string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			delay := c.retryDelayBase * time.Duration(i)
			logger.Debug("Retrying %s in %v (attempt %d/%d): %v", op, delay, i+1, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, &NetworkError{Op: op, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s request: %w", op, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &NetworkError{Op: op, Err: err}
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = serverError(op, resp)
			resp.Body.Close()
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := serverError(op, resp)
			resp.Body.Close()
			return nil, err
		}

		return resp, nil
	}

	return nil, lastErr
}

// serverError reads the {detail} body of a failed response. FastAPI validation
// errors send detail as a list; it is kept as raw JSON text in that case.
func serverError(op string, resp *http.Response) *ServerError {
	se := &ServerError{Op: op, Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(data) == 0 {
		return se
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return se
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		se.Detail = detail
	} else {
		se.Detail = string(body.Detail)
	}
	return se
}
