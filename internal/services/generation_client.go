package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	apperrors "video_uniquifier_bot/internal/errors"
	"video_uniquifier_bot/internal/metrics"
	"video_uniquifier_bot/internal/utils/retry"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	statusDone = "DONE"
	statusFail = "FAIL"

	maxResponseBytes = 1 << 20
	maxImageBytes    = 32 << 20
)

// FusionBrainClient implements GenerationClient for the FusionBrain
// text-to-image API.
type FusionBrainClient struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
	clock      clockwork.Clock
	breaker    *gobreaker.CircuitBreaker
	fetchRetry retry.Policy
}

// NewFusionBrainClient creates a client for baseURL, e.g.
// "https://api-key.fusionbrain.ai/".
func NewFusionBrainClient(baseURL, apiKey, secretKey string, httpClient *http.Client, clock clockwork.Clock) *FusionBrainClient {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &FusionBrainClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		secretKey:  secretKey,
		httpClient: httpClient,
		clock:      clock,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "fusionbrain",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		}),
		fetchRetry: retry.Policy{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond},
	}
}

type apiResponse struct {
	status int
	body   []byte
}

// do sends req through the circuit breaker. Transport failures and 5xx
// responses count against the breaker; other statuses are returned as-is.
func (c *FusionBrainClient) do(req *http.Request) (apiResponse, error) {
	req.Header.Set("X-Key", "Key "+c.apiKey)
	req.Header.Set("X-Secret", "Secret "+c.secretKey)

	var resp apiResponse
	_, err := c.breaker.Execute(func() (interface{}, error) {
		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer r.Body.Close()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		resp = apiResponse{status: r.StatusCode, body: body}
		if r.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("status %d", r.StatusCode)
		}
		return nil, nil
	})
	if err != nil && resp.status == 0 {
		return resp, apperrors.NewUpstreamError("generation API unreachable", err)
	}
	return resp, nil
}

func upstreamStatusError(op string, resp apiResponse) error {
	return apperrors.NewUpstreamError(
		fmt.Sprintf("%s failed: status %d: %s", op, resp.status, strings.TrimSpace(string(resp.body))), nil)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func (c *FusionBrainClient) DiscoverPipeline(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"key/api/v1/pipelines", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.status) {
		return "", upstreamStatusError("pipeline discovery", resp)
	}

	var pipelines []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.body, &pipelines); err != nil {
		return "", apperrors.NewUpstreamError("malformed pipeline list", err)
	}
	if len(pipelines) == 0 || pipelines[0].ID == "" {
		return "", apperrors.NewUpstreamError("no generation pipelines available", nil)
	}
	return pipelines[0].ID, nil
}

type generateParams struct {
	Type           string `json:"type"`
	NumImages      int    `json:"numImages"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	GenerateParams struct {
		Query string `json:"query"`
	} `json:"generateParams"`
}

// Submit starts a generation job and returns its uuid.
func (c *FusionBrainClient) Submit(ctx context.Context, prompt, pipelineID string, count, width, height int) (string, error) {
	params := generateParams{Type: "GENERATE", NumImages: count, Width: width, Height: height}
	params.GenerateParams.Query = prompt
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("pipeline_id", pipelineID); err != nil {
		return "", err
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="params"`)
	h.Set("Content-Type", "application/json")
	part, err := w.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(paramsJSON); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"key/api/v1/pipeline/run", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	if !isSuccess(resp.status) {
		log.Error().Int("status", resp.status).Str("body", string(resp.body)).Msg("generation submit failed")
		return "", upstreamStatusError("generation submit", resp)
	}

	var job struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(resp.body, &job); err != nil || job.UUID == "" {
		return "", apperrors.NewUpstreamError("malformed submit response", err)
	}
	return job.UUID, nil
}

type jobStatus struct {
	Status           string `json:"status"`
	ErrorDescription string `json:"errorDescription"`
	Result           struct {
		Files []string `json:"files"`
	} `json:"result"`
}

// Poll checks the job every delay, at most maxAttempts times. It returns the
// result files once the job is DONE, and an empty list without error when
// attempts run out.
func (c *FusionBrainClient) Poll(ctx context.Context, jobUUID string, maxAttempts int, delay time.Duration) ([]string, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"key/api/v1/pipeline/status/"+jobUUID, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}
		if !isSuccess(resp.status) {
			return nil, upstreamStatusError("generation status", resp)
		}

		var st jobStatus
		if err := json.Unmarshal(resp.body, &st); err != nil {
			return nil, apperrors.NewUpstreamError("malformed status response", err)
		}
		log.Debug().Str("job", jobUUID).Int("attempt", attempt).Str("status", st.Status).Msg("polled generation job")

		switch st.Status {
		case statusDone:
			return st.Result.Files, nil
		case statusFail:
			return nil, apperrors.NewUpstreamError("generation failed: "+st.ErrorDescription, nil)
		}

		if attempt == maxAttempts {
			break
		}
		select {
		case <-c.clock.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []string{}, nil
}

// DecodeResult turns one result item into image bytes. Items are either an
// http(s) URL or an inline base64 payload, optionally behind a "base64," marker.
func (c *FusionBrainClient) DecodeResult(ctx context.Context, item string) ([]byte, error) {
	if strings.HasPrefix(item, "http://") || strings.HasPrefix(item, "https://") {
		data, err := c.fetch(ctx, item)
		if err != nil {
			return nil, apperrors.NewUpstreamError("image download failed", err)
		}
		return data, nil
	}
	payload := item
	if i := strings.LastIndex(item, "base64,"); i >= 0 {
		payload = item[i+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, apperrors.NewUpstreamError("malformed image payload", err)
	}
	return data, nil
}

func (c *FusionBrainClient) fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.Do(ctx, c.fetchRetry, classifyHTTPError, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if !isSuccess(resp.StatusCode) {
			return nil, &httpStatusError{status: resp.StatusCode}
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	})
}
