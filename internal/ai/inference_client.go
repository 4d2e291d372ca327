package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryAttempts  = 2
	maxRemoteImageBytes   = 20 << 20
)

// InferenceClient calls a hosted zero-shot image classification endpoint.
type InferenceClient struct {
	cfg        Config
	transport  string
	httpClient *http.Client

	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	sleeper        func(time.Duration)
}

type Option func(*InferenceClient)

func WithHTTPClient(client *http.Client) Option {
	return func(c *InferenceClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryBackoff overrides the delays between attempts.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *InferenceClient) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper replaces how retry sleeps are performed; tests use it to avoid
// real waits.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *InferenceClient) {
		c.sleeper = sleeper
	}
}

func NewInferenceClient(cfg Config, opts ...Option) (*InferenceClient, error) {
	cfg.APIToken = strings.TrimSpace(cfg.APIToken)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("inference client: %w: api token required", ErrInvalidCredentials)
	}
	transport := strings.ToLower(strings.TrimSpace(cfg.Transport))
	switch transport {
	case "", TransportHuggingFace:
		transport = TransportHuggingFace
		if cfg.BaseURL == "" {
			cfg.BaseURL = DefaultBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = DefaultModel
		}
	case TransportProxy:
		if cfg.BaseURL == "" {
			return nil, errors.New("inference client: proxy transport requires a base url")
		}
	default:
		return nil, fmt.Errorf("inference client: unknown transport %q", cfg.Transport)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultRetryAttempts
	}

	client := &InferenceClient{
		cfg:            cfg,
		transport:      transport,
		httpClient:     &http.Client{Timeout: cfg.timeout()},
		retryBaseDelay: defaultRetryBaseDelay,
		retryMaxDelay:  defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *InferenceClient) Backend() string {
	return BackendInference
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
}

type huggingFaceParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
}

type proxyRequest struct {
	Image           string   `json:"image"`
	CandidateLabels []string `json:"candidate_labels"`
}

func (c *InferenceClient) Classify(ctx context.Context, img Image, prompts []string) ([]LabelScore, error) {
	if len(prompts) == 0 {
		return nil, ErrNoCandidates
	}
	input, err := c.imageInput(ctx, img)
	if err != nil {
		return nil, err
	}

	var payload any
	endpoint := c.cfg.BaseURL
	switch c.transport {
	case TransportProxy:
		payload = proxyRequest{Image: input, CandidateLabels: prompts}
	default:
		payload = huggingFaceRequest{
			Inputs:     input,
			Parameters: huggingFaceParameters{CandidateLabels: prompts},
		}
		endpoint, err = url.JoinPath(c.cfg.BaseURL, "models", c.cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("classifier request: build url: %w", err)
		}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("classifier request: encode body: %w", err)
	}

	body, err := c.postWithRetry(ctx, endpoint, encoded)
	if err != nil {
		return nil, err
	}
	scores, err := decodeScores(body, prompts)
	if err != nil {
		return nil, err
	}
	return rank(scores), nil
}

// imageInput returns what goes in the image field: the URL itself, or the
// encoded bytes. The hosted API takes bare base64; the proxy takes a data URI.
func (c *InferenceClient) imageInput(ctx context.Context, img Image) (string, error) {
	if img.Inline() {
		return c.inline(img), nil
	}
	if img.URL == "" {
		return "", fmt.Errorf("classifier request: image has neither url nor data")
	}
	if c.cfg.InlineRemoteImages && img.IsRemote() {
		fetched, err := c.fetchImage(ctx, img.URL)
		if err != nil {
			return "", err
		}
		return c.inline(fetched), nil
	}
	return img.URL, nil
}

func (c *InferenceClient) inline(img Image) string {
	if c.transport == TransportProxy {
		return img.dataURI()
	}
	return img.encoded()
}

func (c *InferenceClient) fetchImage(ctx context.Context, imageURL string) (Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Image{}, fmt.Errorf("fetch image %s: http %d: %w", imageURL, resp.StatusCode, ErrUpstreamUnavailable)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteImageBytes))
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w: %w", ErrUpstreamUnavailable, err)
	}
	img := Image{URL: imageURL, Data: data}
	if ct, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil && strings.HasPrefix(ct, "image/") {
		img.ContentType = ct
	}
	return img, nil
}

func (c *InferenceClient) postWithRetry(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	attempts := c.cfg.MaxAttempts
	for attempt := 1; ; attempt++ {
		body, err := c.postOnce(ctx, endpoint, payload)
		if err == nil {
			return body, nil
		}

		delay, retry := c.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			if attempt > 1 {
				return nil, fmt.Errorf("classifier request failed after %d attempts: %w", attempt, err)
			}
			return nil, err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("classifier retry: %w: %w", ErrUpstreamUnavailable, err)
		}
	}
}

func (c *InferenceClient) postOnce(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("classifier request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("classifier request: read body: %w: %w", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}

func (c *InferenceClient) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if !statusErr.Transient() {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return c.capDelay(statusErr.RetryAfter), true
		}
		return c.backoffDelay(attempt), true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return c.backoffDelay(attempt), true
	}
	return 0, false
}

// backoffDelay doubles from the base delay: attempt 1 waits base, attempt 2
// waits base*2 and so on, capped at the max delay.
func (c *InferenceClient) backoffDelay(attempt int) time.Duration {
	base := c.retryBaseDelay
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			delay = c.retryMaxDelay
			break
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *InferenceClient) capDelay(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *InferenceClient) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
