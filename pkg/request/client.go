package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"musallago/pkg/logging"
	"musallago/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("Musalla Finder (musallago/%s)", version.Version)

// ClientConfig controls timeouts and retry behaviour.
type ClientConfig struct {
	Timeout   time.Duration // Per-attempt HTTP timeout
	Retries   int           // Extra attempts after the first, only for retryable failures
	BaseDelay time.Duration // First retry delay, doubled per attempt
	MaxDelay  time.Duration // Upper bound for provider cool-down
	MinGap    time.Duration // Gap between two requests to the same provider
	UserAgent string
}

// DefaultClientConfig returns the settings used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:   15 * time.Second,
		Retries:   2,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  30 * time.Second,
		MinGap:    50 * time.Millisecond,
	}
}

// Client handles outbound HTTP requests with per-provider queuing, retries and backoff.
type Client struct {
	httpClient *http.Client
	cfg        ClientConfig
	backoff    *ProviderBackoff
	logger     *slog.Logger

	// Queues per provider (domain)
	queues map[string]chan job
	mu     sync.Mutex // Protects queues map
}

// job represents a queued request.
type job struct {
	req      *http.Request
	provider string
	headers  map[string]string
	respChan chan jobResult
}

type jobResult struct {
	body []byte
	err  error
}

// New creates a new Client.
func New(cfg ClientConfig) *Client {
	def := DefaultClientConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		backoff:    NewProviderBackoff(cfg.BaseDelay, cfg.MaxDelay),
		logger:     slog.Default(),
		queues:     make(map[string]chan job),
	}
}

// SetLogger routes request logs to l (the dedicated request log).
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Backoff exposes the provider cool-down state.
func (c *Client) Backoff() *ProviderBackoff {
	return c.backoff
}

// Get performs a GET request through the provider queue.
func (c *Client) Get(ctx context.Context, u string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, nil)
}

// GetWithHeaders performs a GET request with custom headers.
// Every failure is returned as a *NetworkError.
func (c *Client) GetWithHeaders(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respChan := make(chan jobResult, 1)
	j := job{req: req, provider: provider, headers: headers, respChan: respChan}

	c.dispatch(provider, j)

	select {
	case <-ctx.Done():
		return nil, classify(provider, ctx.Err())
	case res := <-respChan:
		return res.body, res.err
	}
}

func normalizeProvider(host string) string {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	switch {
	case strings.HasSuffix(host, "maps.googleapis.com"):
		return "google-maps"
	case strings.HasSuffix(host, ".supabase.co") || strings.HasSuffix(host, ".supabase.in"):
		return "supabase"
	case host == "www.google.com" || host == "google.com" || host == "clients3.google.com":
		return "google"
	}
	return host
}

// dispatch sends the job to the provider's queue, creating the queue/worker if needed.
func (c *Client) dispatch(provider string, j job) {
	c.mu.Lock()
	q, ok := c.queues[provider]
	if !ok {
		q = make(chan job, 100)
		c.queues[provider] = q
		go c.worker(provider, q)
	}
	c.mu.Unlock()

	// Block if the queue is full, throttling the caller
	select {
	case q <- j:
	case <-j.req.Context().Done():
		j.respChan <- jobResult{err: classify(provider, j.req.Context().Err())}
	}
}

// worker processes requests for a specific provider sequentially.
func (c *Client) worker(provider string, q <-chan job) {
	for j := range q {
		if err := j.req.Context().Err(); err != nil {
			c.logger.Debug("Job dropped from queue (context expired)", "provider", provider, "error", err)
			j.respChan <- jobResult{err: classify(provider, err)}
			continue
		}

		uaMatch := false
		for k, v := range j.headers {
			j.req.Header.Set(k, v)
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				uaMatch = true
			}
		}
		if !uaMatch {
			j.req.Header.Set("User-Agent", c.cfg.UserAgent)
		}

		// A provider that failed recently is retried after its cool-down, never skipped.
		if err := c.waitCooldown(j.req.Context(), provider); err != nil {
			j.respChan <- jobResult{err: classify(provider, err)}
			continue
		}

		logging.Trace(c.logger, "Dispatching request", "provider", provider, "path", j.req.URL.Path, "queued", len(q))
		body, err := c.executeWithBackoff(provider, j.req)
		switch {
		case err == nil:
			c.backoff.RecordSuccess(provider)
		case isProviderFailure(err):
			c.backoff.RecordFailure(provider)
		}

		j.respChan <- jobResult{body: body, err: err}

		if c.cfg.MinGap > 0 {
			time.Sleep(c.cfg.MinGap)
		}
	}
}

// waitCooldown blocks until the provider's cool-down has elapsed or ctx is done.
func (c *Client) waitCooldown(ctx context.Context, provider string) error {
	d := c.backoff.Remaining(provider)
	if d <= 0 {
		return nil
	}
	c.logger.Debug("Provider cooling down, delaying request", "provider", provider, "remaining", d.Round(time.Millisecond))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isProviderFailure reports whether err says something about provider health.
// Caller cancellations and client errors (4xx) do not.
func isProviderFailure(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if errors.Is(ne.Err, context.Canceled) {
		return false
	}
	if ne.Kind == KindHTTP {
		return ne.StatusCode == http.StatusTooManyRequests || ne.StatusCode >= 500
	}
	return ne.Kind == KindUnreachable || ne.Kind == KindTimeout
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code < 600)
}

// executeWithBackoff attempts the request with exponential backoff on retryable errors.
func (c *Client) executeWithBackoff(provider string, req *http.Request) ([]byte, error) {
	maxAttempts := c.cfg.Retries + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			sleepDur := expDelay(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
			select {
			case <-time.After(sleepDur):
			case <-req.Context().Done():
				return nil, classify(provider, req.Context().Err())
			}
		}
		if err := req.Context().Err(); err != nil {
			return nil, classify(provider, err)
		}

		c.logger.Debug("Network Request", "provider", provider, "host", req.URL.Host, "path", req.URL.Path, "attempt", attempt+1)
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := req.Context().Err(); ctxErr != nil {
				return nil, classify(provider, ctxErr)
			}
			lastErr = classify(provider, err)
			c.logger.Warn("Request failed", "provider", provider, "attempt", attempt+1, "error", err)
			continue
		}

		if retryableStatus(resp.StatusCode) {
			resp.Body.Close()
			lastErr = &NetworkError{Kind: KindHTTP, Provider: provider, StatusCode: resp.StatusCode}
			c.logger.Warn("API Backoff", "provider", provider, "status", resp.StatusCode, "attempt", attempt+1)
			continue
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			c.logger.Warn("API Error", "provider", provider, "status", resp.StatusCode, "path", req.URL.Path)
			return nil, &NetworkError{Kind: KindHTTP, Provider: provider, StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, classify(provider, fmt.Errorf("read error: %w", err))
		}
		c.logger.Debug("Network Response", "provider", provider, "status", resp.StatusCode, "bytes", len(body), "took", time.Since(start).Round(time.Millisecond))
		return body, nil
	}

	return nil, lastErr
}
