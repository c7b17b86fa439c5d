package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultConnectivityURL answers 204 when the internet is reachable.
const DefaultConnectivityURL = "https://www.google.com/generate_204"

// Connectivity reports whether the device currently looks offline.
// The answer is advisory: resolvers always attempt the network themselves.
type Connectivity struct {
	url        string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.RWMutex
	offline   bool
	checkedAt time.Time
}

// NewConnectivity creates a probe against url. Empty url and non-positive timeout use the defaults.
func NewConnectivity(url string, timeout time.Duration, logger *slog.Logger) *Connectivity {
	if url == "" {
		url = DefaultConnectivityURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connectivity{
		url:     url,
		timeout: timeout,
		httpClient: &http.Client{
			// Captive portals redirect; returning the 3xx itself makes Check report offline.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
		logger: logger,
	}
}

// Check performs one HEAD request. Any transport failure, timeout or a non-2xx
// status is returned as an error.
func (c *Connectivity) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("connectivity probe: status %d", resp.StatusCode)
	}
	return nil
}

// IsOffline runs a probe and records the outcome.
func (c *Connectivity) IsOffline(ctx context.Context) bool {
	err := c.Check(ctx)
	offline := err != nil

	c.mu.Lock()
	changed := offline != c.offline || c.checkedAt.IsZero()
	c.offline = offline
	c.checkedAt = time.Now()
	c.mu.Unlock()

	if changed {
		if offline {
			c.logger.Info("Device appears offline", "error", err)
		} else {
			c.logger.Info("Device is online")
		}
	}
	return offline
}

// Status is the latest recorded probe outcome.
type Status struct {
	Offline   bool      `json:"offline"`
	CheckedAt time.Time `json:"checked_at"`
}

// Last returns the most recent outcome without probing. CheckedAt is zero before the first probe.
func (c *Connectivity) Last() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{Offline: c.offline, CheckedAt: c.checkedAt}
}

// Watch probes every interval and calls onChange whenever the offline state flips,
// including once for the first result. It blocks until ctx is done.
func (c *Connectivity) Watch(ctx context.Context, interval time.Duration, onChange func(Status)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	var last *bool

	tick := func() {
		off := c.IsOffline(ctx)
		if ctx.Err() != nil {
			return
		}
		if last == nil || *last != off {
			last = &off
			onChange(c.Last())
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
