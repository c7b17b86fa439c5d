package api

import (
	"net/http"
	"time"

	"musallago/pkg/tracker"
)

// BackoffState reports provider cool-down, as kept by request.ProviderBackoff.
type BackoffState interface {
	GetState(provider string) (failureCount int, nextAllowed time.Time)
}

type StatsHandler struct {
	tracker  *tracker.Tracker
	backoff  BackoffState
	backends []string
	now      func() time.Time
}

// NewStatsHandler reports resolver stats and the cool-down state of the named backends.
func NewStatsHandler(t *tracker.Tracker, b BackoffState, backends ...string) *StatsHandler {
	return &StatsHandler{tracker: t, backoff: b, backends: backends, now: time.Now}
}

type ProviderStatsDTO struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	Fallbacks     int64 `json:"fallbacks"`
	HitRate       int64 `json:"hit_rate"`
}

type BackoffDTO struct {
	Failures    int        `json:"failures"`
	CoolingDown bool       `json:"cooling_down"`
	RetryAt     *time.Time `json:"retry_at,omitempty"`
}

type StatsResponse struct {
	Providers map[string]ProviderStatsDTO `json:"providers"`
	Backends  map[string]BackoffDTO       `json:"backends"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Providers: make(map[string]ProviderStatsDTO, len(snapshot)),
		Backends:  make(map[string]BackoffDTO, len(h.backends)),
	}

	for provider, stats := range snapshot {
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:     stats.CacheHits,
			CacheMisses:   stats.CacheMisses,
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			Fallbacks:     stats.Fallbacks,
			HitRate:       stats.HitRate(),
		}
	}

	if h.backoff != nil {
		now := h.now()
		for _, name := range h.backends {
			failures, next := h.backoff.GetState(name)
			dto := BackoffDTO{Failures: failures}
			if next.After(now) {
				dto.CoolingDown = true
				dto.RetryAt = &next
			}
			resp.Backends[name] = dto
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
