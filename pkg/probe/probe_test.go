package probe

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name:     "Cache Store",
			Check:    func(ctx context.Context) error { return nil },
			Critical: true,
		},
		{
			Name:  "Connectivity",
			Check: func(ctx context.Context) error { return errors.New("dial tcp: no route to host") },
		},
		{
			Name: "Slow Backend",
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			Timeout: 20 * time.Millisecond,
		},
	}

	start := time.Now()
	results := Run(context.Background(), probes)
	require.Len(t, results, 3)

	assert.Equal(t, "Cache Store", results[0].Probe.Name)
	assert.NoError(t, results[0].Error)
	assert.Error(t, results[1].Error)
	assert.ErrorIs(t, results[2].Error, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), DefaultProbeTimeout)
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name: "All Pass",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}},
			},
		},
		{
			name: "Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")},
			},
			wantErr: true,
		},
		{
			name: "Non-Critical Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")},
			},
		},
		{
			name: "Mixed Failure",
			results: []Result{
				{Probe: Probe{Name: "P1", Critical: false}, Error: errors.New("fail")},
				{Probe: Probe{Name: "P2", Critical: true}, Error: errors.New("fail")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(nil, tt.results)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAnalyzeResults_Levels(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	err := AnalyzeResults(logger, []Result{
		{Probe: Probe{Name: "Cache Store", Critical: true}, Error: errors.New("database is locked")},
		{Probe: Probe{Name: "Connectivity"}, Error: errors.New("offline")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cache Store: database is locked")
	assert.NotContains(t, err.Error(), "Connectivity")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "[FAIL] Cache Store")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "[WARN] Connectivity")
}
