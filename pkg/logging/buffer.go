package logging

import (
	"bytes"
	"sync"
)

// RecentLines keeps the last few log lines in memory for the status endpoint.
type RecentLines struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// Recent receives every INFO+ server log line once Init has run.
var Recent = NewRecentLines(50)

// NewRecentLines creates a buffer holding at most size lines.
func NewRecentLines(size int) *RecentLines {
	if size < 1 {
		size = 1
	}
	return &RecentLines{lines: make([]string, size)}
}

// Write stores each newline-terminated line of p. slog handlers write one record per call.
func (r *RecentLines) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ln := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		if len(ln) == 0 {
			continue
		}
		r.lines[r.next] = string(ln)
		r.next = (r.next + 1) % len(r.lines)
		if r.next == 0 {
			r.full = true
		}
	}
	return len(p), nil
}

// Last returns the newest line, or "" if nothing was logged yet.
func (r *RecentLines) Last() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full && r.next == 0 {
		return ""
	}
	return r.lines[(r.next-1+len(r.lines))%len(r.lines)]
}

// Tail returns up to n lines, oldest first.
func (r *RecentLines) Tail(n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.next
	if r.full {
		count = len(r.lines)
	}
	n = min(max(n, 0), count)

	out := make([]string, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, r.lines[(r.next-i+len(r.lines))%len(r.lines)])
	}
	return out
}
