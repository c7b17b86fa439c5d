package api

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"musallago/pkg/logging"
)

// key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxParamLen drops attributes such as URLs and cache keys from the status line.
const maxParamLen = 20

// maxTail bounds the ?lines= parameter of the latest-log endpoint.
const maxTail = 50

type latestLogResponse struct {
	Log   string   `json:"log"`
	Lines []string `json:"lines,omitempty"`
}

// handleLatestLog returns the last server log line, condensed for the status bar.
// With ?lines=N it also returns up to N recent lines, oldest first.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	resp := latestLogResponse{Log: formatLogLine(logging.Recent.Last())}

	if s := r.URL.Query().Get("lines"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			http.Error(w, "lines must be a positive integer", http.StatusBadRequest)
			return
		}
		for _, ln := range logging.Recent.Tail(min(n, maxTail)) {
			resp.Lines = append(resp.Lines, formatLogLine(ln))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// formatLogLine condenses a slog text line to "HH:MM:SS msg (k=v, ...)".
// Level is dropped, attributes are sorted and long values are skipped.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, clock string
	var params []string

	for _, m := range matches {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format("15:04:05")
			}
		case "level":
		case "msg":
			msg = val
		default:
			if len(val) > maxParamLen {
				continue
			}
			params = append(params, fmt.Sprintf("%s=%s", key, val))
		}
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params)

	out := msg
	if clock != "" {
		out = clock + " " + msg
	}
	if len(params) > 0 {
		return fmt.Sprintf("%s (%s)", out, strings.Join(params, ", "))
	}
	return out
}
