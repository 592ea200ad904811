package api

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"stationpa/pkg/logging"
)

const (
	defaultLogLines = 20
	// values longer than this (ids, full messages) are left out of status lines
	maxParamLen = 20
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// handleLatestLog handles GET /api/log/latest
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"log": formatLogLine(logging.GlobalLogCapture.GetLastLine()),
	})
}

// handleLatestEvent handles GET /api/log/events
func handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"log": logging.GlobalEventCapture.GetLastLine(),
	})
}

// handleRecentLogs handles GET /api/log/recent?lines=n
func handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	n := defaultLogLines
	if raw := r.URL.Query().Get("lines"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid lines %q", raw))
			return
		}
		n = v
	}

	raw := logging.GlobalLogCapture.Recent(n)
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = formatLogLine(l)
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

// formatLogLine turns a slog text line into "HH:MM:SS msg (k=v, k=v)".
// level is dropped, params are sorted and long values are skipped.
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
			if len(val) <= maxParamLen {
				params = append(params, key+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	slices.Sort(params)
	out := msg
	if clock != "" {
		out = clock + " " + msg
	}
	if len(params) > 0 {
		out += " (" + strings.Join(params, ", ") + ")"
	}
	return out
}
