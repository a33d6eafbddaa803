package history

import (
	"encoding/json"
	"net/http"
	"time"
)

// LinkChecker reports whether the bus link is up.
type LinkChecker interface {
	IsConnected() bool
}

const healthyErrorAge = 30 * time.Second

type healthHandler struct {
	link   LinkChecker
	writer *Writer
}

// NewHealthHandler reports ok, degraded or down. A nil writer means history
// is disabled and does not count against health.
func NewHealthHandler(link LinkChecker, w *Writer) http.Handler {
	return &healthHandler{link: link, writer: w}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string   `json:"status"`
		BusConnected    bool     `json:"bus_connected"`
		HistoryEnabled  bool     `json:"history_enabled"`
		LastWriteErrorS *float64 `json:"last_write_error_age_sec,omitempty"`
	}
	st := status{
		BusConnected:   h.link != nil && h.link.IsConnected(),
		HistoryEnabled: h.writer != nil,
	}
	historyOK := true
	if h.writer != nil {
		age := h.writer.LastErrorAge()
		secs := age.Seconds()
		st.LastWriteErrorS = &secs
		historyOK = age > healthyErrorAge
	}

	switch {
	case st.BusConnected && historyOK:
		st.Status = "ok"
	case st.BusConnected || historyOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

type readyHandler struct {
	link     LinkChecker
	writer   *Writer
	minError time.Duration
}

// NewReadyHandler answers 200 only when the bus is connected and, if history
// is enabled, no write error happened within minOkErrorAge.
func NewReadyHandler(link LinkChecker, w *Writer, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{link: link, writer: w, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.link != nil && h.link.IsConnected()
	if ready && h.writer != nil {
		ready = h.writer.LastErrorAge() > h.minError
	}
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
