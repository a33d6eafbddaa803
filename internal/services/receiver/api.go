package receiver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
)

// StationStatus is the JSON shape of one station on the remote surface.
type StationStatus struct {
	Station   int          `json:"station"`
	ID        model.NodeID `json:"id"`
	Call      ChannelState `json:"call"`
	Bill      ChannelState `json:"bill"`
	Indicator string       `json:"indicator"` // call | bill | none
	UpdatedAt time.Time    `json:"updated_at"`
}

func statusOf(r model.Roster, st model.Station, s StationState) StationStatus {
	ind := "none"
	switch {
	case s.Call.On:
		ind = "call"
	case s.Bill.On:
		ind = "bill"
	}
	return StationStatus{
		Station:   st.Number(),
		ID:        r.ID(st),
		Call:      s.Call,
		Bill:      s.Bill,
		Indicator: ind,
		UpdatedAt: s.UpdatedAt,
	}
}

// NewRouter exposes the remote-control surface of a receiver node. extra
// mounts additional handlers (health, metrics) by exact path.
func NewRouter(n *Node, extra map[string]http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/stations", n.handleList).Methods(http.MethodGet)
	r.HandleFunc("/stations/{id}", n.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/stations/{id}/reset", n.handleResetRequest).Methods(http.MethodPost)
	r.HandleFunc("/board", n.handleBoard).Methods(http.MethodGet)
	for path, h := range extra {
		r.Handle(path, h)
	}
	return r
}

func (n *Node) handleList(w http.ResponseWriter, _ *http.Request) {
	view := n.engine.Snapshot()
	out := make([]StationStatus, 0, len(model.Stations))
	for _, st := range model.Stations {
		out = append(out, statusOf(n.engine.Roster(), st, view[st]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (n *Node) handleGet(w http.ResponseWriter, r *http.Request) {
	st, ok := n.engine.Roster().Parse(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown station"})
		return
	}
	writeJSON(w, http.StatusOK, statusOf(n.engine.Roster(), st, n.engine.Snapshot()[st]))
}

// handleResetRequest is the dashboard reset trigger: the request is queued and
// performed on the next tick, subject to the cooldown.
func (n *Node) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	st, ok := n.engine.Roster().Parse(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown station"})
		return
	}
	ticket, err := n.resets.RequestReset(st, SourceDashboard)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"ticket":  ticket,
		"station": st.Number(),
		"id":      n.engine.Roster().ID(st),
	})
}

func (n *Node) handleBoard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(strings.Join(n.engine.Board(), "\n") + "\n"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
