package model

import (
	"fmt"
	"strconv"
	"strings"
)

// NodeID is the identity string a node puts in the "id" and "target" fields.
type NodeID string

const (
	DefaultReceiverID  NodeID = "ESP32_Receiver"
	DefaultDashboardID NodeID = "NodeRED"
)

// Roster binds the closed station set to the identities used on the wire.
type Roster struct {
	byStation map[Station]NodeID
	byID      map[NodeID]Station
}

// DefaultRoster uses the identities flashed on the stock sender firmware.
func DefaultRoster() Roster {
	r, _ := NewRoster("ESP32_Sender1", "ESP32_Sender2", "ESP32_Sender3")
	return r
}

// NewRoster expects one identity per station, in station order.
func NewRoster(ids ...NodeID) (Roster, error) {
	if len(ids) != len(Stations) {
		return Roster{}, fmt.Errorf("roster: need %d station ids, got %d", len(Stations), len(ids))
	}
	r := Roster{
		byStation: make(map[Station]NodeID, len(ids)),
		byID:      make(map[NodeID]Station, len(ids)),
	}
	for i, raw := range ids {
		id := NodeID(strings.TrimSpace(string(raw)))
		if id == "" {
			return Roster{}, fmt.Errorf("roster: empty id for %s", Stations[i])
		}
		if _, dup := r.byID[id]; dup {
			return Roster{}, fmt.Errorf("roster: duplicate id %q", id)
		}
		r.byStation[Stations[i]] = id
		r.byID[id] = Stations[i]
	}
	return r, nil
}

// Lookup resolves a wire identity to a station.
func (r Roster) Lookup(id NodeID) (Station, bool) {
	s, ok := r.byID[id]
	return s, ok
}

func (r Roster) ID(s Station) NodeID { return r.byStation[s] }

// Parse accepts either a wire identity or a 1-based station number.
func (r Roster) Parse(raw string) (Station, bool) {
	raw = strings.TrimSpace(raw)
	if s, ok := r.Lookup(NodeID(raw)); ok {
		return s, true
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if s := Station(n - 1); s.Valid() {
			return s, true
		}
	}
	return 0, false
}
