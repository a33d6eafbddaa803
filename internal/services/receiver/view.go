package receiver

import (
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/display"
	"github.com/LeonardoBeccarini/waitress_call/internal/model"
)

// ChannelState is the receiver's authoritative copy of one channel. Count and
// RSSI are the last values reported by the sender and carry no invariant.
type ChannelState struct {
	On           bool      `json:"on"`
	Count        int       `json:"count"`
	RSSI         int       `json:"rssi"`
	LastAccepted time.Time `json:"last_accepted"`
}

type StationState struct {
	Call      ChannelState `json:"call"`
	Bill      ChannelState `json:"bill"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (s StationState) Channel(c model.Channel) ChannelState {
	if c == model.ChannelBill {
		return s.Bill
	}
	return s.Call
}

func (s *StationState) channel(c model.Channel) *ChannelState {
	if c == model.ChannelBill {
		return &s.Bill
	}
	return &s.Call
}

// View is a point-in-time copy of the receiver state, keyed by station.
type View map[model.Station]StationState

// transition is the only place a channel changes value. Switching a channel
// ON always forces its sibling OFF, whatever the sender said or failed to say.
func transition(s StationState, c model.Channel, on bool) StationState {
	s.channel(c).On = on
	if on {
		s.channel(c.Sibling()).On = false
	}
	return s
}

func cleared(s StationState) StationState {
	s.Call.On = false
	s.Bill.On = false
	return s
}

// boardLines renders the six-line board in station order.
func boardLines(v View) []string {
	lines := make([]string, 0, len(model.Stations)*len(model.Channels))
	for _, st := range model.Stations {
		state := v[st]
		for _, ch := range model.Channels {
			lines = append(lines, display.BoardLine(st.Number(), ch.Label(), state.Channel(ch).On))
		}
	}
	return lines
}
