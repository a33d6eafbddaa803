package model

import (
	"fmt"
	"strings"
)

// Station is one physical call/bill point. The set is closed: a receiver
// serves exactly the stations listed in Stations.
type Station int

const (
	Station1 Station = iota
	Station2
	Station3
)

// Stations lists every known station in display order.
var Stations = []Station{Station1, Station2, Station3}

func (s Station) Valid() bool { return s >= Station1 && s <= Station3 }

// Number is the 1-based table number shown on the board.
func (s Station) Number() int { return int(s) + 1 }

func (s Station) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Station(%d)", int(s))
	}
	return fmt.Sprintf("station%d", s.Number())
}

// Channel is one of the two boolean notification lines of a station.
type Channel int

const (
	ChannelCall Channel = iota
	ChannelBill
)

var Channels = []Channel{ChannelCall, ChannelBill}

func (c Channel) String() string {
	switch c {
	case ChannelCall:
		return "call"
	case ChannelBill:
		return "bill"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

// Label is the capitalised name used on the status board.
func (c Channel) Label() string {
	switch c {
	case ChannelCall:
		return "Call"
	case ChannelBill:
		return "Bill"
	default:
		return c.String()
	}
}

// Sibling returns the mutually exclusive partner channel.
func (c Channel) Sibling() Channel {
	if c == ChannelCall {
		return ChannelBill
	}
	return ChannelCall
}

func ParseChannel(s string) (Channel, bool) {
	switch strings.TrimSpace(s) {
	case "call":
		return ChannelCall, true
	case "bill":
		return ChannelBill, true
	default:
		return 0, false
	}
}

// CueIndex is the 1-based alert slot for a (station, channel) pair.
func CueIndex(s Station, c Channel) int {
	return int(s)*len(Channels) + int(c) + 1
}
