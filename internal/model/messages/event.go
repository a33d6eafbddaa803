package messages

import (
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
)

// TimestampLayout is the local-time format carried in the timestamp field.
const TimestampLayout = "2006-01-02 15:04:05"

// Message is either an Event or a ResetCommand.
type Message interface {
	isMessage()
}

// Event is one channel state change emitted by a sender.
type Event struct {
	SenderID  model.NodeID
	Channel   model.Channel
	Active    bool
	Count     int
	RSSI      int
	Timestamp time.Time
}

func (Event) isMessage() {}

// FormatTimestamp renders t in TimestampLayout, or "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimestampLayout)
}
