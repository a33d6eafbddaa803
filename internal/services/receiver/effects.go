package receiver

import (
	"log"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
)

// Board shows the six-line local status board.
type Board interface {
	Render(lines []string)
}

// Indicator drives the remote dashboard: three mutually exclusive flags per
// station plus a last-update label.
type Indicator interface {
	SetIndicator(st model.Station, call, bill bool)
	SetLastUpdate(st model.Station, stamp string)
}

// Alert plays the cue for a (station, channel) slot.
type Alert interface {
	Play(cue int)
}

// Echo publishes the acceptance timestamp for a sender.
type Echo interface {
	EchoTimestamp(id model.NodeID, stamp string)
}

// Recorder keeps a history of what the engine accepted.
type Recorder interface {
	RecordUpdate(id model.NodeID, ch model.Channel, on bool, count, rssi int, at time.Time)
	RecordReset(id model.NodeID, at time.Time)
}

// Effects groups the fire-and-forget collaborators. Nil members are skipped.
type Effects struct {
	Board     Board
	Indicator Indicator
	Alert     Alert
	Echo      Echo
	Recorder  Recorder
}

// BusEcho publishes plain timestamp strings on the per-sender echo topic.
type BusEcho struct {
	pub    bus.IPublisher
	topics model.Topics
	log    *log.Logger
}

func NewBusEcho(pub bus.IPublisher, topics model.Topics, logger *log.Logger) *BusEcho {
	if logger == nil {
		logger = log.Default()
	}
	return &BusEcho{pub: pub, topics: topics, log: logger}
}

func (e *BusEcho) EchoTimestamp(id model.NodeID, stamp string) {
	topic := e.topics.Timestamp(id)
	if err := e.pub.Publish(topic, false, []byte(stamp)); err != nil {
		e.log.Printf("receiver: echo %s: %v", topic, err)
	}
}
