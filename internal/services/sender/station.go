package sender

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
)

// Button is a debounced physical input edge.
type Button int

const (
	ButtonCall Button = iota
	ButtonBill
	ButtonReset
)

func (b Button) String() string {
	switch b {
	case ButtonCall:
		return "call"
	case ButtonBill:
		return "bill"
	case ButtonReset:
		return "reset"
	default:
		return fmt.Sprintf("Button(%d)", int(b))
	}
}

// LEDs shows the local call/bill state on the station.
type LEDs interface {
	Show(call, bill bool)
}

type StationConfig struct {
	ID model.NodeID
	// Authorized lists the origins whose reset commands are honoured.
	Authorized []model.NodeID
	LEDs       LEDs
	RSSI       func() int
	Now        func() time.Time
	Logger     *log.Logger
}

// Station is the sender-side state machine. Counters only grow; nothing
// but a restart sets them back to zero.
type Station struct {
	id         model.NodeID
	authorized map[model.NodeID]bool
	leds       LEDs
	rssi       func() int
	now        func() time.Time
	log        *log.Logger

	mu        sync.Mutex
	call      bool
	bill      bool
	callCount int
	billCount int
}

func NewStation(cfg StationConfig) *Station {
	if len(cfg.Authorized) == 0 {
		cfg.Authorized = []model.NodeID{model.DefaultReceiverID, model.DefaultDashboardID}
	}
	if cfg.RSSI == nil {
		cfg.RSSI = func() int { return 0 }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	auth := make(map[model.NodeID]bool, len(cfg.Authorized))
	for _, id := range cfg.Authorized {
		auth[id] = true
	}
	return &Station{
		id:         cfg.ID,
		authorized: auth,
		leds:       cfg.LEDs,
		rssi:       cfg.RSSI,
		now:        cfg.Now,
		log:        cfg.Logger,
	}
}

func (s *Station) ID() model.NodeID { return s.id }

// State reports the local flags and counters.
func (s *Station) State() (call, bill bool, callCount, billCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.call, s.bill, s.callCount, s.billCount
}

// Press handles one input edge and returns the events to publish, in order.
// An activation is followed by a clearing event for the sibling channel.
func (s *Station) Press(b Button) []messages.Event {
	switch b {
	case ButtonCall:
		return s.activate(model.ChannelCall)
	case ButtonBill:
		return s.activate(model.ChannelBill)
	case ButtonReset:
		return s.clear()
	default:
		s.log.Printf("sender: %s: ignoring %s", s.id, b)
		return nil
	}
}

// Boot clears the station on start-up.
func (s *Station) Boot() []messages.Event { return s.clear() }

// HandleReset honours cmd only when it comes from an authorized origin, is
// actionable (status false) and names this station.
func (s *Station) HandleReset(cmd messages.ResetCommand) ([]messages.Event, error) {
	switch {
	case !s.authorized[cmd.OriginID]:
		return nil, fmt.Errorf("%w: origin %q not authorized", model.ErrRoutingMismatch, cmd.OriginID)
	case cmd.Status:
		return nil, fmt.Errorf("%w: status is true", model.ErrRoutingMismatch)
	case cmd.Target != s.id:
		return nil, fmt.Errorf("%w: target %q is not %q", model.ErrRoutingMismatch, cmd.Target, s.id)
	}
	s.log.Printf("sender: %s: reset command from %s", s.id, cmd.OriginID)
	return s.clear(), nil
}

func (s *Station) activate(ch model.Channel) []messages.Event {
	s.mu.Lock()
	if ch == model.ChannelCall {
		s.callCount++
		s.call, s.bill = true, false
	} else {
		s.billCount++
		s.call, s.bill = false, true
	}
	call, bill := s.call, s.bill
	evts := []messages.Event{
		s.eventLocked(ch, true),
		s.eventLocked(ch.Sibling(), false),
	}
	s.mu.Unlock()

	s.show(call, bill)
	return evts
}

func (s *Station) clear() []messages.Event {
	s.mu.Lock()
	s.call, s.bill = false, false
	evts := []messages.Event{
		s.eventLocked(model.ChannelCall, false),
		s.eventLocked(model.ChannelBill, false),
	}
	s.mu.Unlock()

	s.show(false, false)
	return evts
}

func (s *Station) eventLocked(ch model.Channel, active bool) messages.Event {
	count := s.callCount
	if ch == model.ChannelBill {
		count = s.billCount
	}
	return messages.Event{
		SenderID:  s.id,
		Channel:   ch,
		Active:    active,
		Count:     count,
		RSSI:      s.rssi(),
		Timestamp: s.now(),
	}
}

func (s *Station) show(call, bill bool) {
	if s.leds != nil {
		s.leds.Show(call, bill)
	}
}

// LogLEDs logs LED changes in place of GPIO output.
type LogLEDs struct {
	ID     model.NodeID
	Logger *log.Logger
}

func (l LogLEDs) Show(call, bill bool) {
	logger := l.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("sender: %s leds call=%v bill=%v", l.ID, call, bill)
}
