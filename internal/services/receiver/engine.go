package receiver

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
	"github.com/LeonardoBeccarini/waitress_call/internal/observability/metrics"
)

const DefaultDebounce = time.Second

type EngineConfig struct {
	Roster   model.Roster
	Debounce time.Duration
	Effects  Effects
	Now      func() time.Time
	Logger   *log.Logger
}

// Engine reconciles station events into the receiver view. It is the only
// writer of that view; Handle and Reset are called from the node loop while
// Snapshot may be called from anywhere.
type Engine struct {
	roster   model.Roster
	debounce time.Duration
	fx       Effects
	now      func() time.Time
	log      *log.Logger

	mu     sync.RWMutex
	states map[model.Station]*StationState
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	states := make(map[model.Station]*StationState, len(model.Stations))
	for _, st := range model.Stations {
		states[st] = &StationState{}
	}
	return &Engine{
		roster:   cfg.Roster,
		debounce: cfg.Debounce,
		fx:       cfg.Effects,
		now:      cfg.Now,
		log:      cfg.Logger,
		states:   states,
	}
}

// Handle applies one event. It returns ErrRoutingMismatch for unknown
// senders and ErrDebounced when the (station, channel) pair was accepted less
// than the debounce window ago; neither changes state or fires effects.
func (e *Engine) Handle(evt messages.Event) error {
	st, ok := e.roster.Lookup(evt.SenderID)
	if !ok {
		return fmt.Errorf("%w: unknown sender %q", model.ErrRoutingMismatch, evt.SenderID)
	}
	now := e.now()

	e.mu.Lock()
	cur := e.states[st]
	if last := cur.Channel(evt.Channel).LastAccepted; !last.IsZero() && now.Sub(last) < e.debounce {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s %s %s after last accept", model.ErrDebounced, evt.SenderID, evt.Channel, now.Sub(last))
	}
	next := transition(*cur, evt.Channel, evt.Active)
	ch := next.channel(evt.Channel)
	ch.Count = evt.Count
	ch.RSSI = evt.RSSI
	ch.LastAccepted = now
	next.UpdatedAt = now
	*cur = next
	lines := boardLines(e.viewLocked())
	e.mu.Unlock()

	e.log.Printf("receiver: %s %s -> %v (count=%d rssi=%d)", evt.SenderID, evt.Channel, evt.Active, evt.Count, evt.RSSI)
	e.fanOut(st, next, lines, now)
	if evt.Active && e.fx.Alert != nil {
		e.fx.Alert.Play(model.CueIndex(st, evt.Channel))
	}
	if e.fx.Recorder != nil {
		e.fx.Recorder.RecordUpdate(evt.SenderID, evt.Channel, evt.Active, evt.Count, evt.RSSI, now)
	}
	return nil
}

// Reset clears both channels of st and refreshes every effect except the
// alert. Both channels are stamped as accepted, so the sender's own clearing
// events that follow inside the debounce window are absorbed.
func (e *Engine) Reset(st model.Station) error {
	if !st.Valid() {
		return fmt.Errorf("%w: %s", model.ErrRoutingMismatch, st)
	}
	now := e.now()

	e.mu.Lock()
	cur := e.states[st]
	next := cleared(*cur)
	next.Call.LastAccepted = now
	next.Bill.LastAccepted = now
	next.UpdatedAt = now
	*cur = next
	lines := boardLines(e.viewLocked())
	e.mu.Unlock()

	id := e.roster.ID(st)
	e.log.Printf("receiver: %s (%s) reset", st, id)
	e.fanOut(st, next, lines, now)
	if e.fx.Recorder != nil {
		e.fx.Recorder.RecordReset(id, now)
	}
	return nil
}

func (e *Engine) fanOut(st model.Station, s StationState, lines []string, at time.Time) {
	id := e.roster.ID(st)
	stamp := messages.FormatTimestamp(at)

	metrics.SetChannel(string(id), model.ChannelCall.String(), s.Call.On)
	metrics.SetChannel(string(id), model.ChannelBill.String(), s.Bill.On)

	if e.fx.Board != nil {
		e.fx.Board.Render(lines)
	}
	if e.fx.Indicator != nil {
		e.fx.Indicator.SetIndicator(st, s.Call.On, s.Bill.On)
		e.fx.Indicator.SetLastUpdate(st, stamp)
	}
	if e.fx.Echo != nil {
		e.fx.Echo.EchoTimestamp(id, stamp)
	}
}

func (e *Engine) viewLocked() View {
	v := make(View, len(e.states))
	for st, s := range e.states {
		v[st] = *s
	}
	return v
}

// Snapshot returns a copy of the current view.
func (e *Engine) Snapshot() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewLocked()
}

// Board returns the six status lines for the current view.
func (e *Engine) Board() []string {
	return boardLines(e.Snapshot())
}

func (e *Engine) Roster() model.Roster { return e.roster }
