package sender

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
)

var quiet = log.New(io.Discard, "", 0)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock                   { return &fakeClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)} }
func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type ledState struct{ call, bill bool }

type fakeLEDs struct{ shown []ledState }

func (l *fakeLEDs) Show(call, bill bool) { l.shown = append(l.shown, ledState{call, bill}) }

type scriptedInput struct{ batches [][]Button }

func (s *scriptedInput) Poll() []Button {
	if len(s.batches) == 0 {
		return nil
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b
}

func newTestStation(id model.NodeID, clk *fakeClock, leds LEDs) *Station {
	return NewStation(StationConfig{
		ID:         id,
		Authorized: []model.NodeID{"Receiver", "Dashboard"},
		LEDs:       leds,
		RSSI:       func() int { return -61 },
		Now:        clk.Now,
		Logger:     quiet,
	})
}

type sentMsg struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeTransport struct {
	mu         sync.Mutex
	connected  bool
	connectErr error
	connects   int
	subs       map[string]bus.Handler
	sent       []sentMsg
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{subs: map[string]bus.Handler{}}
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Publish(topic string, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return bus.ErrDisconnected
	}
	f.sent = append(f.sent, sentMsg{topic, retained, payload})
	return nil
}

func (f *fakeTransport) Subscribe(topic string, h bus.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = h
	return nil
}

func (f *fakeTransport) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, topic)
	return nil
}

func (f *fakeTransport) deliver(topic string, payload []byte) {
	f.mu.Lock()
	h := f.subs[topic]
	f.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func (f *fakeTransport) take() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.sent
	f.sent = nil
	return out
}
