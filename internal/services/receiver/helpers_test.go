package receiver

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
)

var quiet = log.New(io.Discard, "", 0)

type fakeClock struct{ t time.Time }

func newClock() *fakeClock                   { return &fakeClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)} }
func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testRoster(t *testing.T) model.Roster {
	t.Helper()
	r, err := model.NewRoster("Sender1", "Sender2", "Sender3")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

type indicatorCall struct {
	station    model.Station
	call, bill bool
}

// recorder captures every side effect the engine fires.
type recorder struct {
	boards     [][]string
	indicators []indicatorCall
	stamps     map[model.Station]string
	cues       []int
	echoes     []model.NodeID
	updates    int
	resets     []model.NodeID
}

func newRecorder() *recorder { return &recorder{stamps: map[model.Station]string{}} }

func (r *recorder) Render(lines []string) { r.boards = append(r.boards, lines) }
func (r *recorder) SetIndicator(st model.Station, call, bill bool) {
	r.indicators = append(r.indicators, indicatorCall{st, call, bill})
}
func (r *recorder) SetLastUpdate(st model.Station, stamp string) { r.stamps[st] = stamp }
func (r *recorder) Play(cue int)                                 { r.cues = append(r.cues, cue) }
func (r *recorder) EchoTimestamp(id model.NodeID, _ string)      { r.echoes = append(r.echoes, id) }
func (r *recorder) RecordReset(id model.NodeID, _ time.Time)     { r.resets = append(r.resets, id) }
func (r *recorder) RecordUpdate(model.NodeID, model.Channel, bool, int, int, time.Time) {
	r.updates++
}

func (r *recorder) effects() Effects {
	return Effects{Board: r, Indicator: r, Alert: r, Echo: r, Recorder: r}
}

func newTestEngine(t *testing.T, clk *fakeClock, rec *recorder) *Engine {
	t.Helper()
	return NewEngine(EngineConfig{
		Roster:   testRoster(t),
		Debounce: time.Second,
		Effects:  rec.effects(),
		Now:      clk.Now,
		Logger:   quiet,
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

func (f *fakeTransport) deliver(sub, topic string, payload []byte) {
	f.mu.Lock()
	h := f.subs[sub]
	f.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func (f *fakeTransport) sentOn(topic string) []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentMsg
	for _, m := range f.sent {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}
