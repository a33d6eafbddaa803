package sender

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/codec"
	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
)

func newTestNode(t *testing.T, id model.NodeID, clk *fakeClock, tr *fakeTransport, in InputSource) *Node {
	t.Helper()
	n := NewNode(NodeConfig{
		Station:   newTestStation(id, clk, nil),
		Topics:    model.Topics{},
		Transport: tr,
		Input:     in,
		Now:       clk.Now,
		Logger:    quiet,
	})
	if err := n.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	return n
}

func decodeEvents(t *testing.T, sent []sentMsg) []messages.Event {
	t.Helper()
	var out []messages.Event
	for _, m := range sent {
		msg, err := codec.JSON().Decode(m.payload)
		if err != nil {
			t.Fatalf("%s: %v", m.topic, err)
		}
		e, ok := msg.(messages.Event)
		if !ok {
			t.Fatalf("%s: got %T", m.topic, msg)
		}
		out = append(out, e)
	}
	return out
}

func TestStartPublishesClearedState(t *testing.T) {
	tr := newFakeTransport()
	newTestNode(t, "Sender1", newClock(), tr, nil)

	if _, ok := tr.subs["waitress/reset"]; !ok {
		t.Fatalf("not subscribed to reset topic: %v", tr.subs)
	}
	sent := tr.take()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sent))
	}
	if sent[0].topic != "waitress/Sender1/call" || sent[1].topic != "waitress/Sender1/bill" {
		t.Errorf("topics = %s, %s", sent[0].topic, sent[1].topic)
	}
	for _, m := range sent {
		if !m.retained {
			t.Errorf("%s not retained", m.topic)
		}
	}
	for _, e := range decodeEvents(t, sent) {
		if e.Active {
			t.Errorf("boot event active: %+v", e)
		}
	}
}

func TestStartConnectFailure(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = errors.New("refused")
	n := NewNode(NodeConfig{Station: newTestStation("Sender1", newClock(), nil), Transport: tr, Logger: quiet})
	if err := n.Start(context.Background()); !errors.Is(err, model.ErrTransportDisconnected) {
		t.Fatalf("err = %v", err)
	}

	tr.mu.Lock()
	tr.connectErr = nil
	tr.mu.Unlock()
	n.Tick(context.Background())
	n.Tick(context.Background())
	if sent := tr.take(); len(sent) != 2 {
		t.Errorf("boot announcement sent %d messages, want 2", len(sent))
	}
}

func TestTickPublishesPresses(t *testing.T) {
	tr := newFakeTransport()
	in := &scriptedInput{batches: [][]Button{{ButtonBill}}}
	n := newTestNode(t, "Sender2", newClock(), tr, in)
	tr.take()

	n.Tick(context.Background())
	sent := tr.take()
	evts := decodeEvents(t, sent)
	if len(evts) != 2 {
		t.Fatalf("got %d events", len(evts))
	}
	if sent[0].topic != "waitress/Sender2/bill" || !evts[0].Active || evts[0].Count != 1 {
		t.Errorf("first = %s %+v", sent[0].topic, evts[0])
	}
	if sent[1].topic != "waitress/Sender2/call" || evts[1].Active {
		t.Errorf("second = %s %+v", sent[1].topic, evts[1])
	}
	if evts[0].RSSI != -61 {
		t.Errorf("rssi = %d", evts[0].RSSI)
	}
}

func TestDuplicateResetWithinWindow(t *testing.T) {
	clk := newClock()
	tr := newFakeTransport()
	n := newTestNode(t, "Sender2", clk, tr, &scriptedInput{batches: [][]Button{{ButtonCall}}})
	n.Tick(context.Background())
	tr.take()

	cmd, err := codec.JSON().EncodeReset(messages.ResetCommand{
		OriginID: "Receiver", Scope: messages.ScopeAll, Target: "Sender2", Timestamp: clk.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}

	tr.deliver("waitress/reset", cmd)
	tr.deliver("waitress/reset", cmd)
	n.Tick(context.Background())

	evts := decodeEvents(t, tr.take())
	if len(evts) != 2 {
		t.Fatalf("got %d events, want 2 from a single reset", len(evts))
	}
	for _, e := range evts {
		if e.Active {
			t.Errorf("reset emitted active event %+v", e)
		}
	}
	if call, bill, _, _ := n.station.State(); call || bill {
		t.Error("station not cleared")
	}

	clk.Advance(time.Second)
	tr.deliver("waitress/reset", cmd)
	n.Tick(context.Background())
	if got := len(tr.take()); got != 2 {
		t.Errorf("after window: sent %d, want 2", got)
	}
}

func TestResetFiltering(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"peer target", `{"id":"Receiver","type":"all","status":false,"target":"Sender3"}`},
		{"own echo", `{"id":"Sender2","type":"all","status":false,"target":"Sender2"}`},
		{"ack", `{"id":"Receiver","type":"all","status":true,"target":"Sender2"}`},
		{"event", `{"id":"Sender1","type":"call","status":true}`},
		{"garbage", `{"id":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := newFakeTransport()
			n := newTestNode(t, "Sender2", newClock(), tr, nil)
			tr.take()

			tr.deliver("waitress/reset", []byte(tc.payload))
			n.Tick(context.Background())
			if sent := tr.take(); len(sent) != 0 {
				t.Errorf("published %d messages", len(sent))
			}
		})
	}
}

func TestTickReconnects(t *testing.T) {
	tr := newFakeTransport()
	n := newTestNode(t, "Sender1", newClock(), tr, nil)
	tr.mu.Lock()
	tr.connected = false
	tr.mu.Unlock()

	n.Tick(context.Background())
	if !n.Connected() || tr.connects != 2 {
		t.Errorf("connected=%v connects=%d", n.Connected(), tr.connects)
	}
}
