package receiver

import (
	"errors"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
)

func evt(id model.NodeID, ch model.Channel, active bool, count int) messages.Event {
	return messages.Event{SenderID: id, Channel: ch, Active: active, Count: count, RSSI: -55}
}

func TestTransitionEnforcesMutualExclusion(t *testing.T) {
	cases := []struct {
		name     string
		start    StationState
		ch       model.Channel
		on       bool
		wantCall bool
		wantBill bool
	}{
		{"call on clears bill", StationState{Bill: ChannelState{On: true}}, model.ChannelCall, true, true, false},
		{"bill on clears call", StationState{Call: ChannelState{On: true}}, model.ChannelBill, true, false, true},
		{"call off keeps bill", StationState{Bill: ChannelState{On: true}}, model.ChannelCall, false, false, true},
		{"bill off keeps call", StationState{Call: ChannelState{On: true}}, model.ChannelBill, false, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := transition(tc.start, tc.ch, tc.on)
			if got.Call.On != tc.wantCall || got.Bill.On != tc.wantBill {
				t.Fatalf("call=%v bill=%v, want call=%v bill=%v", got.Call.On, got.Bill.On, tc.wantCall, tc.wantBill)
			}
		})
	}
}

// Two identical activations 500ms apart: one state change, one fan-out, one cue.
func TestDuplicateInsideDebounceWindow(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)

	if err := e.Handle(evt("Sender1", model.ChannelCall, true, 1)); err != nil {
		t.Fatalf("first: %v", err)
	}
	clk.Advance(500 * time.Millisecond)
	if err := e.Handle(evt("Sender1", model.ChannelCall, true, 1)); !errors.Is(err, model.ErrDebounced) {
		t.Fatalf("second: err = %v, want ErrDebounced", err)
	}

	if !e.Snapshot()[model.Station1].Call.On {
		t.Fatal("call should be ON")
	}
	if len(rec.cues) != 1 || rec.cues[0] != model.CueIndex(model.Station1, model.ChannelCall) {
		t.Fatalf("cues = %v, want exactly one for slot 1", rec.cues)
	}
	if len(rec.boards) != 1 || len(rec.indicators) != 1 || len(rec.echoes) != 1 || rec.updates != 1 {
		t.Fatalf("fan-out boards=%d indicators=%d echoes=%d updates=%d, want 1 each",
			len(rec.boards), len(rec.indicators), len(rec.echoes), rec.updates)
	}
}

// Call then, past the window, bill: bill wins even though no call:false arrived.
func TestLaterBillClearsCall(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)

	if err := e.Handle(evt("Sender1", model.ChannelCall, true, 1)); err != nil {
		t.Fatal(err)
	}
	clk.Advance(1500 * time.Millisecond)
	if err := e.Handle(evt("Sender1", model.ChannelBill, true, 1)); err != nil {
		t.Fatal(err)
	}

	s := e.Snapshot()[model.Station1]
	if s.Call.On || !s.Bill.On {
		t.Fatalf("call=%v bill=%v, want call=OFF bill=ON", s.Call.On, s.Bill.On)
	}
	last := rec.indicators[len(rec.indicators)-1]
	if last.call || !last.bill {
		t.Fatalf("indicator = %+v", last)
	}
}

func TestDebounceIsPerChannel(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)

	if err := e.Handle(evt("Sender2", model.ChannelCall, true, 1)); err != nil {
		t.Fatal(err)
	}
	clk.Advance(10 * time.Millisecond)
	// The sender's own bill:false arrives right after; different channel, accepted.
	if err := e.Handle(evt("Sender2", model.ChannelBill, false, 0)); err != nil {
		t.Fatalf("sibling channel debounced: %v", err)
	}
	if err := e.Handle(evt("Sender3", model.ChannelCall, true, 1)); err != nil {
		t.Fatalf("other station debounced: %v", err)
	}
	if s := e.Snapshot()[model.Station2]; !s.Call.On || s.Bill.On {
		t.Fatalf("station2 = %+v", s)
	}
}

func TestDebounceBoundaryAccepts(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)
	_ = e.Handle(evt("Sender1", model.ChannelCall, true, 1))
	clk.Advance(time.Second)
	if err := e.Handle(evt("Sender1", model.ChannelCall, false, 1)); err != nil {
		t.Fatalf("event exactly one window later: %v", err)
	}
}

func TestReplayAfterWindowIsIdempotent(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)
	in := evt("Sender3", model.ChannelBill, true, 4)

	_ = e.Handle(in)
	first := e.Snapshot()[model.Station3]
	for i := 0; i < 3; i++ {
		clk.Advance(2 * time.Second)
		if err := e.Handle(in); err != nil {
			t.Fatal(err)
		}
	}
	got := e.Snapshot()[model.Station3]
	if got.Call.On != first.Call.On || got.Bill.On != first.Bill.On || got.Bill.Count != first.Bill.Count {
		t.Fatalf("state drifted: %+v -> %+v", first, got)
	}
}

func TestUnknownSenderIsRoutingMismatch(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)
	if err := e.Handle(evt("Sender9", model.ChannelCall, true, 1)); !errors.Is(err, model.ErrRoutingMismatch) {
		t.Fatalf("err = %v", err)
	}
	if len(rec.boards) != 0 {
		t.Fatal("rejected event fired effects")
	}
}

func TestDeactivationPlaysNoCue(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)
	if err := e.Handle(evt("Sender1", model.ChannelBill, false, 0)); err != nil {
		t.Fatal(err)
	}
	if len(rec.cues) != 0 {
		t.Fatalf("cues = %v", rec.cues)
	}
}

func TestResetClearsBothChannels(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)
	_ = e.Handle(evt("Sender2", model.ChannelCall, true, 1))
	cues := len(rec.cues)

	clk.Advance(3 * time.Second)
	if err := e.Reset(model.Station2); err != nil {
		t.Fatal(err)
	}
	s := e.Snapshot()[model.Station2]
	if s.Call.On || s.Bill.On {
		t.Fatalf("after reset: %+v", s)
	}
	if len(rec.cues) != cues {
		t.Fatal("reset played a cue")
	}
	if len(rec.resets) != 1 || rec.resets[0] != "Sender2" {
		t.Fatalf("recorded resets = %v", rec.resets)
	}
	if len(rec.echoes) != 2 {
		t.Fatalf("echoes = %d, want 2", len(rec.echoes))
	}

	// The sender's clearing events right after the reset are absorbed.
	clk.Advance(100 * time.Millisecond)
	if err := e.Handle(evt("Sender2", model.ChannelCall, false, 1)); !errors.Is(err, model.ErrDebounced) {
		t.Fatalf("err = %v, want ErrDebounced", err)
	}
}

func TestBoardHasSixLines(t *testing.T) {
	clk, rec := newClock(), newRecorder()
	e := newTestEngine(t, clk, rec)
	_ = e.Handle(evt("Sender3", model.ChannelBill, true, 1))

	want := []string{
		"M1 (Call): OFF", "M1 (Bill): OFF",
		"M2 (Call): OFF", "M2 (Bill): OFF",
		"M3 (Call): OFF", "M3 (Bill): ON",
	}
	got := e.Board()
	if len(got) != len(want) {
		t.Fatalf("board = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if last := rec.boards[len(rec.boards)-1]; last[5] != "M3 (Bill): ON" {
		t.Errorf("rendered board = %v", last)
	}
}
