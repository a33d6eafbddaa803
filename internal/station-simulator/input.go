package station_simulator

import (
	"bufio"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/services/sender"
)

// DefaultDeadTime is the input-layer lockout after an accepted edge.
const DefaultDeadTime = 200 * time.Millisecond

// ParseButton maps a typed command to a button: c/call, b/bill, r/reset.
func ParseButton(s string) (sender.Button, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "c", "call":
		return sender.ButtonCall, true
	case "b", "bill":
		return sender.ButtonBill, true
	case "r", "reset":
		return sender.ButtonReset, true
	default:
		return 0, false
	}
}

// LineInput turns lines read from r into button presses.
type LineInput struct {
	mu      sync.Mutex
	pending []sender.Button
	done    chan struct{}
}

func NewLineInput(r io.Reader, logger *log.Logger) *LineInput {
	if logger == nil {
		logger = log.Default()
	}
	in := &LineInput{done: make(chan struct{})}
	go func() {
		defer close(in.done)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			line := sc.Text()
			if strings.TrimSpace(line) == "" {
				continue
			}
			b, ok := ParseButton(line)
			if !ok {
				logger.Printf("simulator: unknown input %q (use c, b or r)", line)
				continue
			}
			in.mu.Lock()
			in.pending = append(in.pending, b)
			in.mu.Unlock()
		}
		if err := sc.Err(); err != nil {
			logger.Printf("simulator: input: %v", err)
		}
	}()
	return in
}

func (in *LineInput) Poll() []sender.Button {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.pending
	in.pending = nil
	return out
}

// Done is closed once the reader is exhausted.
func (in *LineInput) Done() <-chan struct{} { return in.done }

// DeadTime drops repeated edges of the same button inside window.
type DeadTime struct {
	src    sender.InputSource
	window time.Duration
	now    func() time.Time
	last   map[sender.Button]time.Time
}

func WithDeadTime(src sender.InputSource, window time.Duration, now func() time.Time) *DeadTime {
	if window <= 0 {
		window = DefaultDeadTime
	}
	if now == nil {
		now = time.Now
	}
	return &DeadTime{src: src, window: window, now: now, last: make(map[sender.Button]time.Time)}
}

func (d *DeadTime) Poll() []sender.Button {
	raw := d.src.Poll()
	if len(raw) == 0 {
		return nil
	}
	now := d.now()
	out := raw[:0:0]
	for _, b := range raw {
		if last, ok := d.last[b]; ok && now.Sub(last) < d.window {
			continue
		}
		d.last[b] = now
		out = append(out, b)
	}
	return out
}
