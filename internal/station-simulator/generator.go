package station_simulator

import (
	"math/rand"
	"sync"

	"github.com/LeonardoBeccarini/waitress_call/internal/services/sender"
)

// ====== Tunables ======
const (
	// resetShare is the fraction of generated presses that are resets; the
	// rest split evenly between call and bill.
	resetShare = 0.10

	minRSSI = -95
	maxRSSI = -30
)

// PressGenerator emits random button presses, at most one per poll.
type PressGenerator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	prob float64
}

// NewPressGenerator presses a button on each poll with probability prob.
func NewPressGenerator(prob float64, seed int64) *PressGenerator {
	return &PressGenerator{rng: rand.New(rand.NewSource(seed)), prob: clamp01(prob)}
}

func (g *PressGenerator) Poll() []sender.Button {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rng.Float64() >= g.prob {
		return nil
	}
	switch r := g.rng.Float64(); {
	case r < resetShare:
		return []sender.Button{sender.ButtonReset}
	case r < resetShare+(1-resetShare)/2:
		return []sender.Button{sender.ButtonCall}
	default:
		return []sender.Button{sender.ButtonBill}
	}
}

// SignalGenerator is a bounded random walk standing in for the radio's RSSI.
type SignalGenerator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	level int
}

func NewSignalGenerator(start int, seed int64) *SignalGenerator {
	return &SignalGenerator{rng: rand.New(rand.NewSource(seed)), level: clampRSSI(start)}
}

// Next moves the level by at most 2 dBm and returns it.
func (g *SignalGenerator) Next() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.level = clampRSSI(g.level + g.rng.Intn(5) - 2)
	return g.level
}

func clampRSSI(v int) int {
	if v < minRSSI {
		return minRSSI
	}
	if v > maxRSSI {
		return maxRSSI
	}
	return v
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
