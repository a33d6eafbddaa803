package display

import (
	"log"
	"sync"
)

// LogAlert stands in for the audio player: it logs the cue slot and keeps
// a tally per slot.
type LogAlert struct {
	mu     sync.Mutex
	logger *log.Logger
	played map[int]int
}

func NewLogAlert(logger *log.Logger) *LogAlert {
	if logger == nil {
		logger = log.Default()
	}
	return &LogAlert{logger: logger, played: make(map[int]int)}
}

func (a *LogAlert) Play(cue int) {
	a.mu.Lock()
	a.played[cue]++
	a.mu.Unlock()
	a.logger.Printf("alert: playing cue %d", cue)
}

// Played reports how many times cue has fired.
func (a *LogAlert) Played(cue int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.played[cue]
}
