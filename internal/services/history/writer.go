package history

import (
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Writer sends history points through a non-blocking WriteAPI and keeps the
// time of the last asynchronous write error for the health handlers.
// A nil *Writer is a valid, disabled recorder.
type Writer struct {
	api api.WriteAPI
	now func() time.Time
	log *log.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewWriter(w api.WriteAPI, logger *log.Logger) *Writer {
	return newWriter(w, logger, time.Now)
}

func newWriter(w api.WriteAPI, logger *log.Logger, now func() time.Time) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	ww := &Writer{
		api:     w,
		now:     now,
		log:     logger,
		lastErr: now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = ww.now()
				ww.mu.Unlock()
				ww.log.Printf("history: influx write error: %v", err)
			}
		}
	}()
	return ww
}

func (w *Writer) RecordUpdate(id model.NodeID, ch model.Channel, on bool, count, rssi int, at time.Time) {
	if w == nil {
		return
	}
	w.api.WritePoint(UpdatePoint(id, ch, on, count, rssi, at))
	w.mark(KindUpdate)
}

func (w *Writer) RecordReset(id model.NodeID, at time.Time) {
	if w == nil {
		return
	}
	w.api.WritePoint(ResetPoint(id, at))
	w.mark(KindReset)
}

// Flush forces pending points out.
func (w *Writer) Flush() {
	if w == nil {
		return
	}
	w.api.Flush()
}

// LastErrorAge is the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return w.now().Sub(t)
}

// Count is the number of points written for kind.
func (w *Writer) Count(kind string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts[kind]
}

func (w *Writer) mark(kind string) {
	w.mu.Lock()
	w.counts[kind]++
	w.mu.Unlock()
}
