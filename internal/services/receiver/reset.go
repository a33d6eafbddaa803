package receiver

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/observability/metrics"
)

const DefaultCooldown = time.Second

// Reset request sources.
const (
	SourceDashboard = "dashboard"
	SourceBus       = "bus"
)

type ResetRequest struct {
	Ticket  string
	Station model.Station
	Source  string
	At      time.Time
}

// ResetCoordinator queues reset requests and performs them once per tick,
// at most once per station per cooldown window.
type ResetCoordinator struct {
	cooldown time.Duration
	now      func() time.Time
	perform  func(model.Station) error
	log      *log.Logger

	mu    sync.Mutex
	queue []ResetRequest

	// last is touched only by Drain.
	last map[model.Station]time.Time
}

func NewResetCoordinator(cooldown time.Duration, now func() time.Time, perform func(model.Station) error, logger *log.Logger) *ResetCoordinator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ResetCoordinator{
		cooldown: cooldown,
		now:      now,
		perform:  perform,
		log:      logger,
		last:     make(map[model.Station]time.Time, len(model.Stations)),
	}
}

// RequestReset queues a reset for st and returns a ticket for log
// correlation. Nothing is executed inline.
func (c *ResetCoordinator) RequestReset(st model.Station, source string) (string, error) {
	if !st.Valid() {
		return "", fmt.Errorf("%w: %s", model.ErrRoutingMismatch, st)
	}
	req := ResetRequest{
		Ticket:  uuid.New().String(),
		Station: st,
		Source:  source,
		At:      c.now(),
	}
	c.mu.Lock()
	c.queue = append(c.queue, req)
	c.mu.Unlock()
	c.log.Printf("receiver: reset %s queued for %s by %s", req.Ticket, st, source)
	return req.Ticket, nil
}

// Pending is the number of queued requests.
func (c *ResetCoordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Drain empties the queue. Requests for the same station collapse to one
// cooldown check; requests inside the cooldown are dropped silently.
// It returns the number of resets performed.
func (c *ResetCoordinator) Drain() int {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return 0
	}
	performed := 0
	seen := make(map[model.Station]bool, len(batch))
	for _, req := range batch {
		if seen[req.Station] {
			metrics.ObserveReset(req.Source, metrics.ResultIgnored)
			continue
		}
		seen[req.Station] = true

		now := c.now()
		if last, ok := c.last[req.Station]; ok && now.Sub(last) < c.cooldown {
			c.log.Printf("receiver: reset %s for %s dropped: %v", req.Ticket, req.Station, model.ErrCooldown)
			metrics.ObserveReset(req.Source, metrics.ResultCooldown)
			continue
		}
		c.last[req.Station] = now
		if err := c.perform(req.Station); err != nil {
			c.log.Printf("receiver: reset %s for %s: %v", req.Ticket, req.Station, err)
		}
		metrics.ObserveReset(req.Source, metrics.ResultPerformed)
		performed++
	}
	return performed
}
