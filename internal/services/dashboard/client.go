package dashboard

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/observability/metrics"
	"github.com/sony/gobreaker"
)

const batchPath = "/external/api/batch/update"

type Config struct {
	// BaseURL of the dashboard server, e.g. https://blynk.cloud.
	BaseURL string
	Token   string
	Timeout time.Duration

	QueueSize int

	BreakerFails    int
	BreakerOpen     time.Duration
	BreakerInterval time.Duration

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client pushes indicator updates to a virtual-pin dashboard. Updates are
// queued and sent by Run; a full queue drops the update.
type Client struct {
	base  string
	token string
	http  *http.Client
	cb    *gobreaker.CircuitBreaker
	queue chan url.Values
	log   *log.Logger
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.BreakerFails <= 0 {
		cfg.BreakerFails = 3
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	logger := cfg.Logger
	fails := uint32(cfg.BreakerFails)
	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  cfg.HTTPClient,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "dashboard",
			Interval: cfg.BreakerInterval,
			Timeout:  cfg.BreakerOpen,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= fails
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Printf("dashboard: breaker %s %s -> %s", name, from, to)
			},
		}),
		queue: make(chan url.Values, cfg.QueueSize),
		log:   logger,
	}
}

// IndicatorPins returns the call, bill and idle virtual pins of st.
func IndicatorPins(st model.Station) (call, bill, idle int) {
	base := int(st) * 3
	return base + 1, base + 2, base + 3
}

// LastUpdatePin is the virtual pin holding the last-update label of st.
func LastUpdatePin(st model.Station) int { return 13 + int(st) }

func pin(n int) string { return fmt.Sprintf("V%d", n) }

func flag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// SetIndicator writes the three mutually exclusive flags of st.
func (c *Client) SetIndicator(st model.Station, call, bill bool) {
	if !st.Valid() {
		return
	}
	pc, pb, pi := IndicatorPins(st)
	v := url.Values{}
	v.Set(pin(pc), flag(call))
	v.Set(pin(pb), flag(bill))
	v.Set(pin(pi), flag(!call && !bill))
	c.enqueue(v)
}

func (c *Client) SetLastUpdate(st model.Station, stamp string) {
	if !st.Valid() {
		return
	}
	v := url.Values{}
	v.Set(pin(LastUpdatePin(st)), stamp)
	c.enqueue(v)
}

func (c *Client) enqueue(v url.Values) {
	select {
	case c.queue <- v:
	default:
		metrics.IncPublishError("dashboard")
		c.log.Printf("dashboard: queue full, dropping %s", v.Encode())
	}
}

// Run sends queued updates until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.queue:
			if err := c.Send(ctx, v); err != nil {
				metrics.IncPublishError("dashboard")
				c.log.Printf("dashboard: update %s: %v", v.Encode(), err)
			}
		}
	}
}

// Send performs one batch update through the breaker.
func (c *Client) Send(ctx context.Context, pins url.Values) error {
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.do(ctx, pins)
	})
	return err
}

func (c *Client) State() gobreaker.State { return c.cb.State() }

func (c *Client) do(ctx context.Context, pins url.Values) error {
	q := url.Values{}
	q.Set("token", c.token)
	for k, vs := range pins {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+batchPath+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("batch update -> %s", res.Status)
	}
	return nil
}
