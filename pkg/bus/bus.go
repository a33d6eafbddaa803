// Package bus is the publish/subscribe transport shared by senders and the
// receiver. Delivery is at-most-once (QoS 0) and unordered; the package
// neither retries publishes nor orders them.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrDisconnected is returned by operations attempted while the link is down.
var ErrDisconnected = errors.New("bus: not connected")

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	RetryDelay     time.Duration // fixed wait between connection attempts
	MaxAttempts    int           // attempts per Connect call

	Logger *log.Logger
}

// Handler receives the raw topic and payload of an inbound message. It runs
// on the transport's goroutine and must not block.
type Handler func(topic string, payload []byte)

// Transport is what a node needs from the bus.
type Transport interface {
	IPublisher
	Connect(ctx context.Context) error
	IsConnected() bool
	Subscribe(topic string, h Handler) error
	Unsubscribe(topic string) error
}

// Conn is an MQTT-backed Transport. Subscriptions are remembered and
// re-applied after every successful Connect, since sessions are clean.
type Conn struct {
	cfg    Config
	client mqtt.Client
	log    *log.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

func NewConn(cfg Config) *Conn {
	return newConn(cfg, mqtt.NewClient)
}

func newConn(cfg Config, factory func(*mqtt.ClientOptions) mqtt.Client) *Conn {
	if cfg.Port == 0 {
		cfg.Port = 1883
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	c := &Conn{cfg: cfg, log: cfg.Logger, subs: make(map[string]Handler)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Printf("bus: connection lost: %v", err)
	})
	c.client = factory(opts)
	return c
}

// Connect tries to reach the broker up to MaxAttempts times, waiting
// RetryDelay between attempts. It blocks the caller for at most
// MaxAttempts*(ConnectTimeout+RetryDelay); a failed Connect is meant to be
// retried on a later tick.
func (c *Conn) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.RetryDelay), uint64(c.cfg.MaxAttempts-1)),
		ctx,
	)
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		token := c.client.Connect()
		if !token.WaitTimeout(c.cfg.ConnectTimeout) {
			c.log.Printf("bus: connect to %s timed out (attempt %d)", addr, attempt)
			return fmt.Errorf("connect timeout after %s", c.cfg.ConnectTimeout)
		}
		if err := token.Error(); err != nil {
			c.log.Printf("bus: connect to %s failed (attempt %d): %v", addr, attempt, err)
			return err
		}
		return nil
	}, bo)
	if err != nil {
		return fmt.Errorf("%w: %s after %d attempts: %v", ErrDisconnected, addr, attempt, err)
	}
	c.log.Printf("bus: connected to %s as %s", addr, c.cfg.ClientID)

	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()
	for topic, h := range subs {
		if err := c.subscribe(topic, h); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Subscribe registers h for topic. While disconnected the subscription is
// only recorded and takes effect on the next Connect.
func (c *Conn) Subscribe(topic string, h Handler) error {
	c.mu.Lock()
	c.subs[topic] = h
	c.mu.Unlock()
	if !c.IsConnected() {
		return nil
	}
	return c.subscribe(topic, h)
}

func (c *Conn) subscribe(topic string, h Handler) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) {
		h(m.Topic(), m.Payload())
	})
	if !token.WaitTimeout(c.cfg.ConnectTimeout) {
		return fmt.Errorf("bus: subscribe %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("bus: subscribe %s: %w", topic, err)
	}
	c.log.Printf("bus: subscribed to %s", topic)
	return nil
}

func (c *Conn) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
	if !c.IsConnected() {
		return nil
	}
	token := c.client.Unsubscribe(topic)
	token.WaitTimeout(c.cfg.ConnectTimeout)
	return token.Error()
}

func (c *Conn) Close() {
	if c.IsConnected() {
		c.client.Disconnect(250)
		c.log.Println("bus: disconnected")
	}
}
