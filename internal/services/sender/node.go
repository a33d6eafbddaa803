package sender

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/codec"
	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
	"github.com/LeonardoBeccarini/waitress_call/internal/observability/metrics"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
	"github.com/LeonardoBeccarini/waitress_call/pkg/dedup"
)

const (
	DefaultTick         = 50 * time.Millisecond
	DefaultResetWindow  = time.Second
	defaultInboxSize    = 64
	defaultDedupEntries = 1024
)

// InputSource yields the input edges seen since the last poll. Poll must
// not block.
type InputSource interface {
	Poll() []Button
}

type NodeConfig struct {
	Station   *Station
	Topics    model.Topics
	Codec     *codec.Codec
	Transport bus.Transport
	Input     InputSource
	// ResetWindow drops byte-identical reset commands repeated inside it.
	ResetWindow time.Duration
	InboxSize   int
	Now         func() time.Time
	Logger      *log.Logger
}

// Node is the sender control loop: it publishes events for input edges and
// applies reset commands addressed to its station.
type Node struct {
	station   *Station
	codec     *codec.Codec
	transport bus.Transport
	consumer  *bus.MultiConsumer
	pubs      map[model.Channel]*bus.TopicPublisher
	input     InputSource
	deduper   *dedup.Deduper
	inbox     chan []byte
	log       *log.Logger

	booted bool
}

func NewNode(cfg NodeConfig) *Node {
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON()
	}
	if cfg.ResetWindow <= 0 {
		cfg.ResetWindow = DefaultResetWindow
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaultInboxSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	// events are retained so a restarting receiver sees the last state
	pubs := make(map[model.Channel]*bus.TopicPublisher, len(model.Channels))
	for _, ch := range model.Channels {
		pubs[ch] = bus.NewTopicPublisher(cfg.Transport, cfg.Topics.Channel(cfg.Station.ID(), ch), true)
	}
	n := &Node{
		station:   cfg.Station,
		codec:     cfg.Codec,
		transport: cfg.Transport,
		pubs:      pubs,
		input:     cfg.Input,
		deduper:   dedup.New(cfg.ResetWindow, defaultDedupEntries).WithClock(cfg.Now),
		inbox:     make(chan []byte, cfg.InboxSize),
		log:       cfg.Logger,
	}
	n.consumer = bus.NewMultiConsumer(cfg.Transport, []string{cfg.Topics.Reset()}, n.enqueue)
	return n
}

func (n *Node) Connected() bool { return n.transport.IsConnected() }

// Start subscribes to the reset topic, connects and announces a cleared
// station. When the first connect fails the announcement is made by the
// first Tick that gets the link up.
func (n *Node) Start(ctx context.Context) error {
	if err := n.consumer.Subscribe(); err != nil {
		return err
	}
	if err := n.transport.Connect(ctx); err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransportDisconnected, err)
	}
	n.boot()
	return nil
}

func (n *Node) boot() {
	n.booted = true
	n.publish(n.station.Boot())
}

// Tick reconnects when needed, applies queued reset commands and publishes
// the events for any new input edges.
func (n *Node) Tick(ctx context.Context) {
	if !n.transport.IsConnected() {
		err := n.transport.Connect(ctx)
		metrics.ObserveReconnect(err == nil)
		if err != nil {
			n.log.Printf("sender: %v: %v", model.ErrTransportDisconnected, err)
		} else if !n.booted {
			n.boot()
		}
	}

	n.drainInbox()

	if n.input == nil {
		return
	}
	for _, b := range n.input.Poll() {
		n.log.Printf("sender: %s: %s pressed", n.station.ID(), b)
		n.publish(n.station.Press(b))
	}
}

// drainInbox handles only what was queued before it was called.
func (n *Node) drainInbox() {
	for pending := len(n.inbox); pending > 0; pending-- {
		select {
		case payload := <-n.inbox:
			n.handleReset(payload)
		default:
			return
		}
	}
}

func (n *Node) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTick
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			n.consumer.Unsubscribe()
			return ctx.Err()
		case <-ticker.C:
			n.Tick(ctx)
		}
	}
}

func (n *Node) enqueue(_ string, payload []byte) {
	select {
	case n.inbox <- payload:
	default:
		n.log.Printf("sender: inbox full, dropping reset payload")
	}
}

func (n *Node) handleReset(payload []byte) {
	h := sha256.Sum256(payload)
	if !n.deduper.ShouldProcess(hex.EncodeToString(h[:])) {
		n.log.Printf("sender: %s: duplicate reset dropped", n.station.ID())
		return
	}
	msg, err := n.codec.Decode(payload)
	if err != nil {
		n.log.Printf("sender: drop reset payload: %v", err)
		return
	}
	cmd, ok := msg.(messages.ResetCommand)
	if !ok {
		n.log.Printf("sender: %v: event on reset topic", model.ErrRoutingMismatch)
		return
	}
	evts, err := n.station.HandleReset(cmd)
	if err != nil {
		n.log.Printf("sender: %s: reset ignored: %v", n.station.ID(), err)
		return
	}
	n.publish(evts)
}

// publish sends events in order. A failed publish is logged and the next
// event is still attempted.
func (n *Node) publish(evts []messages.Event) {
	for _, e := range evts {
		payload, err := n.codec.EncodeEvent(e)
		if err != nil {
			n.log.Printf("sender: encode %s: %v", e.Channel, err)
			continue
		}
		pub := n.pubs[e.Channel]
		if err := pub.PublishMessage(payload); err != nil {
			metrics.IncPublishError("event")
			n.log.Printf("sender: publish %s: %v", pub.Topic(), err)
			continue
		}
		n.log.Printf("sender: sent to %s: %s", pub.Topic(), payload)
	}
}
