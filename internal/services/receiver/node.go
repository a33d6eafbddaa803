package receiver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/LeonardoBeccarini/waitress_call/internal/codec"
	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
	"github.com/LeonardoBeccarini/waitress_call/internal/observability/metrics"
	"github.com/LeonardoBeccarini/waitress_call/pkg/bus"
)

const (
	DefaultTick      = 50 * time.Millisecond
	defaultInboxSize = 256
)

type NodeConfig struct {
	ID        model.NodeID
	Topics    model.Topics
	Codec     *codec.Codec
	Transport bus.Transport
	Engine    *Engine
	Cooldown  time.Duration
	InboxSize int
	Now       func() time.Time
	Logger    *log.Logger
}

type inbound struct {
	topic   string
	payload []byte
}

// Node is the receiver control loop. Bus callbacks only enqueue; every
// decode, state change and reset happens inside Tick.
type Node struct {
	id        model.NodeID
	topics    model.Topics
	codec     *codec.Codec
	transport bus.Transport
	engine    *Engine
	resets    *ResetCoordinator
	consumer  *bus.MultiConsumer
	inbox     chan inbound
	now       func() time.Time
	log       *log.Logger
}

func NewNode(cfg NodeConfig) *Node {
	if cfg.ID == "" {
		cfg.ID = model.DefaultReceiverID
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSON()
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
	n := &Node{
		id:        cfg.ID,
		topics:    cfg.Topics,
		codec:     cfg.Codec,
		transport: cfg.Transport,
		engine:    cfg.Engine,
		inbox:     make(chan inbound, cfg.InboxSize),
		now:       cfg.Now,
		log:       cfg.Logger,
	}
	n.resets = NewResetCoordinator(cfg.Cooldown, cfg.Now, n.performReset, cfg.Logger)
	n.consumer = bus.NewMultiConsumer(cfg.Transport, []string{
		cfg.Topics.ChannelWildcard(model.ChannelCall),
		cfg.Topics.ChannelWildcard(model.ChannelBill),
		cfg.Topics.Reset(),
	}, n.enqueue)
	return n
}

func (n *Node) Engine() *Engine           { return n.engine }
func (n *Node) Resets() *ResetCoordinator { return n.resets }
func (n *Node) Connected() bool           { return n.transport.IsConnected() }

// Start registers subscriptions and makes the first connection attempt.
// A failed attempt is not fatal: Tick keeps retrying.
func (n *Node) Start(ctx context.Context) error {
	if err := n.consumer.Subscribe(); err != nil {
		return err
	}
	err := n.transport.Connect(ctx)
	metrics.SetConnected(err == nil)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrTransportDisconnected, err)
	}
	return nil
}

// Tick runs one loop iteration: reconnect if the link is down, process the
// messages that were queued when the tick began, then drain reset requests.
func (n *Node) Tick(ctx context.Context) {
	if !n.transport.IsConnected() {
		err := n.transport.Connect(ctx)
		metrics.ObserveReconnect(err == nil)
		metrics.SetConnected(err == nil)
		if err != nil {
			n.log.Printf("receiver: %v: %v", model.ErrTransportDisconnected, err)
		}
	}

	n.drainInbox()
	n.resets.Drain()
}

func (n *Node) drainInbox() {
	for i := len(n.inbox); i > 0; i-- {
		select {
		case in := <-n.inbox:
			n.dispatch(in)
		default:
			return
		}
	}
}

// Run ticks every interval until ctx is cancelled.
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

func (n *Node) enqueue(topic string, payload []byte) {
	select {
	case n.inbox <- inbound{topic: topic, payload: payload}:
	default:
		n.log.Printf("receiver: inbox full, dropping message on %s", topic)
	}
}

func (n *Node) dispatch(in inbound) {
	msg, err := n.codec.Decode(in.payload)
	if err != nil {
		metrics.ObserveEvent(metrics.ResultDecode)
		n.log.Printf("receiver: drop %s: %v", in.topic, err)
		return
	}

	switch m := msg.(type) {
	case messages.Event:
		if n.topics.IsReset(in.topic) {
			metrics.ObserveEvent(metrics.ResultRouting)
			n.log.Printf("receiver: drop event from %s on reset topic: %v", m.SenderID, model.ErrRoutingMismatch)
			return
		}
		err := n.engine.Handle(m)
		switch {
		case err == nil:
			metrics.ObserveEvent(metrics.ResultAccepted)
		case errors.Is(err, model.ErrDebounced):
			metrics.ObserveEvent(metrics.ResultDebounced)
			n.log.Printf("receiver: %v", err)
		default:
			metrics.ObserveEvent(metrics.ResultRouting)
			n.log.Printf("receiver: drop %s: %v", in.topic, err)
		}
	case messages.ResetCommand:
		if !n.topics.IsReset(in.topic) {
			metrics.ObserveReset(SourceBus, metrics.ResultRouting)
			n.log.Printf("receiver: drop reset from %s on %s: %v", m.OriginID, in.topic, model.ErrRoutingMismatch)
			return
		}
		if err := n.handleReset(m); err != nil {
			metrics.ObserveReset(SourceBus, metrics.ResultIgnored)
			n.log.Printf("receiver: ignore reset from %s: %v", m.OriginID, err)
		}
	}
}

// handleReset turns a bus reset into a queued request. The receiver's own
// commands come back on the shared topic and are skipped here.
func (n *Node) handleReset(cmd messages.ResetCommand) error {
	if cmd.OriginID == n.id {
		return fmt.Errorf("%w: own reset echo", model.ErrRoutingMismatch)
	}
	if cmd.Status {
		return fmt.Errorf("%w: status must be false", model.ErrRoutingMismatch)
	}
	st, ok := n.engine.Roster().Lookup(cmd.Target)
	if !ok {
		return fmt.Errorf("%w: unknown target %q", model.ErrRoutingMismatch, cmd.Target)
	}
	_, err := n.resets.RequestReset(st, SourceBus)
	return err
}

// performReset clears st in the view and tells the station to clear too.
func (n *Node) performReset(st model.Station) error {
	if err := n.engine.Reset(st); err != nil {
		return err
	}
	cmd := messages.ResetCommand{
		OriginID:  n.id,
		Scope:     messages.ScopeAll,
		Status:    false,
		Target:    n.engine.Roster().ID(st),
		Timestamp: n.now(),
	}
	payload, err := n.codec.EncodeReset(cmd)
	if err != nil {
		return err
	}
	if err := n.transport.Publish(n.topics.Reset(), false, payload); err != nil {
		metrics.IncPublishError("reset")
		return err
	}
	n.log.Printf("receiver: reset command sent to %s", cmd.Target)
	return nil
}
