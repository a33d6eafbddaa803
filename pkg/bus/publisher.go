package bus

import "fmt"

// IPublisher sends one payload to one topic, best effort.
type IPublisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// Publish sends payload at QoS 0. A failure is returned, never retried.
func (c *Conn) Publish(topic string, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("%w: publish %s", ErrDisconnected, topic)
	}
	token := c.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(c.cfg.PublishTimeout) {
		return fmt.Errorf("bus: publish %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	return nil
}

// TopicPublisher is bound to a single topic.
type TopicPublisher struct {
	pub      IPublisher
	topic    string
	retained bool
}

func NewTopicPublisher(pub IPublisher, topic string, retained bool) *TopicPublisher {
	return &TopicPublisher{pub: pub, topic: topic, retained: retained}
}

func (p *TopicPublisher) Topic() string { return p.topic }

func (p *TopicPublisher) PublishMessage(payload []byte) error {
	return p.pub.Publish(p.topic, p.retained, payload)
}
