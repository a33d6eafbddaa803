package bus

import "log"

// Subscriber is the subscribe half of Transport.
type Subscriber interface {
	Subscribe(topic string, h Handler) error
	Unsubscribe(topic string) error
}

// MultiConsumer routes several topics to one handler.
type MultiConsumer struct {
	sub     Subscriber
	topics  []string
	handler Handler
}

func NewMultiConsumer(sub Subscriber, topics []string, handler Handler) *MultiConsumer {
	return &MultiConsumer{sub: sub, topics: topics, handler: handler}
}

// Subscribe registers every topic; it stops at the first failure.
func (m *MultiConsumer) Subscribe() error {
	for _, topic := range m.topics {
		err := m.sub.Subscribe(topic, func(t string, payload []byte) {
			if m.handler == nil {
				log.Printf("bus: no handler set for topic %s", topic)
				return
			}
			m.handler(t, payload)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *MultiConsumer) Unsubscribe() {
	for _, topic := range m.topics {
		if err := m.sub.Unsubscribe(topic); err != nil {
			log.Printf("bus: unsubscribe %s: %v", topic, err)
		}
	}
}
