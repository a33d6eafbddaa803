package model

import "strings"

const DefaultTopicPrefix = "waitress"

// Topics builds the bus topic names under a common prefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(strings.TrimSpace(t.Prefix), "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// Channel is the sender -> receiver event topic, e.g. waitress/ESP32_Sender1/call.
func (t Topics) Channel(id NodeID, c Channel) string {
	return t.prefix() + "/" + string(id) + "/" + c.String()
}

// ChannelWildcard subscribes to one channel of every sender.
func (t Topics) ChannelWildcard(c Channel) string {
	return t.prefix() + "/+/" + c.String()
}

func (t Topics) Reset() string { return t.prefix() + "/reset" }

func (t Topics) Timestamp(id NodeID) string {
	return t.prefix() + "/timestamp/" + string(id)
}

// IsReset reports whether topic is the shared reset topic.
func (t Topics) IsReset(topic string) bool { return topic == t.Reset() }
