// Package codec turns station events and reset commands into flat bus
// payloads and back.
//
// Every format carries the same field set: id, type, status, count, rssi,
// timestamp and, for reset commands only, target. A payload that carries a
// target field (or type "all") decodes as a ResetCommand; anything else is an
// Event. Routing is not checked here: an unknown sender or target decodes
// fine and is rejected later by whoever consumes the message.
package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/LeonardoBeccarini/waitress_call/internal/model"
	"github.com/LeonardoBeccarini/waitress_call/internal/model/messages"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatCBOR    Format = "cbor"
)

// wire is the flat record shared by every format.
type wire struct {
	ID        string  `json:"id" msgpack:"id" cbor:"id"`
	Type      string  `json:"type" msgpack:"type" cbor:"type"`
	Status    bool    `json:"status" msgpack:"status" cbor:"status"`
	Count     int     `json:"count" msgpack:"count" cbor:"count"`
	RSSI      int     `json:"rssi" msgpack:"rssi" cbor:"rssi"`
	Timestamp string  `json:"timestamp" msgpack:"timestamp" cbor:"timestamp"`
	Target    *string `json:"target,omitempty" msgpack:"target,omitempty" cbor:"target,omitempty"`
}

// Codec encodes and decodes messages in one wire format.
type Codec struct {
	format    Format
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

// New returns the codec for format; an empty format means JSON.
func New(format string) (*Codec, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case "", FormatJSON:
		return JSON(), nil
	case FormatMsgpack:
		return &Codec{format: FormatMsgpack, marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}, nil
	case FormatCBOR:
		return &Codec{format: FormatCBOR, marshal: cbor.Marshal, unmarshal: cbor.Unmarshal}, nil
	default:
		return nil, fmt.Errorf("codec: unknown format %q", format)
	}
}

// JSON is the firmware-compatible default.
func JSON() *Codec {
	return &Codec{format: FormatJSON, marshal: json.Marshal, unmarshal: json.Unmarshal}
}

func (c *Codec) Format() Format { return c.format }

func (c *Codec) EncodeEvent(e messages.Event) ([]byte, error) {
	return c.marshal(wire{
		ID:        string(e.SenderID),
		Type:      e.Channel.String(),
		Status:    e.Active,
		Count:     e.Count,
		RSSI:      e.RSSI,
		Timestamp: messages.FormatTimestamp(e.Timestamp),
	})
}

func (c *Codec) EncodeReset(r messages.ResetCommand) ([]byte, error) {
	target := string(r.Target)
	scope := r.Scope
	if scope == "" {
		scope = messages.ScopeAll
	}
	return c.marshal(wire{
		ID:        string(r.OriginID),
		Type:      string(scope),
		Status:    r.Status,
		Timestamp: messages.FormatTimestamp(r.Timestamp),
		Target:    &target,
	})
}

// Encode dispatches on the concrete message type.
func (c *Codec) Encode(m messages.Message) ([]byte, error) {
	switch v := m.(type) {
	case messages.Event:
		return c.EncodeEvent(v)
	case messages.ResetCommand:
		return c.EncodeReset(v)
	default:
		return nil, fmt.Errorf("codec: cannot encode %T", m)
	}
}

// Decode never panics on garbage; every failure wraps model.ErrDecode.
func (c *Codec) Decode(data []byte) (messages.Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", model.ErrDecode)
	}
	var fields map[string]any
	if err := c.unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrDecode, c.format, err)
	}

	id, ok := fields["id"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: id missing or not a string", model.ErrDecode)
	}
	status, ok := fields["status"].(bool)
	if !ok {
		return nil, fmt.Errorf("%w: status missing or not a bool", model.ErrDecode)
	}
	typ, _ := fields["type"].(string)
	ts := parseTimestamp(fields["timestamp"])

	rawTarget, hasTarget := fields["target"]
	if hasTarget || typ == string(messages.ScopeAll) {
		// A null target reads as empty and is rejected by the consumer.
		target, ok := rawTarget.(string)
		if rawTarget != nil && !ok {
			return nil, fmt.Errorf("%w: target is not a string", model.ErrDecode)
		}
		scope, ok := messages.ParseResetScope(typ)
		if !ok {
			return nil, fmt.Errorf("%w: reset type %q", model.ErrDecode, typ)
		}
		return messages.ResetCommand{
			OriginID:  model.NodeID(id),
			Scope:     scope,
			Status:    status,
			Target:    model.NodeID(target),
			Timestamp: ts,
		}, nil
	}

	ch, ok := model.ParseChannel(typ)
	if !ok {
		return nil, fmt.Errorf("%w: event type %q", model.ErrDecode, typ)
	}
	return messages.Event{
		SenderID:  model.NodeID(id),
		Channel:   ch,
		Active:    status,
		Count:     intField(fields["count"]),
		RSSI:      intField(fields["rssi"]),
		Timestamp: ts,
	}, nil
}

// intField reads an optional numeric field; a missing or non-numeric value
// reads as zero.
func intField(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int8:
		return int(x)
	case int16:
		return int(x)
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		if x > math.MaxInt {
			return math.MaxInt
		}
		return int(x)
	case uint8:
		return int(x)
	case uint16:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		if x > math.MaxInt {
			return math.MaxInt
		}
		return int(x)
	case float32:
		return clampFloat(float64(x))
	case float64:
		return clampFloat(x)
	default:
		return 0
	}
}

// clampFloat truncates f toward zero, saturating at the int range. NaN is 0.
func clampFloat(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func parseTimestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(messages.TimestampLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
