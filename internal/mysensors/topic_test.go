package mysensors

import (
	"errors"
	"testing"
)

func TestTopicString(t *testing.T) {
	topics := DefaultTopics()

	tests := []struct {
		name     string
		topic    Topic
		expected string
	}{
		{
			name:     "outbound set",
			topic:    topics.Outbound(12, 3, CommandSet, uint8(ValueTemp), false),
			expected: "mys-in/12/3/1/0/0",
		},
		{
			name:     "inbound internal with ack",
			topic:    topics.Inbound(12, 0, CommandInternal, uint8(InternalConfig), true),
			expected: "mys-out/12/0/3/1/6",
		},
		{
			name:     "id request from unassigned node",
			topic:    topics.Outbound(UnassignedNodeID, NodeChildID, CommandInternal, uint8(InternalIDRequest), false),
			expected: "mys-in/255/0/3/0/3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.topic.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTopicFilter(t *testing.T) {
	topics := Topics{Incoming: "in", Outgoing: "out"}

	reboot := topics.Inbound(7, 0, CommandInternal, uint8(InternalReboot), false)
	if got := reboot.Filter(FieldSensor, FieldAck); got != "in/7/+/3/+/13" {
		t.Errorf("Filter() = %q, want %q", got, "in/7/+/3/+/13")
	}

	set := topics.Inbound(7, 0, CommandSet, 0, false)
	if got := set.Filter(FieldSensor, FieldAck, FieldType); got != "in/7/+/1/+/+" {
		t.Errorf("Filter() = %q, want %q", got, "in/7/+/1/+/+")
	}

	// Filter must not change the topic itself.
	if got := reboot.String(); got != "in/7/0/3/0/13" {
		t.Errorf("String() after Filter() = %q", got)
	}
}

func TestTopicsScopes(t *testing.T) {
	topics := DefaultTopics()

	if got := topics.Broadcast(); got != "mys-out/255/#" {
		t.Errorf("Broadcast() = %q, want %q", got, "mys-out/255/#")
	}
	if got := topics.NodeScope(42); got != "mys-out/42/#" {
		t.Errorf("NodeScope(42) = %q, want %q", got, "mys-out/42/#")
	}
}

func TestParseTopicRoundTrip(t *testing.T) {
	topics := Topics{Incoming: "controller-out", Outgoing: "controller-in"}
	commands := []Command{CommandPresentation, CommandSet, CommandReq, CommandInternal, CommandStream}
	ids := []uint8{0, 1, 42, 254, 255}

	for _, node := range ids {
		for _, sensor := range ids {
			for _, cmd := range commands {
				for _, ack := range []bool{false, true} {
					for _, build := range []func(uint8, uint8, Command, uint8, bool) Topic{topics.Inbound, topics.Outbound} {
						want := build(node, sensor, cmd, sensor, ack)
						got, err := ParseTopic(want.String())
						if err != nil {
							t.Fatalf("ParseTopic(%q) error = %v", want.String(), err)
						}
						if got != want {
							t.Fatalf("ParseTopic(%q) = %+v, want %+v", want.String(), got, want)
						}
					}
				}
			}
		}
	}
}

func TestParseTopicInvalid(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"too few levels", "mys-out/1/2/3/0"},
		{"too many levels", "mys-out/1/2/3/0/4/5"},
		{"empty root", "/1/2/3/0/4"},
		{"node out of range", "mys-out/256/2/3/0/4"},
		{"non-numeric sensor", "mys-out/1/x/3/0/4"},
		{"negative type", "mys-out/1/2/3/0/-1"},
		{"bad ack", "mys-out/1/2/3/2/4"},
		{"wildcard", "mys-out/+/2/3/0/4"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTopic(tt.topic)
			if !errors.Is(err, ErrProtocolDecode) {
				t.Errorf("ParseTopic(%q) error = %v, want ErrProtocolDecode", tt.topic, err)
			}
		})
	}
}

func TestTopicsValidate(t *testing.T) {
	tests := []struct {
		name    string
		topics  Topics
		wantErr bool
	}{
		{"defaults", DefaultTopics(), false},
		{"empty incoming", Topics{Outgoing: "a"}, true},
		{"separator in root", Topics{Incoming: "a/b", Outgoing: "c"}, true},
		{"wildcard in root", Topics{Incoming: "a", Outgoing: "c#"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.topics.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
