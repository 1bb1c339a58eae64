package mysensors

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout constants.
const (
	// topicSeparator splits the six topic levels.
	topicSeparator = "/"

	// topicLevels is the number of levels in every MySensors topic.
	topicLevels = 6

	// Wildcard is the MQTT single-level wildcard used in subscription filters.
	Wildcard = "+"

	// multiLevelWildcard matches every remaining level.
	multiLevelWildcard = "#"
)

// Default topic roots, as used by the MySensors MQTT gateway.
const (
	DefaultIncomingRoot = "mys-out"
	DefaultOutgoingRoot = "mys-in"
)

// Topic is a decoded MySensors topic.
//
// Type holds the fifth-level type whose meaning depends on Command:
// SensorType for C_PRESENTATION, ValueType for C_SET/C_REQ and
// InternalType for C_INTERNAL.
type Topic struct {
	Root     string
	NodeID   uint8
	SensorID uint8
	Command  Command
	Ack      bool
	Type     uint8
}

// Field names a topic level that can be replaced by a wildcard.
type Field int

// Wildcard-able topic levels.
const (
	FieldNode Field = iota
	FieldSensor
	FieldCommand
	FieldAck
	FieldType
)

// String renders the topic as "<root>/<node>/<sensor>/<command>/<ack>/<type>".
func (t Topic) String() string {
	return t.render(nil)
}

// Filter renders the topic with the given levels replaced by the single-level
// wildcard. The result is a subscription filter, not a publishable topic.
func (t Topic) Filter(fields ...Field) string {
	wild := make(map[Field]bool, len(fields))
	for _, f := range fields {
		wild[f] = true
	}
	return t.render(wild)
}

func (t Topic) render(wild map[Field]bool) string {
	level := func(f Field, v string) string {
		if wild[f] {
			return Wildcard
		}
		return v
	}
	ack := "0"
	if t.Ack {
		ack = "1"
	}
	return strings.Join([]string{
		t.Root,
		level(FieldNode, strconv.Itoa(int(t.NodeID))),
		level(FieldSensor, strconv.Itoa(int(t.SensorID))),
		level(FieldCommand, strconv.Itoa(int(t.Command))),
		level(FieldAck, ack),
		level(FieldType, strconv.Itoa(int(t.Type))),
	}, topicSeparator)
}

// ParseTopic decodes a six-level MySensors topic.
//
// The root must be a single non-empty level; numeric levels must be 0-255
// and the ack level must be "0" or "1".
//
// Returns:
//   - Topic: Decoded topic
//   - error: ErrProtocolDecode if the topic does not follow the scheme
func ParseTopic(s string) (Topic, error) {
	parts := strings.Split(s, topicSeparator)
	if len(parts) != topicLevels {
		return Topic{}, fmt.Errorf("%w: topic %q has %d levels, want %d", ErrProtocolDecode, s, len(parts), topicLevels)
	}
	if parts[0] == "" {
		return Topic{}, fmt.Errorf("%w: topic %q has an empty root", ErrProtocolDecode, s)
	}

	var nums [4]uint8
	for i, idx := range []int{1, 2, 3, 5} {
		v, err := strconv.ParseUint(parts[idx], 10, 8)
		if err != nil {
			return Topic{}, fmt.Errorf("%w: topic %q level %d must be 0-255, got %q", ErrProtocolDecode, s, idx, parts[idx])
		}
		nums[i] = uint8(v)
	}

	var ack bool
	switch parts[4] {
	case "0":
	case "1":
		ack = true
	default:
		return Topic{}, fmt.Errorf("%w: topic %q ack level must be 0 or 1, got %q", ErrProtocolDecode, s, parts[4])
	}

	return Topic{
		Root:     parts[0],
		NodeID:   nums[0],
		SensorID: nums[1],
		Command:  Command(nums[2]),
		Ack:      ack,
		Type:     nums[3],
	}, nil
}

// Topics builds topics for both directions of a node's traffic.
//
//	topics := mysensors.Topics{Incoming: "mys-out", Outgoing: "mys-in"}
//	topics.Outbound(5, 1, mysensors.CommandSet, uint8(mysensors.ValueTemp), false).String()
//	// Returns: "mys-in/5/1/1/0/0"
type Topics struct {
	// Incoming is the root of messages this node receives.
	Incoming string

	// Outgoing is the root of messages this node emits.
	Outgoing string
}

// DefaultTopics returns the roots used by a stock MySensors MQTT gateway.
func DefaultTopics() Topics {
	return Topics{Incoming: DefaultIncomingRoot, Outgoing: DefaultOutgoingRoot}
}

// Outbound returns the topic for a message emitted by this node.
func (t Topics) Outbound(nodeID, sensorID uint8, cmd Command, typ uint8, ack bool) Topic {
	return Topic{Root: t.Outgoing, NodeID: nodeID, SensorID: sensorID, Command: cmd, Ack: ack, Type: typ}
}

// Inbound returns the topic for a message addressed to this node.
func (t Topics) Inbound(nodeID, sensorID uint8, cmd Command, typ uint8, ack bool) Topic {
	return Topic{Root: t.Incoming, NodeID: nodeID, SensorID: sensorID, Command: cmd, Ack: ack, Type: typ}
}

// Broadcast returns the filter for everything sent to unassigned nodes.
//
// Pattern: mys-out/255/#
func (t Topics) Broadcast() string {
	return t.NodeScope(UnassignedNodeID)
}

// NodeScope returns the filter for everything sent to the given node.
//
// Pattern: mys-out/12/#
func (t Topics) NodeScope(nodeID uint8) string {
	return strings.Join([]string{t.Incoming, strconv.Itoa(int(nodeID)), multiLevelWildcard}, topicSeparator)
}

// Validate checks that both roots are usable as a single topic level.
func (t Topics) Validate() error {
	for name, root := range map[string]string{"incoming": t.Incoming, "outgoing": t.Outgoing} {
		if root == "" {
			return fmt.Errorf("%s topic root cannot be empty", name)
		}
		if strings.ContainsAny(root, topicSeparator+Wildcard+multiLevelWildcard) {
			return fmt.Errorf("%s topic root %q must not contain '/', '+' or '#'", name, root)
		}
	}
	return nil
}
