package mysensors

import (
	"bytes"
	"fmt"
	"strconv"
)

// Message is an inbound MySensors message with its topic decoded.
type Message struct {
	Topic   Topic
	Payload []byte
	QoS     byte
}

// UnitSystem is the controller's unit preference reported via I_CONFIG.
type UnitSystem int

// Unit systems.
const (
	Metric UnitSystem = iota
	Imperial
)

// String returns "metric" or "imperial".
func (u UnitSystem) String() string {
	if u == Imperial {
		return "imperial"
	}
	return "metric"
}

// imperialCode is the I_CONFIG payload that selects imperial units.
const imperialCode = "I"

// minAssignableNodeID and maxAssignableNodeID bound IDs a controller may hand out.
// 0 is the gateway and 255 means unassigned.
const (
	minAssignableNodeID = 1
	maxAssignableNodeID = 254
)

// ParseUnitSystem decodes an I_CONFIG payload. "I" selects imperial; any
// other payload, including an empty one, selects metric.
func ParseUnitSystem(payload []byte) UnitSystem {
	if string(payload) == imperialCode {
		return Imperial
	}
	return Metric
}

// ParseNodeID decodes an I_ID_RESPONSE payload.
//
// The payload is a base-10 integer in 1-254. Surrounding whitespace is
// tolerated since some controllers append a newline.
//
// Returns:
//   - uint8: The assigned node ID
//   - error: ErrProtocolDecode if the payload is not a usable node ID
func ParseNodeID(payload []byte) (uint8, error) {
	s := string(bytes.TrimSpace(payload))
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: node id payload %q is not a number in 0-255", ErrProtocolDecode, payload)
	}
	if v < minAssignableNodeID || v > maxAssignableNodeID {
		return 0, fmt.Errorf("%w: node id %d outside %d-%d", ErrProtocolDecode, v, minAssignableNodeID, maxAssignableNodeID)
	}
	return uint8(v), nil
}

// FormatFloat renders a reading with six fractional digits ("21.500000"),
// matching the printf %f form MySensors controllers expect.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// FormatInt renders an integer reading in base 10.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
