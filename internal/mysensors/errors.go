package mysensors

import "errors"

// Domain errors for the MySensors codec.
var (
	// ErrProtocolDecode is returned when an inbound topic or payload does not
	// follow the MySensors scheme. Callers drop the message and carry on.
	ErrProtocolDecode = errors.New("mysensors: protocol decode failed")

	// ErrUnknownType is returned when a sensor or value type name is not in
	// the MySensors tables.
	ErrUnknownType = errors.New("mysensors: unknown type name")
)
