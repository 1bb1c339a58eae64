package node

import (
	"errors"

	"github.com/nerrad567/mysnode/internal/mysensors"
)

// Errors returned by the session. Check with errors.Is.
var (
	// ErrTransportConnect means the broker refused or never answered the
	// connection. The session is left in StateFailed.
	ErrTransportConnect = errors.New("node: transport connect failed")

	// ErrProtocolDecode marks an inbound message that does not follow the
	// MySensors scheme. Such messages are logged and dropped.
	ErrProtocolDecode = mysensors.ErrProtocolDecode

	// ErrUnknownSensor is returned for a sensor id that was never registered.
	ErrUnknownSensor = errors.New("node: unknown sensor")

	// ErrInvalidState is returned when an operation is not allowed in the
	// current session state.
	ErrInvalidState = errors.New("node: invalid session state")

	// ErrDuplicateSensor is returned when a sensor id is registered twice.
	ErrDuplicateSensor = errors.New("node: duplicate sensor id")

	// ErrIdentityTimeout is returned when the controller did not assign a
	// node id within the configured attempts. Connect may be retried.
	ErrIdentityTimeout = errors.New("node: no id response from controller")

	// ErrConfigTimeout is returned when the controller did not answer a
	// unit system query within the configured attempts.
	ErrConfigTimeout = errors.New("node: no config response from controller")
)
