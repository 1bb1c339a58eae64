// Package mysensors implements the MySensors MQTT topic scheme and the small
// set of payload codecs a node needs.
//
// Every MySensors message travels on a six-level topic:
//
//	<root>/<node-id>/<child-sensor-id>/<command>/<ack>/<type>
//
// The root differs per direction. Messages a node receives arrive under the
// controller's output root (default "mys-out"); messages a node emits go to the
// controller's input root (default "mys-in"). Both are configurable and carried
// by Topics.
//
// # Usage
//
//	topics := mysensors.DefaultTopics()
//	t := topics.Outbound(12, 3, mysensors.CommandSet, uint8(mysensors.ValueTemp), false)
//	// t.String() == "mys-in/12/3/1/0/0"
//
//	parsed, err := mysensors.ParseTopic("mys-out/12/0/3/0/6")
//	if errors.Is(err, mysensors.ErrProtocolDecode) {
//	    // malformed topic
//	}
//
// Subscription filters use the MQTT single-level wildcard:
//
//	filter := topics.Inbound(12, 0, mysensors.CommandInternal, uint8(mysensors.InternalReboot), false).
//	    Filter(mysensors.FieldSensor, mysensors.FieldAck)
//	// filter == "mys-out/12/+/3/+/13"
//
// All functions in this package are pure and safe for concurrent use.
package mysensors
