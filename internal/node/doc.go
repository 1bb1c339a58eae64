// Package node runs a MySensors node over MQTT.
//
// A Session owns the node lifecycle:
//
//	Disconnected -> Connecting -> AwaitingIdentity -> Presenting -> Ready
//
// While awaiting identity the Negotiator asks the controller for a node id
// on the broadcast namespace unless one is already persisted. Once the id
// is known the Dispatcher routes reboot, config and set/req messages for
// this node to typed handlers; anything else reaches a default handler
// that only logs it.
//
// The two blocking operations, node id negotiation and QueryUnitSystem,
// wait on a channel closed from the transport's delivery goroutine. Both
// are bounded by a per-attempt timeout and a number of attempts.
//
// Usage:
//
//	session, err := node.NewSession(node.Options{
//	    Transport: mqttClient,
//	    Store:     identity.NewFileStore("mys2mqtt.config.json"),
//	})
//	if err != nil {
//	    return err
//	}
//	session.RegisterSensor(1, mysensors.SensorTemp, mysensors.ValueTemp)
//	if err := session.Connect(ctx); err != nil {
//	    return err
//	}
//	session.SendFloat(1, 21.5)
package node
