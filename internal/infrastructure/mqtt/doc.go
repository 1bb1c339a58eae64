// Package mqtt is the broker transport for mysnode.
//
// It wraps paho.mqtt.golang with connection management, automatic
// reconnection, subscription restoration and panic-safe handler dispatch.
// Inbound messages reach the application through per-pattern routes; any
// message no route claims goes to the default handler.
//
// Usage:
//
//	client := mqtt.New(cfg.MQTT)
//	client.SetLogger(logger)
//	client.SetDefaultHandler(func(msg mqtt.Message) error {
//	    logger.Info("unhandled", "topic", msg.Topic)
//	    return nil
//	})
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.Route("mys-out/12/+/3/+/6", onConfig)
//	client.Subscribe("mys-out/12/#")
//	client.Publish("mys-in/12/0/3/0/6", []byte("M"))
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not on the
// local host. No Last Will is configured.
package mqtt
