// Package influxdb mirrors the node's outbound sensor readings into
// InfluxDB v2 for history and dashboards.
//
// The mirror is optional (influxdb.enabled). Points are batched and written
// asynchronously; the MQTT publish path never waits on InfluxDB.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without a mirror
//	}
//	defer client.Close()
//
//	client.WriteReading(12, 1, "V_TEMP", 21.5)
//
// The API token should come from MYSNODE_INFLUXDB_TOKEN rather than the
// config file.
package influxdb
