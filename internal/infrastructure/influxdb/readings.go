package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementReadings is the measurement every sensor reading is written to.
const measurementReadings = "mysensors_readings"

// WriteReading records one value sent by the node.
//
// Tags are node_id, sensor_id and value_type (the V_* name) so a series is
// one sensor channel. Dropped silently after Close.
//
//	client.WriteReading(12, 1, "V_TEMP", 21.5)
func (c *Client) WriteReading(nodeID, sensorID uint8, valueType string, value float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(readingPoint(nodeID, sensorID, valueType, value, time.Now()))
}

func readingPoint(nodeID, sensorID uint8, valueType string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		measurementReadings,
		map[string]string{
			"node_id":    strconv.Itoa(int(nodeID)),
			"sensor_id":  strconv.Itoa(int(sensorID)),
			"value_type": valueType,
		},
		map[string]any{
			"value": value,
		},
		ts,
	)
}
