package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementLevel is the measurement entity levels are written to.
const MeasurementLevel = "dynalite_level"

// WriteEntityLevel records the current level of a Dynalite entity.
//
// The write is non-blocking and silently skipped when the client is nil,
// disabled or closed.
//
// Parameters:
//   - uniqueID: Entity unique ID, e.g. "dynalite_home_a2_c1"
//   - category: "light", "switch" or "cover"
//   - level: 0 to 1 (brightness, on/off, or cover position)
//
// Example:
//
//	client.WriteEntityLevel("dynalite_home_a7_c1", "cover", 0.496)
func (c *Client) WriteEntityLevel(uniqueID, category string, level float64) {
	c.WritePoint(MeasurementLevel,
		map[string]string{
			"entity_id": uniqueID,
			"category":  category,
		},
		map[string]interface{}{
			"level": level,
		})
}

// WritePoint writes a point with the current timestamp.
//
// Keep tags low cardinality; values go in fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() || c.writer == nil {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
