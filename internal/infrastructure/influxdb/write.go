package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePointSample records a single control point readback value.
//
// This is the primary method for recording machine telemetry. The write
// is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WritePointSample("magnet", "QUAD-01", "current", 4.2)
//	client.WritePointSample("bpm", "BPM-03", "x_position", -0.013)
func (c *Client) WritePointSample(hwtype, device, point string, value float64) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(
		"point_samples",
		map[string]string{
			"hardware_type": hwtype,
			"device":        device,
			"point":         point,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(p)
}

// WriteWindowStats records aggregate statistics computed over a point's
// sample window. All fields are written as a single measurement so they
// share one timestamp.
//
// Example:
//
//	client.WriteWindowStats("magnet", "QUAD-01", "current", map[string]float64{
//	    "mean": 4.19, "stdev": 0.02, "min": 4.12, "max": 4.25,
//	})
func (c *Client) WriteWindowStats(hwtype, device, point string, stats map[string]float64) {
	if !c.IsConnected() || len(stats) == 0 {
		return
	}

	fields := make(map[string]interface{}, len(stats))
	for k, v := range stats {
		fields[k] = v
	}

	p := write.NewPoint(
		"window_stats",
		map[string]string{
			"hardware_type": hwtype,
			"device":        device,
			"point":         point,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(p)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(p)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed buffer data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	p := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(p)
}
