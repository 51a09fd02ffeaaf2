// Package influxdb provides InfluxDB connectivity for Machine Core.
//
// It wraps the official influxdb-client-go v2 library with patterns for
// connection management, sample writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for:
//   - Control point readback samples
//   - Aggregate statistics computed over sample windows
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "machine",
//	    Bucket: "telemetry",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePointSample("magnet", "QUAD-01", "current", 4.2)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
