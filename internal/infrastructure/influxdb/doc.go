// Package influxdb provides InfluxDB connectivity for punchcore telemetry.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, punch metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Punch events with post-punch card balances
//   - Reader position history
//   - Reader online/offline transitions
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "punchcore",
//	    Bucket:  "metrics",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	processor.SetTelemetry(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a
// callback. Connection and health check errors are returned directly.
// Telemetry never gates punch processing: when the client is down,
// writes are silently dropped.
package influxdb
