package influxdb_test

import (
	"errors"
	"testing"

	"github.com/calder-systems/punchcore/internal/infrastructure/config"
	"github.com/calder-systems/punchcore/internal/infrastructure/influxdb"
)

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: false,
	}

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() with disabled config should return error")
	}
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Token:   "test-token",
		Org:     "punchcore",
		Bucket:  "metrics",
	}

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() to unreachable server should return error")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}
