package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/calder-systems/punchcore/internal/punchlog"
)

// RecordPunch writes an accepted punch as a time-series point.
// Implements the punch processor's Telemetry hook.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Measurement: "punches", tagged by card, reader, and direction, with
// the post-punch balance as the field so balance history can be graphed
// per card.
func (c *Client) RecordPunch(event punchlog.PunchEvent, balance int64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"balance": balance,
		"seq":     event.Seq,
	}
	if event.Location != nil {
		fields["lat"] = event.Location.Lat
		fields["lng"] = event.Location.Lng
	}

	point := write.NewPoint(
		"punches",
		map[string]string{
			"card_id":   event.CardID,
			"reader_id": event.ReaderID,
			"direction": string(event.Direction),
		},
		fields,
		event.CreatedAt,
	)

	c.writeAPI.WritePoint(point)
}

// RecordReaderLocation writes a reader position update.
//
// Measurement: "reader_locations", tagged by reader.
func (c *Client) RecordReaderLocation(readerID string, lat, lng float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"reader_locations",
		map[string]string{
			"reader_id": readerID,
		},
		map[string]interface{}{
			"lat": lat,
			"lng": lng,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordReaderStatus writes a reader online/offline transition.
//
// Measurement: "reader_status", tagged by reader, with online as a
// 0/1 field so uptime can be aggregated.
func (c *Client) RecordReaderStatus(readerID string, online bool) {
	if !c.IsConnected() {
		return
	}

	onlineVal := 0
	if online {
		onlineVal = 1
	}

	point := write.NewPoint(
		"reader_status",
		map[string]string{
			"reader_id": readerID,
		},
		map[string]interface{}{
			"online": onlineVal,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
