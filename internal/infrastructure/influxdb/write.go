package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementSends is the measurement holding one point per send attempt.
const MeasurementSends = "ir_sends"

// SendRecord is one send attempt as stored in InfluxDB.
type SendRecord struct {
	Name      string
	OK        bool
	Error     string
	Duration  time.Duration
	Frequency int
	Pulses    int
	At        time.Time
}

// WriteSend queues a send attempt. The write is batched and never blocks.
//
// Tags: name, result ("ok" or "error").
// Fields: duration_ms, freq, pulses and, on failure, error.
func (c *Client) WriteSend(rec SendRecord) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(sendPoint(rec))
}

func sendPoint(rec SendRecord) *write.Point {
	result := "ok"
	if !rec.OK {
		result = "error"
	}

	fields := map[string]any{
		"duration_ms": float64(rec.Duration.Microseconds()) / 1000,
		"freq":        rec.Frequency,
		"pulses":      rec.Pulses,
	}
	if rec.Error != "" {
		fields["error"] = rec.Error
	}

	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		MeasurementSends,
		map[string]string{
			"name":   rec.Name,
			"result": result,
		},
		fields,
		at,
	)
}
