// Package influxdb keeps a time-series history of signal sends.
//
// Each send attempt becomes one point in the ir_sends measurement, tagged
// by signal name and result. Points are batched by the influxdb-client-go
// write API and flushed every flush_interval seconds or when a batch fills.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history off
//	}
//	defer client.Close()
//
//	client.WriteSend(influxdb.SendRecord{Name: "tv-power", OK: true, Duration: d})
package influxdb
