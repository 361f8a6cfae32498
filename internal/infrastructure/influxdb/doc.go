// Package influxdb writes shopgate's authentication events to InfluxDB v2
// as a time series.
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are reported through SetOnError rather
// than returned to the caller.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetOnError(func(err error) { log.Warn("influx write failed", "error", err) })
//	client.WritePointWithTime("auth_events", tags, fields, time.Now())
package influxdb
