// Package influxdb records Dynalite entity levels in InfluxDB v2.
//
// Every time a host platform publishes entity state it also calls
// WriteEntityLevel, giving a level history per entity in the
// dynalite_level measurement (tags entity_id and category, field level).
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    client = nil // writes on a nil client are no-ops
//	} else if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Writes are batched (influxdb.batch_size points or every
// influxdb.flush_interval seconds) and never block the caller.
package influxdb
