// Package tsdb writes PowerTag readings to VictoriaMetrics.
//
// Points are rendered as InfluxDB line protocol with the influxdb-client-go
// point encoder and POSTed to /write in batches.
//
// # Usage
//
//	client, err := tsdb.Connect(ctx, cfg.TSDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteReading("Feeder 1", "main", "3", fields, ts)
//
// # Failed flushes
//
// A batch that fails in transit or with a 5xx is put back at the head of
// the queue and retried on the next flush (ErrWriteFailed). A 4xx drops
// the batch (ErrRejected). The queue holds ten batches; beyond that the
// oldest lines are dropped and counted by Dropped. Both errors reach the
// SetOnError callback.
package tsdb
