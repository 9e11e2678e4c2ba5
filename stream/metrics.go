package stream

import "github.com/VictoriaMetrics/metrics"

var (
	batchReads      = metrics.NewCounter(`stream_iterator_reads_total{kind="batch"}`)
	refillReads     = metrics.NewCounter(`stream_iterator_reads_total{kind="refill"}`)
	seedReads       = metrics.NewCounter(`stream_iterator_reads_total{kind="seed"}`)
	timeouts        = metrics.NewCounter("stream_iterator_timeouts_total")
	connFailures    = metrics.NewCounter("stream_iterator_connection_failures_total")
	entriesReturned = metrics.NewCounter("stream_iterator_entries_total")
	staleEntries    = metrics.NewCounter("stream_iterator_stale_entries_total")
)
