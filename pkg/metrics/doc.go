/*
Package metrics provides Prometheus metrics and health checking for
TuringDB.

# Metrics

	turingdb_databases_total              gauge      registry size
	turingdb_operations_total             counter    by op and outcome
	turingdb_operation_duration_seconds   histogram  by op
	turingdb_connections_active           gauge
	turingdb_connections_total            counter
	turingdb_frame_bytes                  histogram  by direction

# Health

Components register themselves (storage, api) and flip their status as they
start and stop; one unhealthy component makes the overall /healthz report
unhealthy with a 503.

# Usage

Exposition is opt-in; the server only serves it when an address is
configured:

	go metrics.Serve("127.0.0.1:9343") // /metrics and /healthz

Timing an operation:

	timer := metrics.NewTimer()
	...
	timer.ObserveDurationVec(metrics.OperationDuration, op.String())
*/
package metrics
