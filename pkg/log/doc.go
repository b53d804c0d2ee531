/*
Package log provides structured logging for TuringDB using zerolog.

The log package wraps zerolog with a simple initialization API and child
loggers scoped to this domain: component, database, document, and
connection. Console output with RFC3339 timestamps by default, JSON with
Config.JSONOutput for machine consumption.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Component loggers:

	logger := log.WithComponent("engine")
	logger.Info().Int("databases", n).Msg("repository initialized")

Connection loggers carry the connection id and remote address:

	logger := log.WithConn(id, conn.RemoteAddr().String())
	logger.Debug().Str("op", op.String()).Msg("handled")

# See Also

  - pkg/events for the separate on-disk operation journal
*/
package log
