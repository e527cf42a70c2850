/*
Package log provides structured logging for Gatehouse built on zerolog.

A single global logger is initialized once at startup via Init, with
console output for interactive use and JSON output for production.
Components obtain child loggers carrying a stable component field:

	logger := log.WithComponent("buffer")
	logger.Info().Int("events", n).Msg("flushed buffer")

Additional field helpers (WithEventID, WithShardURL) exist for the event
pipeline and the shard routing paths.
*/
package log
