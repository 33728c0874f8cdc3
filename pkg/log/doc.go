/*
Package log provides structured logging for the reactive query store using zerolog.

The global Logger is initialized once via Init and every other package pulls a
component-scoped child logger from it with WithComponent, plus WithAppID and
WithSessionID for the two identity axes the store indexes on.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	l := log.WithComponent("invalidator")
	l.Debug().Str("app_id", appID).Int("tx_id", txID).Msg("marked topics stale")
*/
package log
