/*
Package metrics provides Prometheus instrumentation for the reactive query
store: transaction counters and latency histograms recorded at the call site
in pkg/store, plus a Collector that periodically samples live entity counts
(sessions, instaql/datalog queries, subscriptions) from anything satisfying
StatsSource into gauges. Handler exposes the registry over HTTP for scraping.
*/
package metrics
