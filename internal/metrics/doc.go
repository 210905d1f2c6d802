// Package metrics exposes Prometheus counters and histograms for pipeline
// operations. compressure is a batch CLI rather than a server, so metrics are
// kept on a private registry and exported with WriteTextfile at the end of a
// run when [metrics] textfile is configured.
package metrics
