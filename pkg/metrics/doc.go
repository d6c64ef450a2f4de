// Package metrics exposes Prometheus counters for tree mutations, value
// changes and validation failures of an editing session.
package metrics
