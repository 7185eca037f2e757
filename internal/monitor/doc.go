// Package monitor provides the optional local observability endpoint of the
// capture engine: health, session status, and Prometheus metrics over HTTP.
package monitor
