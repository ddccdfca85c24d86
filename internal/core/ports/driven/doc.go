// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): stores, provider clients, extractors and the
// task queue. Core services depend only on these interfaces.
package driven
