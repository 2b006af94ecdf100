// Package observe provides observability primitives for outbound API calls.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The client layer wires the observer around its
// upstream requests; the toolkit packages take the Logger for lifecycle
// diagnostics.
package observe
