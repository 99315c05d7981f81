// Package component defines the lifecycle contract for long-lived
// workloadops infrastructure (the Redis client, the telemetry pipeline,
// the trace-log sink) and a Registry that starts them in order and stops
// them in reverse.
package component
