// Package logger provides structured logging for workloadops components
// using zerolog.
//
// Loggers are values: components receive one at construction and derive
// scoped children with WithComponent, WithFields and WithContext. WithContext
// stamps the OpenTelemetry trace and span ids of the active span and keeps the
// context on every event so hooks such as the trace-log sink can read it.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
package logger
