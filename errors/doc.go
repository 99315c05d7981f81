// Package errors provides the error taxonomy shared by every workloadops
// component. Each failure is an *AppError carrying a machine-readable code,
// a retryable flag used by the retry executor, and the workload reference
// and operation name it originated from.
package errors
