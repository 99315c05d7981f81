// Package server exposes the workload router over HTTP.
//
// The server is a Gin engine behind an h2c handler, so HTTP/1.1 and
// cleartext HTTP/2 clients share one port. Workloads are addressed as
// /v1/workloads/{kind}/{name}?namespace={ns}; engine workloads omit the
// namespace.
//
//	GET    /v1/workloads/cluster/etl?namespace=jobs             describe
//	POST   /v1/workloads/engine/redis-test?wait=Running         create (body: workload.Spec)
//	DELETE /v1/workloads/engine/redis-test                      terminate
//	GET    /v1/workloads/cluster/etl/wait?namespace=jobs&phase=Gone&timeout=10m
//	GET    /v1/workloads/cluster/etl/logs?namespace=jobs&follow=true
//	GET    /health
//	GET    /version
//
// Failures are answered with errors.ErrorResponse and the status from
// AppError.HTTPStatus.
package server
