// Package workload defines the backend-independent workload model and the
// Adapter contract implemented by each backend.
//
// A workload is named by a Ref (backend kind, namespace, name and a stable
// identity token) and observed as a State whose Phase has the same meaning on
// every backend:
//
//   - Pending: accepted but not yet serving
//   - Running: serving and ready
//   - Degraded: crashing, failed, unhealthy or unable to start
//   - Terminating: deletion in progress
//   - Gone: finished or deleted
//
// # Backends
//
//   - workload/kubernetes: Jobs and Pods through client-go
//   - workload/docker: containers through the Docker Engine API
//
// Backends register an AdapterFactory from init, so importing a backend
// package for side effects makes NewAdapter able to build it.
//
// # Waiting
//
// Poll implements WaitUntil for every adapter: it describes the workload on a
// fixed interval until a Predicate holds, honouring cancellation and a timeout.
package workload
