// Package kubernetes implements workload.Adapter on a Kubernetes cluster.
//
// Workloads run as batch/v1 Jobs with a single container, restartPolicy Never
// and backoffLimit 0, or as bare Pods when workload_type is "pod". Importing
// the package registers the adapter factory for workload.KindCluster.
package kubernetes
