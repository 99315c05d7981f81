// Package docker implements workload.Adapter on a single Docker engine.
//
// The adapter talks to the engine through EngineAPI, the subset of the
// Docker SDK client it needs. Importing the package registers the adapter
// factory for workload.KindEngine.
package docker
