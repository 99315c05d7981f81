// Package version reports the build identity of workloadctl.
//
// Version and Commit are set at link time:
//
//	go build -ldflags "-X github.com/kbukum/workloadops/version.Version=0.4.0" ./cmd/workloadctl
//
// Fields left empty are filled from the VCS stamp in the binary's build info.
package version
