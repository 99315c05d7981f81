package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/workload"
)

// parseRef reads kind/namespace/name. kind/name is accepted for engine
// workloads, which have no namespace. An unknown kind is passed through so
// the router reports it as UNSUPPORTED_BACKEND.
func parseRef(s string) (workload.Ref, error) {
	parts := strings.Split(s, "/")
	var rawKind, namespace, name string
	switch len(parts) {
	case 2:
		rawKind, name = parts[0], parts[1]
	case 3:
		rawKind, namespace, name = parts[0], parts[1], parts[2]
	default:
		return workload.Ref{}, errors.InvalidSpec(fmt.Sprintf("ref %q must be kind/namespace/name", s))
	}
	kind, err := workload.ParseKind(rawKind)
	if err != nil {
		kind = workload.BackendKind(rawKind)
	}
	return workload.NewRef(kind, namespace, name), nil
}

// parseKeyValues reads KEY=VALUE pairs. Values may contain '='.
func parseKeyValues(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, errors.InvalidSpec(fmt.Sprintf("--%s %q must be KEY=VALUE", flag, kv))
		}
		out[k] = v
	}
	return out, nil
}

// parsePort reads container[:host][/protocol], e.g. 8080, 8080:80, 53/udp.
func parsePort(s string) (workload.PortMapping, error) {
	invalid := errors.InvalidSpec(fmt.Sprintf("--port %q must be container[:host][/protocol]", s))

	ports, proto, hasProto := strings.Cut(s, "/")
	if hasProto && proto == "" {
		return workload.PortMapping{}, invalid
	}
	containerPort, hostPort, hasHost := strings.Cut(ports, ":")

	var pm workload.PortMapping
	var err error
	if pm.Container, err = strconv.Atoi(containerPort); err != nil {
		return workload.PortMapping{}, invalid
	}
	if hasHost {
		if pm.Host, err = strconv.Atoi(hostPort); err != nil {
			return workload.PortMapping{}, invalid
		}
	}
	pm.Protocol = strings.ToLower(proto)
	return pm, nil
}
