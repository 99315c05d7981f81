package docker

import (
	"context"
	stderrors "errors"
	"net"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/client"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/workload"
)

const service = "docker"

// classify maps a Docker SDK error onto the workload error taxonomy.
func classify(err error, op string, ref workload.Ref) error {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.WithOperation(op, ref.String())
	}

	var appErr *errors.AppError
	switch {
	case client.IsErrConnectionFailed(err), neverSent(err):
		appErr = errors.ConnectionFailed(service, err)
	case stderrors.Is(err, context.Canceled):
		appErr = errors.Canceled(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		appErr = errors.Wrap(errors.ErrCodeTimeout, op+" exceeded its deadline", err)
	case cerrdefs.IsNotFound(err):
		appErr = errors.NotFound("container", ref.Name).WithCause(err)
	case cerrdefs.IsConflict(err), cerrdefs.IsAlreadyExists(err):
		appErr = errors.AlreadyExists("container", ref.Name).WithCause(err)
	case cerrdefs.IsInvalidArgument(err):
		appErr = errors.InvalidSpec(err.Error()).WithCause(err)
	case cerrdefs.IsUnavailable(err), cerrdefs.IsInternal(err), cerrdefs.IsResourceExhausted(err),
		cerrdefs.IsDeadlineExceeded(err), cerrdefs.IsUnknown(err), isNetError(err):
		appErr = errors.ServiceUnavailable(service, err)
	default:
		appErr = errors.Internal(err)
	}
	return appErr.WithOperation(op, ref.String())
}

// neverSent reports dial failures, where the request never reached the daemon.
func neverSent(err error) bool {
	var opErr *net.OpError
	return stderrors.As(err, &opErr) && opErr.Op == "dial"
}

func isNetError(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

// startFailed classifies a start failure. The container already exists on
// the engine, so a dial error is reported as SERVICE_UNAVAILABLE rather than
// CONNECTION_FAILED: the create reached the backend and must not be repeated.
func startFailed(err error, id string, ref workload.Ref) error {
	appErr, _ := errors.AsAppError(classify(err, workload.OpCreate, ref))
	if appErr.Code == errors.ErrCodeConnectionFailed {
		appErr = errors.ServiceUnavailable(service, err).WithOperation(workload.OpCreate, ref.String())
	}
	return appErr.WithDetail(DetailContainerID, shortID(id))
}
