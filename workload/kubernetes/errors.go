package kubernetes

import (
	"context"
	stderrors "errors"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	utilnet "k8s.io/apimachinery/pkg/util/net"

	"github.com/kbukum/workloadops/errors"
	"github.com/kbukum/workloadops/workload"
)

const service = "kubernetes"

// classify maps a client-go error onto the workload error taxonomy.
func classify(err error, op, resource string, ref workload.Ref) error {
	if err == nil {
		return nil
	}
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr.WithOperation(op, ref.String())
	}

	var appErr *errors.AppError
	switch {
	case apierrors.IsNotFound(err):
		appErr = errors.NotFound(resource, ref.Namespace+"/"+ref.Name).WithCause(err)
	case apierrors.IsAlreadyExists(err), apierrors.IsConflict(err):
		appErr = errors.AlreadyExists(resource, ref.Namespace+"/"+ref.Name).WithCause(err)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		appErr = errors.InvalidSpec(err.Error()).WithCause(err)
	case apierrors.IsServerTimeout(err), apierrors.IsTimeout(err), apierrors.IsTooManyRequests(err),
		apierrors.IsServiceUnavailable(err), apierrors.IsInternalError(err), apierrors.IsUnexpectedServerError(err):
		appErr = errors.ServiceUnavailable(service, err)
	case stderrors.Is(err, context.Canceled):
		appErr = errors.Canceled(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		appErr = errors.Wrap(errors.ErrCodeTimeout, op+" exceeded its deadline", err)
	case neverSent(err):
		appErr = errors.ConnectionFailed(service, err)
	case utilnet.IsConnectionReset(err), utilnet.IsProbableEOF(err), isNetError(err):
		appErr = errors.ServiceUnavailable(service, err)
	default:
		if status, ok := err.(apierrors.APIStatus); ok && status.Status().Code >= 500 {
			appErr = errors.ServiceUnavailable(service, err)
		} else {
			appErr = errors.Internal(err)
		}
	}
	return appErr.WithOperation(op, ref.String())
}

// neverSent reports failures where the request never reached the API server.
func neverSent(err error) bool {
	if utilnet.IsConnectionRefused(err) {
		return true
	}
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return stderrors.As(err, &opErr) && opErr.Op == "dial"
}

func isNetError(err error) bool {
	var netErr net.Error
	return stderrors.As(err, &netErr)
}
