package calldispatch

import "errors"

var (
	// ErrGatewaySend is returned when the push gateway rejected the whole batch.
	// No per-device outcomes are available.
	ErrGatewaySend = errors.New("push gateway send failed")

	// ErrReconcile wraps registration store failures. It is reported through
	// dispatch.Result.ReconcileErr and never returned by a dispatch.
	ErrReconcile = errors.New("registration reconciliation failed")
)
