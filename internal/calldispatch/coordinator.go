// Package calldispatch fans call-signaling pushes out to a user's devices and
// prunes registrations the push gateway reports as dead.
package calldispatch

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-call-signaling-service/internal/compose"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

// Pruner is the part of the registration store the coordinator needs.
type Pruner interface {
	RemoveRegistrations(ctx context.Context, userID string, regs []dispatch.Registration) error
}

// Coordinator holds no per-call state and is safe for concurrent use.
type Coordinator struct {
	gateway dispatch.Gateway
	pruner  Pruner
}

func New(gateway dispatch.Gateway, pruner Pruner) *Coordinator {
	return &Coordinator{
		gateway: gateway,
		pruner:  pruner,
	}
}

// DispatchCallInvitation sends the invitation to every registration and
// removes the ones the gateway reports as permanently invalid from the
// callee's stored set.
//
// The returned error is non-nil only when the gateway call itself failed.
// A store failure during cleanup is reported in Result.ReconcileErr.
func (c *Coordinator) DispatchCallInvitation(
	ctx context.Context,
	calleeID string,
	regs []dispatch.Registration,
	inv dispatch.CallInvitation,
	callerName string,
) (dispatch.Result, error) {
	if len(regs) == 0 {
		return dispatch.Result{}, nil
	}

	res, err := c.send(ctx, regs, compose.IncomingCall(inv, callerName, regs))
	if err != nil {
		return dispatch.Result{}, err
	}

	res.Pruned = terminalRegistrations(res.Outcomes)
	if len(res.Pruned) > 0 {
		if err := c.pruner.RemoveRegistrations(ctx, calleeID, res.Pruned); err != nil {
			res.ReconcileErr = fmt.Errorf("%w for user %s: %w", ErrReconcile, calleeID, err)
		}
	}

	return res, nil
}

// SendCallUpdate announces a rejected or missed call. Unlike invitations it
// never touches the registration store.
func (c *Coordinator) SendCallUpdate(
	ctx context.Context,
	regs []dispatch.Registration,
	kind compose.UpdateKind,
	callID string,
) (dispatch.Result, error) {
	if len(regs) == 0 {
		return dispatch.Result{}, nil
	}
	return c.send(ctx, regs, compose.CallUpdate(kind, callID, regs))
}

func (c *Coordinator) send(ctx context.Context, regs []dispatch.Registration, msgs []dispatch.Message) (dispatch.Result, error) {
	results, err := c.gateway.SendBatch(ctx, msgs)
	if err != nil {
		return dispatch.Result{}, fmt.Errorf("%w: %w", ErrGatewaySend, err)
	}
	// Outcomes are correlated by position, so a short answer is unusable.
	if len(results) != len(msgs) {
		return dispatch.Result{}, fmt.Errorf("%w: got %d results for %d messages", ErrGatewaySend, len(results), len(msgs))
	}

	res := dispatch.Result{Outcomes: make([]dispatch.Outcome, len(regs))}
	for idx, r := range results {
		outcome := dispatch.Outcome{
			Registration: regs[idx],
			Delivered:    r.Success,
			MessageID:    r.MessageID,
		}
		if r.Success {
			res.SuccessCount++
		} else {
			res.FailureCount++
			outcome.ErrorCode = r.ErrorCode
			outcome.ErrorKind = ClassifyErrorCode(r.ErrorCode)
		}
		res.Outcomes[idx] = outcome
	}
	return res, nil
}

// ClassifyErrorCode maps a canonical gateway error code to an ErrorKind.
// Anything that is not a known terminal code is treated as transient.
func ClassifyErrorCode(code string) dispatch.ErrorKind {
	switch code {
	case dispatch.CodeRegistrationTokenNotRegistered:
		return dispatch.ErrorKindNotRegistered
	case dispatch.CodeInvalidRegistrationToken:
		return dispatch.ErrorKindInvalidRegistration
	default:
		return dispatch.ErrorKindOther
	}
}

// terminalRegistrations returns the distinct registrations with a terminal
// failure, in first-seen order.
func terminalRegistrations(outcomes []dispatch.Outcome) []dispatch.Registration {
	var dead []dispatch.Registration
	seen := make(map[dispatch.Registration]struct{})
	for _, o := range outcomes {
		if o.Delivered || !o.ErrorKind.Terminal() {
			continue
		}
		if _, dup := seen[o.Registration]; dup {
			continue
		}
		seen[o.Registration] = struct{}{}
		dead = append(dead, o.Registration)
	}
	return dead
}
