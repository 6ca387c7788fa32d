// Package compose builds the push messages for call-signaling events.
package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/tinywideclouds/go-call-signaling-service/pkg/dispatch"
)

const (
	// InvitationTTL bounds how long an invitation push stays deliverable.
	InvitationTTL = 60 * time.Second

	AndroidCallChannel = "incoming_call_channel"
	CallCategory       = "CALL_INVITATION"
	UnknownCaller      = "Unknown"

	// Upper bounds, in bytes, for caller-supplied payload fields. The call id
	// doubles as apns-collapse-id, which APNs caps at 64 bytes, and together
	// they keep a message far below the 4KB FCM payload limit.
	MaxIDBytes         = 64
	MaxCallerNameBytes = 256
	MaxCallTypeBytes   = 16

	TypeIncomingCall = "incoming_call"
	TypeCallRejected = "call_rejected"
	TypeMissedCall   = "missed_call"
)

// UpdateKind is the outcome announced by a call update.
type UpdateKind int

const (
	UpdateRejected UpdateKind = iota + 1
	UpdateMissed
)

// ParseUpdateKind accepts both the data-payload names ("call_rejected",
// "missed_call") and the short forms ("rejected", "missed").
func ParseUpdateKind(s string) (UpdateKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TypeCallRejected, "rejected":
		return UpdateRejected, nil
	case TypeMissedCall, "missed":
		return UpdateMissed, nil
	}
	return 0, fmt.Errorf("unknown call update type %q", s)
}

func (k UpdateKind) String() string {
	if k == UpdateRejected {
		return TypeCallRejected
	}
	return TypeMissedCall
}

// CallerName returns name, or "Unknown" when it is blank.
func CallerName(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownCaller
	}
	return name
}

// IncomingCall builds one invitation message per registration, in order.
// callerName is the display name shown to the callee; the invitation's own
// CallerName is used when it is empty.
func IncomingCall(inv dispatch.CallInvitation, callerName string, regs []dispatch.Registration) []dispatch.Message {
	if callerName == "" {
		callerName = inv.CallerName
	}
	callerName = CallerName(callerName)

	title := "Incoming Call"
	body := fmt.Sprintf("%s is calling...", callerName)

	msgs := make([]dispatch.Message, 0, len(regs))
	for _, reg := range regs {
		msgs = append(msgs, dispatch.Message{
			Token: reg,
			// each message gets its own map so gateways may mutate safely
			Data: map[string]string{
				"type":       TypeIncomingCall,
				"callId":     inv.CallID,
				"callerId":   inv.CallerID,
				"callerName": callerName,
				"channel":    inv.Channel,
				"callType":   string(inv.CallType),
			},
			Title:            title,
			Body:             body,
			HighPriority:     true,
			TTL:              InvitationTTL,
			Tag:              inv.CallID,
			ContentAvailable: true,
			AndroidChannelID: AndroidCallChannel,
			MaxVisibility:    true,
			DefaultSound:     true,
			Category:         CallCategory,
		})
	}
	return msgs
}

// CallUpdate builds the rejected/missed announcement for each registration.
func CallUpdate(kind UpdateKind, callID string, regs []dispatch.Registration) []dispatch.Message {
	title, body := "Missed Call", "Call not answered."
	if kind == UpdateRejected {
		title, body = "Call Rejected", "The callee rejected your call."
	}

	msgs := make([]dispatch.Message, 0, len(regs))
	for _, reg := range regs {
		msgs = append(msgs, dispatch.Message{
			Token: reg,
			Data: map[string]string{
				"type":   kind.String(),
				"callId": callID,
			},
			Title:            title,
			Body:             body,
			HighPriority:     true,
			AndroidChannelID: AndroidCallChannel,
			MaxVisibility:    true,
		})
	}
	return msgs
}
