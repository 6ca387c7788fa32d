// Package rtctoken issues short-lived access tokens for RTC channels.
package rtctoken

import (
	"fmt"
	"strings"
)

// Principal identifies who a token is issued to. It is either ByNumericID
// or ByAccountName.
type Principal interface {
	isPrincipal()
	String() string
}

// ByNumericID is an Agora numeric uid. 0 lets the RTC SDK assign one.
type ByNumericID struct {
	UID uint32
}

// ByAccountName is an Agora string user account.
type ByAccountName struct {
	Account string
}

func (ByNumericID) isPrincipal()   {}
func (ByAccountName) isPrincipal() {}

func (p ByNumericID) String() string   { return fmt.Sprintf("uid:%d", p.UID) }
func (p ByAccountName) String() string { return "account:" + p.Account }

// NewPrincipal validates the request's identity fields once. A numeric uid
// wins when both are present.
func NewPrincipal(uid *uint32, account string) (Principal, error) {
	if uid != nil {
		return ByNumericID{UID: *uid}, nil
	}
	if account = strings.TrimSpace(account); account != "" {
		return ByAccountName{Account: account}, nil
	}
	return nil, ErrInvalidPrincipal
}
