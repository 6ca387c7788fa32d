// Package agora signs RTC tokens with the Agora access-token builder.
package agora

import (
	"errors"
	"fmt"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"
	"github.com/tinywideclouds/go-call-signaling-service/pkg/rtctoken"
)

var ErrMissingCredentials = errors.New("agora app id and app certificate are required")

type Signer struct {
	appID          string
	appCertificate string
}

func NewSigner(appID, appCertificate string) (*Signer, error) {
	if appID == "" || appCertificate == "" {
		return nil, ErrMissingCredentials
	}
	return &Signer{appID: appID, appCertificate: appCertificate}, nil
}

// Sign builds a token and privileges that expire validFor seconds after signing.
func (s *Signer) Sign(channel string, p rtctoken.Principal, role rtctoken.Role, validFor uint32) (string, error) {
	var r rtctokenbuilder.Role = rtctokenbuilder.RoleSubscriber
	if role == rtctoken.RolePublisher {
		r = rtctokenbuilder.RolePublisher
	}

	switch id := p.(type) {
	case rtctoken.ByNumericID:
		return rtctokenbuilder.BuildTokenWithUid(s.appID, s.appCertificate, channel, id.UID, r, validFor)
	case rtctoken.ByAccountName:
		return rtctokenbuilder.BuildTokenWithAccount(s.appID, s.appCertificate, channel, id.Account, r, validFor)
	default:
		return "", fmt.Errorf("unsupported principal %T", p)
	}
}
