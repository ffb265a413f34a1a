package token

import (
	"context"

	"lockgate/pkg/platform/middleware/auth"
)

// MiddlewareVerifier adapts the issuer to auth.AccessTokenVerifier.
type MiddlewareVerifier struct {
	issuer *Issuer
}

func NewMiddlewareVerifier(issuer *Issuer) *MiddlewareVerifier {
	return &MiddlewareVerifier{issuer: issuer}
}

func (v *MiddlewareVerifier) VerifyAccess(ctx context.Context, raw string) (*auth.Claims, error) {
	claims, err := v.issuer.Verify(ctx, raw, "", ClassAccess)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{
		Subject: claims.Subject,
		Role:    claims.Role,
		JTI:     claims.ID,
	}, nil
}
