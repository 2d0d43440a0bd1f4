package core

import "time"

// TokenClaims is the verified content of a bearer token. It is produced by
// the verifier (or the issuer, on the way in) and discarded at the end of
// the request; this layer never persists it.
type TokenClaims struct {
	// Subject is the principal the token was issued to ("sub").
	Subject string

	// Issuer is the URL of the identity provider that signed the token ("iss").
	Issuer string

	// Audience is the intended recipient service ("aud").
	Audience string

	// ExpiresAt is the expiry instant ("exp"). Verification fails once this
	// is no longer strictly in the future.
	ExpiresAt time.Time

	// IssuedAt is the issuance instant ("iat").
	IssuedAt time.Time

	// JWTID is the unique token id ("jti").
	JWTID string

	// CustomerID identifies the customer account the principal belongs to.
	CustomerID string

	// IsSuperAdmin marks the principal as a super administrator. The signed
	// claim is the source of truth; when true, role checks short-circuit
	// without consulting the role directory.
	IsSuperAdmin bool

	// CSRF is the anti-forgery nonce bound into browser-issued tokens.
	CSRF string

	// Scope is the space-separated scope string, if any.
	Scope string

	// Extra holds claims this layer does not interpret.
	Extra map[string]any
}

// HasIdentity reports whether the claims carry at least one usable
// principal identifier.
func (c TokenClaims) HasIdentity() bool {
	return c.Subject != "" || c.CustomerID != ""
}

// AuthResult is the minimal principal identity carried through the request
// after verification. RawToken doubles as the derivation secret for
// response confidentiality, so it is kept alongside the id.
type AuthResult struct {
	CustomerID string
	RawToken   string
	Claims     TokenClaims
}
