// Package token verifies and issues the bearer tokens shared by the
// service family. Verification supports the asymmetric key-set scheme and
// a legacy shared-secret scheme; the scheme is resolved exactly once per
// token from its header.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/keyset"
)

// signingScheme is the verification strategy selected from the token
// header. Exactly one variant applies per token.
type signingScheme struct {
	alg     string
	keyfunc jwt.Keyfunc
}

// Verifier validates bearer tokens. Keys for the primary RS256 scheme come
// from the key-set cache; the optional legacy secret enables HS256
// compatibility for services that have not migrated yet.
type Verifier struct {
	keys         *keyset.Cache
	legacySecret []byte

	now func() time.Time // test hook
}

func NewVerifier(keys *keyset.Cache, legacySecret []byte) *Verifier {
	return &Verifier{
		keys:         keys,
		legacySecret: legacySecret,
		now:          time.Now,
	}
}

// Verify validates the token and returns its claims. Expiry is enforced
// before the signature is even attempted, so an expired token fails as
// expired regardless of how it was signed. All signature mismatches
// collapse into ErrInvalidSignature; callers cannot distinguish a wrong
// key from a tampered payload.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (core.TokenClaims, error) {
	header, unverified, err := decodeUnverified(tokenStr)
	if err != nil {
		return core.TokenClaims{}, err
	}

	if exp, ok := unverified["exp"]; ok {
		if sec, ok := exp.(float64); ok && !time.Unix(int64(sec), 0).After(v.now()) {
			return core.TokenClaims{}, core.ErrTokenExpired
		}
	}

	scheme, err := v.resolveScheme(ctx, header)
	if err != nil {
		return core.TokenClaims{}, err
	}

	parsed, err := jwt.NewParser(
		jwt.WithValidMethods([]string{scheme.alg}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	).Parse(tokenStr, scheme.keyfunc)
	if err != nil {
		return core.TokenClaims{}, mapParseError(err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return core.TokenClaims{}, core.ErrMalformedToken
	}

	claims := claimsFromMap(mapClaims)
	if !claims.HasIdentity() {
		return core.TokenClaims{}, fmt.Errorf("%w: no subject or customer id", core.ErrMalformedToken)
	}
	return claims, nil
}

func (v *Verifier) resolveScheme(ctx context.Context, header map[string]any) (signingScheme, error) {
	alg, _ := header["alg"].(string)

	switch alg {
	case "RS256":
		kid, _ := header["kid"].(string)
		if kid == "" {
			return signingScheme{}, fmt.Errorf("%w: missing kid", core.ErrMalformedToken)
		}
		key, err := v.keys.Key(ctx, kid)
		if err != nil {
			return signingScheme{}, err
		}
		return signingScheme{
			alg:     alg,
			keyfunc: func(*jwt.Token) (any, error) { return key.PublicKey, nil },
		}, nil

	case "HS256":
		if len(v.legacySecret) == 0 {
			// a missing secret is a hard failure, never a bypass
			return signingScheme{}, fmt.Errorf("%w: legacy scheme not configured", core.ErrUnknownSigningKey)
		}
		return signingScheme{
			alg:     alg,
			keyfunc: func(*jwt.Token) (any, error) { return v.legacySecret, nil },
		}, nil

	default:
		return signingScheme{}, fmt.Errorf("%w: unsupported alg %q", core.ErrMalformedToken, alg)
	}
}

// decodeUnverified reads the token header and claims without checking the
// signature. Needed to pick the scheme and to enforce expiry up front.
func decodeUnverified(tokenStr string) (map[string]any, jwt.MapClaims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, nil, core.ErrMalformedToken
	}
	return parsed.Header, claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", core.ErrMalformedToken, err)
	default:
		// signature mismatch, wrong method, tampering: all uniform
		return core.ErrInvalidSignature
	}
}

// knownClaims are the registered names lifted into TokenClaims; everything
// else lands in Extra.
var knownClaims = map[string]struct{}{
	"sub": {}, "iss": {}, "aud": {}, "exp": {}, "iat": {}, "jti": {},
	"customer_id": {}, "is_super_admin": {}, "csrf": {}, "scope": {},
}

func claimsFromMap(m jwt.MapClaims) core.TokenClaims {
	claims := core.TokenClaims{}
	claims.Subject, _ = m["sub"].(string)
	claims.Issuer, _ = m["iss"].(string)
	claims.JWTID, _ = m["jti"].(string)
	claims.CustomerID, _ = m["customer_id"].(string)
	claims.IsSuperAdmin, _ = m["is_super_admin"].(bool)
	claims.CSRF, _ = m["csrf"].(string)
	claims.Scope, _ = m["scope"].(string)

	switch aud := m["aud"].(type) {
	case string:
		claims.Audience = aud
	case []any:
		if len(aud) > 0 {
			claims.Audience, _ = aud[0].(string)
		}
	}

	if sec, ok := m["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(sec), 0)
	}
	if sec, ok := m["iat"].(float64); ok {
		claims.IssuedAt = time.Unix(int64(sec), 0)
	}

	for k, v := range m {
		if _, known := knownClaims[k]; known {
			continue
		}
		if claims.Extra == nil {
			claims.Extra = make(map[string]any)
		}
		claims.Extra[k] = v
	}
	return claims
}
