package token

import (
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/xid"

	"github.com/verita-sec/verita/internal/core"
)

// Issuer signs new bearer tokens. Only the identity-provider deployment
// carries a private key; relying services verify only.
type Issuer struct {
	key      *rsa.PrivateKey
	kid      string
	issuer   string
	audience string
	ttl      time.Duration

	now func() time.Time // test hook
}

func NewIssuer(key *rsa.PrivateKey, kid, issuerURL, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		key:      key,
		kid:      kid,
		issuer:   issuerURL,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// DefaultTTL is the lifetime applied when issued claims carry no expiry.
func (i *Issuer) DefaultTTL() time.Duration {
	return i.ttl
}

// ParsePrivateKey reads a PEM-encoded RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key: %w", err)
	}
	return key, nil
}

// Issue signs a token for the given claims. Expiry defaults to now+ttl and
// a fresh jti is minted when the caller left one out. Segments are
// unpadded base64url end to end.
func (i *Issuer) Issue(claims core.TokenClaims) (string, error) {
	now := i.now()

	expires := claims.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(i.ttl)
	}
	jti := claims.JWTID
	if jti == "" {
		jti = xid.New().String()
	}

	mapClaims := jwt.MapClaims{
		"iss": i.issuer,
		"aud": i.audience,
		"exp": expires.Unix(),
		"iat": now.Unix(),
		"jti": jti,
	}
	if claims.Subject != "" {
		mapClaims["sub"] = claims.Subject
	}
	if claims.CustomerID != "" {
		mapClaims["customer_id"] = claims.CustomerID
	}
	if claims.IsSuperAdmin {
		mapClaims["is_super_admin"] = true
	}
	if claims.CSRF != "" {
		mapClaims["csrf"] = claims.CSRF
	}
	if claims.Scope != "" {
		mapClaims["scope"] = claims.Scope
	}
	for k, v := range claims.Extra {
		if _, known := knownClaims[k]; !known {
			mapClaims[k] = v
		}
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, mapClaims)
	tok.Header["kid"] = i.kid

	signed, err := tok.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// PublicJWKS renders the issuer's public key as a JWKS document for the
// well-known endpoint.
func (i *Issuer) PublicJWKS() ([]byte, error) {
	key, err := jwk.FromRaw(&i.key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("building jwk: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, i.kid); err != nil {
		return nil, fmt.Errorf("setting kid: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
		return nil, fmt.Errorf("setting alg: %w", err)
	}
	if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
		return nil, fmt.Errorf("setting use: %w", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, fmt.Errorf("assembling key set: %w", err)
	}
	doc, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encoding jwks: %w", err)
	}
	return doc, nil
}
