package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/keyset"
)

type fixture struct {
	issuer   *Issuer
	verifier *Verifier
	priv     *rsa.PrivateKey
}

func newFixture(t *testing.T, legacySecret []byte) *fixture {
	t.Helper()

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}

	cache := keyset.NewCache(func(ctx context.Context) (core.KeySet, error) {
		return core.KeySet{
			Keys: []core.SigningKey{
				{KID: "test-kid", Algorithm: "RS256", PublicKey: &priv.PublicKey},
			},
			FetchedAt: time.Now(),
		}, nil
	})

	return &fixture{
		issuer:   NewIssuer(priv, "test-kid", "https://idp.example.com", "verita", time.Hour),
		verifier: NewVerifier(cache, legacySecret),
		priv:     priv,
	}
}

func TestVerify_IssuedToken(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.issuer.Issue(core.TokenClaims{
		Subject:    "user-1",
		CustomerID: "cust_1",
		Scope:      "read write",
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := f.verifier.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.CustomerID != "cust_1" {
		t.Errorf("customer id = %q, want cust_1", claims.CustomerID)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Issuer != "https://idp.example.com" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if claims.Scope != "read write" {
		t.Errorf("scope = %q", claims.Scope)
	}
	if claims.JWTID == "" {
		t.Error("jti not minted")
	}
}

func TestVerify_ExpiredAfterTimeAdvance(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.issuer.Issue(core.TokenClaims{
		CustomerID: "cust_1",
		ExpiresAt:  time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := f.verifier.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify before expiry: %v", err)
	}

	f.verifier.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = f.verifier.Verify(context.Background(), tok)
	if !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_ExpiredEvenWithBrokenSignature(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.issuer.Issue(core.TokenClaims{CustomerID: "cust_1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// break the signature AND advance past expiry: the expiry verdict wins
	broken := tok[:len(tok)-4] + "AAAA"
	f.verifier.now = func() time.Time { return time.Now().Add(48 * time.Hour) }

	_, err = f.verifier.Verify(context.Background(), broken)
	if !errors.Is(err, core.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_FlippedSignatureBit(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := f.issuer.Issue(core.TokenClaims{CustomerID: "cust_1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	if sig[10] == 'A' {
		sig[10] = 'B'
	} else {
		sig[10] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = f.verifier.Verify(context.Background(), tampered)
	if !errors.Is(err, core.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_UnknownKid(t *testing.T) {
	f := newFixture(t, nil)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	stranger := NewIssuer(other, "other-kid", "https://idp.example.com", "verita", time.Hour)
	tok, err := stranger.Issue(core.TokenClaims{CustomerID: "cust_1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	_, err = f.verifier.Verify(context.Background(), tok)
	if !errors.Is(err, core.ErrUnknownSigningKey) {
		t.Fatalf("expected ErrUnknownSigningKey, got %v", err)
	}
}

func TestVerify_LegacyHS256(t *testing.T) {
	secret := []byte("legacy-shared-secret")
	f := newFixture(t, secret)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"customer_id": "cust_legacy",
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("signing legacy token: %v", err)
	}

	claims, err := f.verifier.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.CustomerID != "cust_legacy" {
		t.Errorf("customer id = %q", claims.CustomerID)
	}
}

func TestVerify_LegacySecretNotConfigured(t *testing.T) {
	f := newFixture(t, nil)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"customer_id": "cust_legacy",
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("whatever"))
	if err != nil {
		t.Fatalf("signing legacy token: %v", err)
	}

	if _, err := f.verifier.Verify(context.Background(), tok); err == nil {
		t.Fatal("HS256 without a configured secret must fail, not bypass")
	}
}

func TestVerify_RejectsUnsupportedAlg(t *testing.T) {
	f := newFixture(t, []byte("secret"))

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"customer_id": "cust_1",
		"exp":         time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	_, err = f.verifier.Verify(context.Background(), tok)
	if !errors.Is(err, core.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for alg=none, got %v", err)
	}
}

func TestVerify_MissingIdentity(t *testing.T) {
	f := newFixture(t, nil)

	// validly signed with the known key, but carrying no identity claim
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	tok.Header["kid"] = "test-kid"
	signed, err := tok.SignedString(f.priv)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	_, err = f.verifier.Verify(context.Background(), signed)
	if !errors.Is(err, core.ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken without sub/customer_id, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	f := newFixture(t, nil)

	for _, tok := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		if _, err := f.verifier.Verify(context.Background(), tok); !errors.Is(err, core.ErrMalformedToken) {
			t.Errorf("token %q: expected ErrMalformedToken, got %v", tok, err)
		}
	}
}

func TestIssuer_PublicJWKS(t *testing.T) {
	f := newFixture(t, nil)

	doc, err := f.issuer.PublicJWKS()
	if err != nil {
		t.Fatalf("PublicJWKS: %v", err)
	}
	for _, want := range []string{`"kid":"test-kid"`, `"kty":"RSA"`} {
		if !strings.Contains(string(doc), want) {
			t.Errorf("jwks missing %s: %s", want, doc)
		}
	}
}
