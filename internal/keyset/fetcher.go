// Package keyset fetches and caches the identity provider's published
// signing keys. The cache is the only shared mutable state in the trust
// layer: it is replaced wholesale on refresh and never partially updated.
package keyset

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/core"
)

const (
	jwksPath = "/.well-known/jwks.json"

	// defaultFetchTimeout bounds the key-set request so a slow identity
	// provider cannot stall the request pipeline.
	defaultFetchTimeout = 3 * time.Second
)

// FetchFunc retrieves a fresh key set. It is a function type so tests can
// substitute a stub for the HTTP fetcher.
type FetchFunc func(ctx context.Context) (core.KeySet, error)

// Fetcher loads the JWKS document from the issuer's well-known endpoint.
type Fetcher struct {
	issuerURL  string
	httpClient *http.Client
}

func NewFetcher(issuerURL string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		issuerURL:  strings.TrimSuffix(issuerURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads and parses the key set. Non-RSA keys and keys that fail
// to materialize are skipped with a warning rather than failing the whole
// set; one bad entry must not take down verification for everyone.
func (f *Fetcher) Fetch(ctx context.Context) (core.KeySet, error) {
	url := f.issuerURL + jwksPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return core.KeySet{}, fmt.Errorf("creating jwks request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return core.KeySet{}, fmt.Errorf("fetching jwks from %s: %w", url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return core.KeySet{}, fmt.Errorf("fetching jwks from %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return core.KeySet{}, fmt.Errorf("reading jwks body: %w", err)
	}

	parsed, err := jwk.Parse(body)
	if err != nil {
		return core.KeySet{}, fmt.Errorf("parsing jwks document: %w", err)
	}

	set := core.KeySet{FetchedAt: time.Now()}
	for i := 0; i < parsed.Len(); i++ {
		key, _ := parsed.Key(i)

		var pub rsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			log.Warn().Str("kid", key.KeyID()).Err(err).Msg("skipping non-RSA jwks entry")
			continue
		}

		alg := key.Algorithm().String()
		if alg == "" {
			alg = "RS256"
		}
		set.Keys = append(set.Keys, core.SigningKey{
			KID:       key.KeyID(),
			Algorithm: alg,
			PublicKey: &pub,
		})
	}

	if len(set.Keys) == 0 {
		return core.KeySet{}, fmt.Errorf("jwks document from %s contains no usable keys", url)
	}
	return set, nil
}
