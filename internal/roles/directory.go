// Package roles decides whether an authenticated principal may use a
// gated route. Privilege comes from the signed super-admin claim when
// present, otherwise from the external role directory; any doubt denies.
package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/verita-sec/verita/internal/core"
)

const (
	apiKeyHeader = "X-API-Key"

	// defaultTimeout bounds the lookup; a hanging directory must read as
	// a denial, not a stall.
	defaultTimeout = 3 * time.Second
)

// Directory is the HTTP client for the role lookup collaborator.
type Directory struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ core.RoleDirectory = (*Directory)(nil)

func NewDirectory(baseURL, apiKey string, timeout time.Duration) *Directory {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Directory{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Roles fetches the role names assigned to a customer. A 404 means the
// customer simply has no roles and yields an empty set; transport and
// server failures surface as ErrRoleLookupUnavailable so callers fail
// closed.
func (d *Directory) Roles(ctx context.Context, customerID string) ([]string, error) {
	url := d.baseURL + "/access/" + customerID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating role lookup request: %w", err)
	}
	req.Header.Set(apiKeyHeader, d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrRoleLookupUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
		var body struct {
			Roles []string `json:"roles"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, fmt.Errorf("%w: decoding response: %v", core.ErrRoleLookupUnavailable, err)
		}
		return body.Roles, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: status %d", core.ErrRoleLookupUnavailable, resp.StatusCode)
	}
}
