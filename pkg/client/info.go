package client

import (
	"context"
	"fmt"
	"time"

	"github.com/verita-sec/verita/internal/api"
	"github.com/verita-sec/verita/internal/buildinfo"
)

// WhoAmI is the caller's identity as the server sees it.
type WhoAmI struct {
	CustomerID   string `json:"customer_id"`
	Subject      string `json:"subject"`
	Issuer       string `json:"issuer"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	Scope        string `json:"scope"`
	ExpiresAt    string `json:"expires_at"`
}

// GetWhoAmI verifies the configured token against the server and returns
// the claims it resolved. A successful round trip also proves the token
// can open encrypted responses.
func (c *Client) GetWhoAmI(ctx context.Context) (*WhoAmI, string, error) {
	var who WhoAmI
	correlation, err := c.get(ctx, c.url().
		setPath(api.WhoAmIRoute).
		build(), &who)
	if err != nil {
		return nil, correlation, err
	}
	return &who, correlation, nil
}

// GetServerInfo returns build information of the remote server.
func (c *Client) GetServerInfo(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	if err != nil {
		return nil, correlation, fmt.Errorf("fetching server info: %w", err)
	}
	return &info, correlation, nil
}

// IssueToken asks the identity provider to mint a token for another
// principal. Requires a super-admin token.
func (c *Client) IssueToken(ctx context.Context, payload api.IssuePayload) (string, time.Time, string, error) {
	var resp api.IssueResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.IssueTokenRoute).
		build(), payload, &resp)
	if err != nil {
		return "", time.Time{}, correlation, fmt.Errorf("issuing token: %w", err)
	}
	return resp.Token, resp.ExpiresAt, correlation, nil
}
