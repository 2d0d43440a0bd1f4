package client

import (
	"context"
	"fmt"

	"github.com/verita-sec/verita/internal/api"
	"github.com/verita-sec/verita/internal/core"
)

// CreateRequest petitions the owner for access to their private fields.
// The caller (taken from the auth token) becomes the requester.
func (c *Client) CreateRequest(ctx context.Context, ownerID string) (*core.SharingRequest, string, error) {
	var req core.SharingRequest
	correlation, err := c.post(ctx, c.url().
		setPath(api.CreateRequestRoute).
		build(), api.CreateRequestPayload{OwnerID: ownerID}, &req)
	if err != nil {
		return nil, correlation, fmt.Errorf("creating sharing request: %w", err)
	}
	return &req, correlation, nil
}

// ListRequests returns every request the caller participates in.
func (c *Client) ListRequests(ctx context.Context) ([]core.SharingRequest, string, error) {
	var list []core.SharingRequest
	correlation, err := c.get(ctx, c.url().
		setPath(api.ListRequestsRoute).
		build(), &list)
	if err != nil {
		return nil, correlation, fmt.Errorf("listing sharing requests: %w", err)
	}
	return list, correlation, nil
}

// ApproveRequest approves a pending request. Only the data owner may call
// this; repeating the same decision is a no-op.
func (c *Client) ApproveRequest(ctx context.Context, requestID string) (*core.SharingRequest, string, error) {
	return c.decide(ctx, api.ApproveRequestRoute, requestID)
}

// RejectRequest rejects a pending request.
func (c *Client) RejectRequest(ctx context.Context, requestID string) (*core.SharingRequest, string, error) {
	return c.decide(ctx, api.RejectRequestRoute, requestID)
}

func (c *Client) decide(ctx context.Context, route, requestID string) (*core.SharingRequest, string, error) {
	var req core.SharingRequest
	correlation, err := c.post(ctx, c.url().
		setPath(route).
		setPathParam("id", requestID).
		build(), nil, &req)
	if err != nil {
		return nil, correlation, fmt.Errorf("deciding sharing request: %w", err)
	}
	return &req, correlation, nil
}

// ResolveKey fetches the request key of an approved request. Only the
// requester may call this, and only after approval.
func (c *Client) ResolveKey(ctx context.Context, requestID string) (string, string, error) {
	var resp api.ResolveKeyResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.ResolveKeyRoute).
		setPathParam("id", requestID).
		build(), &resp)
	if err != nil {
		return "", correlation, fmt.Errorf("resolving request key: %w", err)
	}
	return resp.RequestKey, correlation, nil
}
