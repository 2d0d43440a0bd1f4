package client

import (
	"context"
	"fmt"

	"github.com/verita-sec/verita/internal/api"
	"github.com/verita-sec/verita/internal/privacy"
)

// SealField asks the server to produce the two-stage sealed form of a
// private field for an approved request. Only the data owner may call
// this: the inner stage is keyed by the owner's own bearer token.
func (c *Client) SealField(ctx context.Context, requestID, value string) (*privacy.SealedField, string, error) {
	var field privacy.SealedField
	correlation, err := c.post(ctx, c.url().
		setPath(api.SealFieldRoute).
		setPathParam("id", requestID).
		build(), api.SealFieldPayload{Value: value}, &field)
	if err != nil {
		return nil, correlation, fmt.Errorf("sealing field: %w", err)
	}
	return &field, correlation, nil
}

// DecryptSharedField opens a two-stage sealed field. The request key
// comes from ResolveKey after approval; the owner secret must be handed
// over by the owner out of band, the server never brokers it.
func DecryptSharedField(field privacy.SealedField, ownerSecret, requestKey string) ([]byte, error) {
	return privacy.DecodeTwoStage(field, ownerSecret, requestKey)
}
