// Package sharing implements the peer-approval workflow for private
// fields. A requester asks, the data owner decides, and only an approved
// request releases its capability secret (the request key) back to the
// requester.
package sharing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/core"
)

const requestKeyBytes = 32

// Manager drives the request state machine on top of a RequestStore.
type Manager struct {
	store core.RequestStore

	now func() time.Time // test hook
}

func NewManager(store core.RequestStore) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Create mints a new pending request with a fresh random request key. The
// key is fixed for the lifetime of the request; approval releases it,
// rejection buries it.
func (m *Manager) Create(ctx context.Context, ownerID, requesterID string) (core.SharingRequest, error) {
	if ownerID == "" || requesterID == "" {
		return core.SharingRequest{}, fmt.Errorf("owner and requester are required")
	}
	if ownerID == requesterID {
		return core.SharingRequest{}, fmt.Errorf("cannot request sharing from yourself")
	}

	keyBytes := make([]byte, requestKeyBytes)
	if _, err := rand.Read(keyBytes); err != nil {
		return core.SharingRequest{}, fmt.Errorf("generating request key: %w", err)
	}

	req := core.SharingRequest{
		RequestID:   xid.New().String(),
		OwnerID:     ownerID,
		RequesterID: requesterID,
		RequestKey:  hex.EncodeToString(keyBytes),
		Status:      core.StatusPending,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.store.Create(ctx, req); err != nil {
		return core.SharingRequest{}, fmt.Errorf("creating sharing request: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("request_id", req.RequestID).
		Str("owner", ownerID).
		Str("requester", requesterID).
		Msg("sharing request created")
	return req, nil
}

// Approve moves a pending request to approved. Only the owner may decide.
// Approving an already-approved request is a no-op returning the stored
// request; approving a rejected one fails.
func (m *Manager) Approve(ctx context.Context, requestID, actingParty string) (core.SharingRequest, error) {
	return m.decide(ctx, requestID, actingParty, core.StatusApproved)
}

// Reject is symmetric to Approve. The request key is never released on
// rejection.
func (m *Manager) Reject(ctx context.Context, requestID, actingParty string) (core.SharingRequest, error) {
	return m.decide(ctx, requestID, actingParty, core.StatusRejected)
}

func (m *Manager) decide(ctx context.Context, requestID, actingParty string, to core.RequestStatus) (core.SharingRequest, error) {
	req, err := m.store.Get(ctx, requestID)
	if err != nil {
		return core.SharingRequest{}, err
	}
	if req.OwnerID != actingParty {
		return core.SharingRequest{}, fmt.Errorf("%w: only the owner may decide", core.ErrInsufficientRole)
	}

	// idempotent re-invocation of the same decision
	if req.Status == to {
		return req, nil
	}
	if req.Status.Terminal() {
		return core.SharingRequest{}, fmt.Errorf("%w: request is %s", core.ErrInvalidRequestTransition, req.Status)
	}

	decided, err := m.store.Transition(ctx, requestID, to, m.now().UTC())
	if err != nil {
		// a concurrent call may have won the same decision; that still
		// counts as idempotent success
		if decided.Status == to {
			return decided, nil
		}
		return core.SharingRequest{}, err
	}

	log.Ctx(ctx).Info().
		Str("request_id", requestID).
		Str("status", string(to)).
		Msg("sharing request decided")
	return decided, nil
}

// Resolve hands the request key to the requester of an approved request.
// The key only opens the outer privacy stage; the inner stage still needs
// the owner's own secret, which this layer never brokers.
func (m *Manager) Resolve(ctx context.Context, requestID, requesterID string) (string, error) {
	req, err := m.store.Get(ctx, requestID)
	if err != nil {
		return "", err
	}
	if req.RequesterID != requesterID {
		return "", fmt.Errorf("%w: not the requester", core.ErrInsufficientRole)
	}
	if req.Status != core.StatusApproved {
		return "", fmt.Errorf("%w: request is %s", core.ErrInvalidRequestTransition, req.Status)
	}
	return req.RequestKey, nil
}

// Get returns one request by id.
func (m *Manager) Get(ctx context.Context, requestID string) (core.SharingRequest, error) {
	return m.store.Get(ctx, requestID)
}

// List returns all requests the customer participates in, either side.
func (m *Manager) List(ctx context.Context, customerID string) ([]core.SharingRequest, error) {
	return m.store.ListByParty(ctx, customerID)
}
