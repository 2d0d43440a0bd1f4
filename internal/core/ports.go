package core

import (
	"context"
	"time"
)

// RequestStore persists sharing requests. Implementations must make
// Transition an atomic compare-and-set on the request's status so that a
// concurrent approve and reject resolve to exactly one terminal state.
type RequestStore interface {
	// Create persists a new request. The request id must not exist yet.
	Create(ctx context.Context, req SharingRequest) error

	// Get returns the request with the given id, or ErrRequestNotFound.
	Get(ctx context.Context, requestID string) (SharingRequest, error)

	// ListByParty returns all requests where the customer is owner or
	// requester, newest first.
	ListByParty(ctx context.Context, customerID string) ([]SharingRequest, error)

	// Transition moves the request from Pending to the given terminal
	// status and stamps decidedAt. If the request is not Pending it
	// returns the stored request unchanged together with
	// ErrInvalidRequestTransition.
	Transition(ctx context.Context, requestID string, to RequestStatus, decidedAt time.Time) (SharingRequest, error)
}

// RoleDirectory resolves role names for a customer. A customer without
// any role assignment yields an empty slice, not an error; transport
// failures must surface as errors so the caller can fail closed.
type RoleDirectory interface {
	Roles(ctx context.Context, customerID string) ([]string, error)
}
