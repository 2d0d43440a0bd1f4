package core

import "time"

// RequestStatus is the lifecycle state of a sharing request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether the status permits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// SharingRequest is one requester's petition to read another customer's
// private fields. The request key is minted once at creation and never
// changes; approval merely releases it to the requester.
type SharingRequest struct {
	RequestID   string        `json:"request_id"`
	OwnerID     string        `json:"owner_id"`
	RequesterID string        `json:"requester_id"`
	RequestKey  string        `json:"-"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	DecidedAt   *time.Time    `json:"decided_at,omitempty"`
}
