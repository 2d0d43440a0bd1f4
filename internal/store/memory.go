// Package store provides the sharing-request persistence backends. Both
// implementations guarantee that the Pending-to-terminal transition is an
// atomic compare-and-set per request id.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/verita-sec/verita/internal/core"
)

// Memory is the in-process request store, suitable for single-instance
// deployments and tests.
type Memory struct {
	mu       sync.Mutex
	requests map[string]core.SharingRequest
}

var _ core.RequestStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		requests: make(map[string]core.SharingRequest),
	}
}

func (s *Memory) Create(_ context.Context, req core.SharingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.RequestID]; exists {
		return fmt.Errorf("request %q already exists", req.RequestID)
	}
	s.requests[req.RequestID] = req
	return nil
}

func (s *Memory) Get(_ context.Context, requestID string) (core.SharingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return core.SharingRequest{}, core.ErrRequestNotFound
	}
	return req, nil
}

func (s *Memory) ListByParty(_ context.Context, customerID string) ([]core.SharingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.SharingRequest
	for _, req := range s.requests {
		if req.OwnerID == customerID || req.RequesterID == customerID {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Memory) Transition(_ context.Context, requestID string, to core.RequestStatus, decidedAt time.Time) (core.SharingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return core.SharingRequest{}, core.ErrRequestNotFound
	}
	if req.Status != core.StatusPending {
		return req, core.ErrInvalidRequestTransition
	}

	req.Status = to
	req.DecidedAt = &decidedAt
	s.requests[requestID] = req
	return req, nil
}
