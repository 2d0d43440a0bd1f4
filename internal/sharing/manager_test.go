package sharing

import (
	"context"
	"errors"
	"testing"

	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/store"
)

func newManager() *Manager {
	return NewManager(store.NewMemory())
}

func TestManager_CreateMintsKey(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	req, err := m.Create(ctx, "cust_owner", "cust_requester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if req.Status != core.StatusPending {
		t.Errorf("status = %q, want pending", req.Status)
	}
	if len(req.RequestKey) != 64 { // 32 bytes hex
		t.Errorf("request key length = %d", len(req.RequestKey))
	}

	other, err := m.Create(ctx, "cust_owner", "cust_requester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if other.RequestKey == req.RequestKey {
		t.Error("request keys must be independent per request")
	}
}

func TestManager_CreateValidation(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	if _, err := m.Create(ctx, "", "cust_requester"); err == nil {
		t.Error("empty owner accepted")
	}
	if _, err := m.Create(ctx, "cust_a", "cust_a"); err == nil {
		t.Error("self-request accepted")
	}
}

func TestManager_ApproveLifecycle(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	req, err := m.Create(ctx, "cust_owner", "cust_requester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// requester cannot decide
	if _, err := m.Approve(ctx, req.RequestID, "cust_requester"); !errors.Is(err, core.ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}

	decided, err := m.Approve(ctx, req.RequestID, "cust_owner")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if decided.Status != core.StatusApproved {
		t.Errorf("status = %q", decided.Status)
	}
	if decided.DecidedAt == nil {
		t.Error("decided_at not set")
	}

	// idempotent second approve
	again, err := m.Approve(ctx, req.RequestID, "cust_owner")
	if err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	if again.Status != core.StatusApproved {
		t.Errorf("status = %q", again.Status)
	}

	// but a reject on an approved request is a conflict
	if _, err := m.Reject(ctx, req.RequestID, "cust_owner"); !errors.Is(err, core.ErrInvalidRequestTransition) {
		t.Fatalf("expected ErrInvalidRequestTransition, got %v", err)
	}
}

func TestManager_ApproveAfterReject(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	req, err := m.Create(ctx, "cust_owner", "cust_requester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Reject(ctx, req.RequestID, "cust_owner"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	if _, err := m.Approve(ctx, req.RequestID, "cust_owner"); !errors.Is(err, core.ErrInvalidRequestTransition) {
		t.Fatalf("expected ErrInvalidRequestTransition, got %v", err)
	}
}

func TestManager_Resolve(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	req, err := m.Create(ctx, "cust_owner", "cust_requester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// pending: nothing to resolve
	if _, err := m.Resolve(ctx, req.RequestID, "cust_requester"); !errors.Is(err, core.ErrInvalidRequestTransition) {
		t.Fatalf("expected ErrInvalidRequestTransition while pending, got %v", err)
	}

	if _, err := m.Approve(ctx, req.RequestID, "cust_owner"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	key, err := m.Resolve(ctx, req.RequestID, "cust_requester")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if key != req.RequestKey {
		t.Error("resolved key differs from minted key")
	}

	// only the requester may resolve
	if _, err := m.Resolve(ctx, req.RequestID, "cust_owner"); !errors.Is(err, core.ErrInsufficientRole) {
		t.Fatalf("expected ErrInsufficientRole, got %v", err)
	}
}

func TestManager_ResolveRejected(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	req, err := m.Create(ctx, "cust_owner", "cust_requester")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Reject(ctx, req.RequestID, "cust_owner"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	// the key is never released on rejection
	if _, err := m.Resolve(ctx, req.RequestID, "cust_requester"); !errors.Is(err, core.ErrInvalidRequestTransition) {
		t.Fatalf("expected ErrInvalidRequestTransition, got %v", err)
	}
}
