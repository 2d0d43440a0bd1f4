package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/verita-sec/verita/internal/core"
)

func newRedisStore(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedis(client, 0)
}

// both backends must satisfy the same contract
func stores(t *testing.T) map[string]core.RequestStore {
	return map[string]core.RequestStore{
		"memory": NewMemory(),
		"redis":  newRedisStore(t),
	}
}

func pendingRequest(id string) core.SharingRequest {
	return core.SharingRequest{
		RequestID:   id,
		OwnerID:     "cust_owner",
		RequesterID: "cust_requester",
		RequestKey:  "deadbeef",
		Status:      core.StatusPending,
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestStore_CreateGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := pendingRequest("req-1")

			if err := s.Create(ctx, want); err != nil {
				t.Fatalf("Create: %v", err)
			}

			got, err := s.Get(ctx, "req-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.OwnerID != want.OwnerID || got.RequesterID != want.RequesterID {
				t.Errorf("parties mismatch: %+v", got)
			}
			if got.RequestKey != "deadbeef" {
				t.Errorf("request key = %q", got.RequestKey)
			}
			if got.Status != core.StatusPending {
				t.Errorf("status = %q", got.Status)
			}

			if _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrRequestNotFound) {
				t.Errorf("expected ErrRequestNotFound, got %v", err)
			}
		})
	}
}

func TestStore_TransitionOnce(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Create(ctx, pendingRequest("req-1")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			decided := time.Now().UTC()
			got, err := s.Transition(ctx, "req-1", core.StatusApproved, decided)
			if err != nil {
				t.Fatalf("Transition: %v", err)
			}
			if got.Status != core.StatusApproved {
				t.Errorf("status = %q", got.Status)
			}
			if got.DecidedAt == nil {
				t.Error("decided_at not stamped")
			}

			// terminal state: any further transition conflicts
			got, err = s.Transition(ctx, "req-1", core.StatusRejected, time.Now())
			if !errors.Is(err, core.ErrInvalidRequestTransition) {
				t.Fatalf("expected ErrInvalidRequestTransition, got %v", err)
			}
			if got.Status != core.StatusApproved {
				t.Errorf("terminal status changed to %q", got.Status)
			}
		})
	}
}

func TestStore_ConcurrentTransitionSingleWinner(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Create(ctx, pendingRequest("req-1")); err != nil {
				t.Fatalf("Create: %v", err)
			}

			var wg sync.WaitGroup
			var mu sync.Mutex
			wins := 0
			for i := 0; i < 16; i++ {
				to := core.StatusApproved
				if i%2 == 1 {
					to = core.StatusRejected
				}
				wg.Add(1)
				go func(to core.RequestStatus) {
					defer wg.Done()
					if _, err := s.Transition(ctx, "req-1", to, time.Now()); err == nil {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}(to)
			}
			wg.Wait()

			if wins != 1 {
				t.Errorf("transition winners = %d, want exactly 1", wins)
			}

			got, err := s.Get(ctx, "req-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !got.Status.Terminal() {
				t.Errorf("status %q not terminal", got.Status)
			}
		})
	}
}

func TestStore_ListByParty(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			a := pendingRequest("req-a")
			b := pendingRequest("req-b")
			b.CreatedAt = a.CreatedAt.Add(time.Second)
			c := pendingRequest("req-c")
			c.OwnerID, c.RequesterID = "cust_other", "cust_unrelated"

			for _, req := range []core.SharingRequest{a, b, c} {
				if err := s.Create(ctx, req); err != nil {
					t.Fatalf("Create: %v", err)
				}
			}

			got, err := s.ListByParty(ctx, "cust_owner")
			if err != nil {
				t.Fatalf("ListByParty: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("len = %d, want 2", len(got))
			}
			if got[0].RequestID != "req-b" || got[1].RequestID != "req-a" {
				t.Errorf("order = %s, %s; want newest first", got[0].RequestID, got[1].RequestID)
			}

			got, err = s.ListByParty(ctx, "cust_requester")
			if err != nil {
				t.Fatalf("ListByParty: %v", err)
			}
			if len(got) != 2 {
				t.Errorf("requester view len = %d, want 2", len(got))
			}
		})
	}
}

func TestRedis_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	s := NewRedis(client, time.Minute)

	ctx := context.Background()
	if err := s.Create(ctx, pendingRequest("req-ttl")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := s.Get(ctx, "req-ttl"); !errors.Is(err, core.ErrRequestNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}

	// the stale index entry is skipped, not surfaced
	got, err := s.ListByParty(ctx, "cust_owner")
	if err != nil {
		t.Fatalf("ListByParty: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expired request still listed: %+v", got)
	}
}
