package roles

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/verita-sec/verita/internal/core"
)

type stubDirectory struct {
	roles []string
	err   error
	calls atomic.Int32
}

func (s *stubDirectory) Roles(context.Context, string) ([]string, error) {
	s.calls.Add(1)
	return s.roles, s.err
}

func TestResolver_SuperAdminClaimFastPath(t *testing.T) {
	dir := &stubDirectory{err: errors.New("must not be called")}
	r := NewResolver(dir)
	claims := core.TokenClaims{CustomerID: "cust_1", IsSuperAdmin: true}

	for _, level := range []Level{LevelAdmin, LevelSuperAdmin} {
		d := r.Check(context.Background(), claims, level)
		if !d.Allowed {
			t.Errorf("level %s: denied despite super-admin claim", level)
		}
	}
	if got := dir.calls.Load(); got != 0 {
		t.Errorf("directory calls = %d, want 0", got)
	}
}

func TestResolver_Levels(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		level   Level
		allowed bool
	}{
		{"admin role grants admin", []string{"admin"}, LevelAdmin, true},
		{"super-admin role grants admin", []string{"super-admin"}, LevelAdmin, true},
		{"admin role denied super-admin", []string{"admin"}, LevelSuperAdmin, false},
		{"super-admin role grants super-admin", []string{"super-admin"}, LevelSuperAdmin, true},
		{"no roles denied", nil, LevelAdmin, false},
		{"unrelated roles denied", []string{"viewer", "editor"}, LevelAdmin, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(&stubDirectory{roles: tt.roles})
			d := r.Check(context.Background(), core.TokenClaims{CustomerID: "cust_1"}, tt.level)
			if d.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v (err: %v)", d.Allowed, tt.allowed, d.Err)
			}
			if !tt.allowed && !errors.Is(d.Err, core.ErrInsufficientRole) {
				t.Errorf("expected ErrInsufficientRole, got %v", d.Err)
			}
		})
	}
}

func TestResolver_DirectoryFailureFailsClosed(t *testing.T) {
	r := NewResolver(&stubDirectory{err: errors.New("connection refused")})
	d := r.Check(context.Background(), core.TokenClaims{CustomerID: "cust_1"}, LevelAdmin)

	if d.Allowed {
		t.Fatal("directory failure must never grant access")
	}
	if !errors.Is(d.Err, core.ErrRoleLookupUnavailable) {
		t.Errorf("expected ErrRoleLookupUnavailable, got %v", d.Err)
	}
}

func TestDirectory_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "service-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/access/cust_admin":
			_, _ = w.Write([]byte(`{"roles":["admin"]}`))
		case "/access/cust_nobody":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	dir := NewDirectory(srv.URL, "service-key", time.Second)

	got, err := dir.Roles(context.Background(), "cust_admin")
	if err != nil {
		t.Fatalf("Roles: %v", err)
	}
	if len(got) != 1 || got[0] != "admin" {
		t.Errorf("roles = %v", got)
	}

	// 404 is "no roles", not an error
	got, err = dir.Roles(context.Background(), "cust_nobody")
	if err != nil {
		t.Fatalf("Roles for unknown customer: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("roles = %v, want empty", got)
	}

	// 5xx is unavailable
	if _, err := dir.Roles(context.Background(), "cust_broken"); !errors.Is(err, core.ErrRoleLookupUnavailable) {
		t.Errorf("expected ErrRoleLookupUnavailable, got %v", err)
	}
}
