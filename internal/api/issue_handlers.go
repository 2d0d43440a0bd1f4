package api

import (
	"net/http"
	"time"

	"github.com/verita-sec/verita/internal/api/presenter"
	"github.com/verita-sec/verita/internal/core"
)

// IssuePayload mints a token for another principal. Only reachable on the
// identity-provider deployment, behind the super-admin guard.
type IssuePayload struct {
	Subject      string `json:"subject"`
	CustomerID   string `json:"customer_id"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	Scope        string `json:"scope"`
	TTLSeconds   int64  `json:"ttl_seconds"`
}

type IssueResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	var payload IssuePayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.Subject == "" && payload.CustomerID == "" {
		presenter.BadRequest(w, r, "subject or customer_id is required")
		return
	}

	claims := core.TokenClaims{
		Subject:      payload.Subject,
		CustomerID:   payload.CustomerID,
		IsSuperAdmin: payload.IsSuperAdmin,
		Scope:        payload.Scope,
	}
	if payload.TTLSeconds > 0 {
		claims.ExpiresAt = time.Now().Add(time.Duration(payload.TTLSeconds) * time.Second)
	}

	tok, err := s.issuer.Issue(claims)
	if err != nil {
		presenter.Error(w, r, err)
		return
	}

	expires := claims.ExpiresAt
	if expires.IsZero() {
		expires = time.Now().Add(s.issuer.DefaultTTL())
	}
	presenter.JSON(w, r, IssueResponse{Token: tok, ExpiresAt: expires}, http.StatusOK)
}
