package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/verita-sec/verita/internal/api/middleware"
	"github.com/verita-sec/verita/internal/api/presenter"
	"github.com/verita-sec/verita/internal/buildinfo"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if set, ok := s.keys.Snapshot(); ok {
		body["keyset_fetched_at"] = set.FetchedAt.Format(time.RFC3339)
	}
	presenter.JSON(w, r, body, http.StatusOK)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	doc, err := s.issuer.PublicJWKS()
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(doc)
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		presenter.Unauthorized(w, r)
		return
	}

	presenter.JSON(w, r, map[string]any{
		"customer_id":    auth.CustomerID,
		"subject":        auth.Claims.Subject,
		"issuer":         auth.Claims.Issuer,
		"is_super_admin": auth.Claims.IsSuperAdmin,
		"scope":          auth.Claims.Scope,
		"expires_at":     auth.Claims.ExpiresAt.Format(time.RFC3339),
	}, http.StatusOK)
}

func (s *Server) handleAdminKeySet(w http.ResponseWriter, r *http.Request) {
	set, ok := s.keys.Snapshot()
	if !ok {
		presenter.JSON(w, r, map[string]any{"keys": []string{}}, http.StatusOK)
		return
	}

	kids := make([]string, 0, len(set.Keys))
	for _, k := range set.Keys {
		kids = append(kids, k.KID)
	}
	presenter.JSON(w, r, map[string]any{
		"keys":       kids,
		"fetched_at": set.FetchedAt.Format(time.RFC3339),
	}, http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		presenter.BadRequest(w, r, "invalid json body")
		return false
	}
	return true
}
