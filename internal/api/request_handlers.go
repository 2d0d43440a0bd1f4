package api

import (
	"context"
	"net/http"

	"github.com/verita-sec/verita/internal/api/middleware"
	"github.com/verita-sec/verita/internal/api/presenter"
	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/privacy"
)

// CreateRequestPayload asks the owner for access to their private fields.
type CreateRequestPayload struct {
	OwnerID string `json:"owner_id"`
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		presenter.Unauthorized(w, r)
		return
	}

	var payload CreateRequestPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.OwnerID == "" {
		presenter.BadRequest(w, r, "owner_id is required")
		return
	}

	req, err := s.requests.Create(r.Context(), payload.OwnerID, auth.CustomerID)
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	presenter.JSON(w, r, req, http.StatusCreated)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		presenter.Unauthorized(w, r)
		return
	}

	list, err := s.requests.List(r.Context(), auth.CustomerID)
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	if list == nil {
		list = []core.SharingRequest{}
	}
	presenter.JSON(w, r, list, http.StatusOK)
}

type decisionFunc func(ctx context.Context, requestID, actingParty string) (core.SharingRequest, error)

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, s.requests.Approve)
}

func (s *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, s.requests.Reject)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, decide decisionFunc) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		presenter.Unauthorized(w, r)
		return
	}

	req, err := decide(r.Context(), r.PathValue("id"), auth.CustomerID)
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	presenter.JSON(w, r, req, http.StatusOK)
}

// ResolveKeyResponse releases the capability secret of an approved
// request to its requester.
type ResolveKeyResponse struct {
	RequestID  string `json:"request_id"`
	RequestKey string `json:"request_key"`
}

func (s *Server) handleResolveKey(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		presenter.Unauthorized(w, r)
		return
	}

	id := r.PathValue("id")
	key, err := s.requests.Resolve(r.Context(), id, auth.CustomerID)
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	presenter.JSON(w, r, ResolveKeyResponse{RequestID: id, RequestKey: key}, http.StatusOK)
}

// SealFieldPayload is a private field value the owner seals for an
// approved request.
type SealFieldPayload struct {
	Value string `json:"value"`
}

// handleSealField produces the two-stage form of a private field: stage 1
// under the owner's own bearer token, stage 2 under the request key. The
// sealed blob reaches the requester out of band; the request key alone
// (obtained via the key endpoint) never opens the inner stage.
func (s *Server) handleSealField(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthFromContext(r.Context())
	if !ok {
		presenter.Unauthorized(w, r)
		return
	}

	req, err := s.requests.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	if req.OwnerID != auth.CustomerID {
		presenter.Forbidden(w, r)
		return
	}
	if req.Status != core.StatusApproved {
		presenter.Error(w, r, core.ErrInvalidRequestTransition)
		return
	}

	var payload SealFieldPayload
	if !decodeBody(w, r, &payload) {
		return
	}
	if payload.Value == "" {
		presenter.BadRequest(w, r, "value is required")
		return
	}

	field, err := privacy.EncodeTwoStage([]byte(payload.Value), auth.RawToken, req.RequestKey)
	if err != nil {
		presenter.Error(w, r, err)
		return
	}
	presenter.JSON(w, r, field, http.StatusOK)
}
