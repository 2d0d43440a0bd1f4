// Package presenter writes RFC 7807 problem responses. Error kinds are
// collapsed on the way out: every authentication failure looks the same
// 401 and every authorization failure the same 403, so response shape
// cannot be used as a signature-vs-expiry or key-existence oracle. The
// precise kind goes to the request log only.
package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/core"
)

const contentType = "application/problem+json"

// Problem is the RFC 7807 response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func Write(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	if p.Instance == "" {
		p.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write problem response")
	}
}

// JSON writes a plain success payload.
func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Unauthorized(w http.ResponseWriter, r *http.Request) {
	Write(w, r, Problem{Title: "authentication required", Status: http.StatusUnauthorized})
}

func Forbidden(w http.ResponseWriter, r *http.Request) {
	Write(w, r, Problem{Title: "access denied", Status: http.StatusForbidden})
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	Write(w, r, Problem{Title: "bad request", Status: http.StatusBadRequest, Detail: detail})
}

func NotFound(w http.ResponseWriter, r *http.Request) {
	Write(w, r, Problem{Title: "not found", Status: http.StatusNotFound})
}

func Internal(w http.ResponseWriter, r *http.Request) {
	Write(w, r, Problem{Title: "internal server error", Status: http.StatusInternalServerError})
}

// Error maps a core error to its collapsed problem response, logging the
// fine-grained kind before discarding it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	log.Ctx(r.Context()).Debug().Err(err).Msg("request failed")

	switch {
	case errors.Is(err, core.ErrNoToken),
		errors.Is(err, core.ErrMalformedToken),
		errors.Is(err, core.ErrUnknownSigningKey),
		errors.Is(err, core.ErrInvalidSignature),
		errors.Is(err, core.ErrTokenExpired):
		Unauthorized(w, r)

	case errors.Is(err, core.ErrInsufficientRole),
		errors.Is(err, core.ErrRoleLookupUnavailable),
		errors.Is(err, core.ErrWrongDecryptionKey):
		Forbidden(w, r)

	case errors.Is(err, core.ErrInvalidRequestTransition):
		Write(w, r, Problem{Title: "invalid request transition", Status: http.StatusConflict})

	case errors.Is(err, core.ErrRequestNotFound):
		NotFound(w, r)

	case errors.Is(err, core.ErrCorruptedEnvelope),
		errors.Is(err, core.ErrUnsupportedEnvelopeVersion):
		BadRequest(w, r, "undecodable payload")

	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("unhandled error kind")
		Internal(w, r)
	}
}
