package api

import (
	"fmt"
	"net/http"

	"github.com/expr-lang/expr/vm"

	"github.com/verita-sec/verita/internal/api/middleware"
	"github.com/verita-sec/verita/internal/config"
	"github.com/verita-sec/verita/internal/keyset"
	"github.com/verita-sec/verita/internal/roles"
	"github.com/verita-sec/verita/internal/sharing"
	"github.com/verita-sec/verita/internal/token"
)

// Server wires the trust layer's HTTP surface. The issuer is nil on
// relying-service deployments; only the identity provider signs tokens
// and publishes a key set.
type Server struct {
	verifier *token.Verifier
	issuer   *token.Issuer
	resolver *roles.Resolver
	requests *sharing.Manager
	keys     *keyset.Cache

	guards map[string]guard
}

type guard struct {
	level     roles.Level
	condition *vm.Program
}

func NewServer(
	verifier *token.Verifier,
	issuer *token.Issuer,
	resolver *roles.Resolver,
	requests *sharing.Manager,
	keys *keyset.Cache,
	protection []config.RouteGuard,
) (*Server, error) {
	s := &Server{
		verifier: verifier,
		issuer:   issuer,
		resolver: resolver,
		requests: requests,
		keys:     keys,
		guards: map[string]guard{
			// defaults; config entries below may tighten or extend these
			"GET " + AdminKeySetRoute: {level: roles.LevelAdmin},
			"POST " + IssueTokenRoute: {level: roles.LevelSuperAdmin},
		},
	}

	for _, g := range protection {
		entry := guard{level: roles.Level(g.Level)}
		if g.Condition != "" {
			program, err := middleware.CompileCondition(g.Condition)
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", g.Route, err)
			}
			entry.condition = program
		}
		s.guards[g.Route] = entry
	}
	return s, nil
}

// Routes assembles the handler tree. Every authenticated route runs
// through token verification and the response confidentiality wrapper;
// gated routes additionally pass the role guard.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// public routes
	mux.HandleFunc("GET "+HealthCheckRoute, s.handleHealth)
	mux.HandleFunc("GET "+AboutRoute, s.handleAbout)
	if s.issuer != nil {
		mux.HandleFunc("GET "+JWKSRoute, s.handleJWKS)
	}

	// authenticated routes
	s.protected(mux, "GET "+WhoAmIRoute, s.handleWhoAmI)
	s.protected(mux, "POST "+CreateRequestRoute, s.handleCreateRequest)
	s.protected(mux, "GET "+ListRequestsRoute, s.handleListRequests)
	s.protected(mux, "POST "+ApproveRequestRoute, s.handleApproveRequest)
	s.protected(mux, "POST "+RejectRequestRoute, s.handleRejectRequest)
	s.protected(mux, "GET "+ResolveKeyRoute, s.handleResolveKey)
	s.protected(mux, "POST "+SealFieldRoute, s.handleSealField)
	s.protected(mux, "GET "+AdminKeySetRoute, s.handleAdminKeySet)
	if s.issuer != nil {
		s.protected(mux, "POST "+IssueTokenRoute, s.handleIssue)
	}

	return middleware.Recover(
		middleware.CorrelationID(
			middleware.Logging(
				mux)))
}

func (s *Server) protected(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	var handler http.Handler = h
	if g, gated := s.guards[pattern]; gated {
		handler = middleware.Guard(s.resolver, g.level, g.condition)(handler)
	}
	handler = middleware.Authenticate(s.verifier)(
		middleware.EncryptResponse(handler))
	mux.Handle(pattern, handler)
}
