package roles

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/core"
)

// Level is the protection tier a gated route requires.
type Level string

const (
	LevelAdmin      Level = "admin"
	LevelSuperAdmin Level = "super-admin"
)

const (
	roleAdmin      = "admin"
	roleSuperAdmin = "super-admin"
)

// Decision is the outcome of one route protection check.
type Decision struct {
	Allowed bool
	Level   Level
	Err     error
}

// Resolver checks protection levels against claims and the directory.
type Resolver struct {
	directory core.RoleDirectory
}

func NewResolver(directory core.RoleDirectory) *Resolver {
	return &Resolver{directory: directory}
}

// Check decides whether the principal meets the required level. A signed
// super-admin claim grants every level without touching the directory; it
// is the source of truth for privilege. Directory errors deny.
func (r *Resolver) Check(ctx context.Context, claims core.TokenClaims, level Level) Decision {
	if claims.IsSuperAdmin {
		return Decision{Allowed: true, Level: level}
	}

	names, err := r.directory.Roles(ctx, claims.CustomerID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("customer_id", claims.CustomerID).
			Msg("role lookup failed, denying")
		return Decision{Level: level, Err: fmt.Errorf("%w: %v", core.ErrRoleLookupUnavailable, err)}
	}

	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	allowed := false
	switch level {
	case LevelAdmin:
		_, hasAdmin := set[roleAdmin]
		_, hasSuper := set[roleSuperAdmin]
		allowed = hasAdmin || hasSuper
	case LevelSuperAdmin:
		_, allowed = set[roleSuperAdmin]
	}

	if !allowed {
		return Decision{Level: level, Err: fmt.Errorf("%w: %s required", core.ErrInsufficientRole, level)}
	}
	return Decision{Allowed: true, Level: level}
}

// Require is the error-only form of Check.
func (r *Resolver) Require(ctx context.Context, claims core.TokenClaims, level Level) error {
	return r.Check(ctx, claims, level).Err
}
