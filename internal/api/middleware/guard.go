package middleware

import (
	"fmt"
	"net/http"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/verita-sec/verita/internal/api/presenter"
	"github.com/verita-sec/verita/internal/core"
	"github.com/verita-sec/verita/internal/roles"
)

// CompileCondition compiles an optional route condition evaluated over the
// verified claims, e.g. `claims.Scope contains "ops"`.
func CompileCondition(src string) (*vm.Program, error) {
	program, err := expr.Compile(src,
		expr.Env(conditionEnv{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compiling route condition %q: %w", src, err)
	}
	return program, nil
}

type conditionEnv struct {
	Claims core.TokenClaims `expr:"claims"`
}

// Guard enforces a protection level (and an optional compiled condition)
// on an authenticated route. Unauthenticated requests get 401, everything
// else that fails gets a uniform 403; the role directory failing counts as
// a denial.
func Guard(resolver *roles.Resolver, level roles.Level, condition *vm.Program) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth, ok := AuthFromContext(r.Context())
			if !ok {
				presenter.Unauthorized(w, r)
				return
			}

			decision := resolver.Check(r.Context(), auth.Claims, level)
			if !decision.Allowed {
				presenter.Error(w, r, decision.Err)
				return
			}

			if condition != nil {
				out, err := expr.Run(condition, conditionEnv{Claims: auth.Claims})
				if err != nil {
					log.Ctx(r.Context()).Warn().Err(err).Msg("route condition evaluation failed, denying")
					presenter.Forbidden(w, r)
					return
				}
				if allowed, _ := out.(bool); !allowed {
					presenter.Forbidden(w, r)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
