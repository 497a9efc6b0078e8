package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/warp/piecework-payroll/approval"
	"github.com/warp/piecework-payroll/store/sqlite"
)

// =============================================================================
// ACTOR
// =============================================================================

// Actor is the authenticated caller. Tokens are issued elsewhere; this
// service only verifies them and reads the claims "sub", "name" and "role".
type Actor struct {
	ID   string
	Name string
	Role approval.Role
}

func (a Actor) store() sqlite.Actor { return sqlite.Actor{ID: a.ID, Name: a.Name} }

var errInvalidActor = errors.New("token is missing a valid sub or role claim")

type actorKey struct{}

// ActorFrom returns the actor stored by RequireActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// NewTokenAuth builds the HS256 verifier shared by the router and IssueToken.
func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil, jwt.WithAcceptableSkew(30*time.Second))
}

// IssueToken signs a token for a. Used by the dev server and tests.
func IssueToken(ta *jwtauth.JWTAuth, a Actor, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"sub":  a.ID,
		"name": a.Name,
		"role": string(a.Role),
	}
	jwtauth.SetExpiryIn(claims, ttl)
	_, token, err := ta.Encode(claims)
	return token, err
}

// RequireActor rejects requests without a verified token carrying a known
// role, and stores the Actor in the request context.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}

		sub, _ := claims["sub"].(string)
		name, _ := claims["name"].(string)
		role, _ := claims["role"].(string)
		actor := Actor{ID: sub, Name: name, Role: approval.Role(role)}
		if actor.ID == "" || !actor.Role.Valid() {
			writeError(w, http.StatusUnauthorized, "Unauthorized", errInvalidActor)
			return
		}
		if actor.Name == "" {
			actor.Name = actor.ID
		}

		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows only the given roles through. Must run after RequireActor.
func RequireRole(roles ...approval.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, _ := ActorFrom(r.Context())
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "Forbidden", nil)
		})
	}
}
