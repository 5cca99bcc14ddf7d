package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/booking"
)

const actorKey contextKey = "actor"

// AuthMiddleware resolves the acting identity from the bearer token the
// external identity service issued. Tokens are HS256 with `sub` carrying
// the user id and `role` one of patient/doctor/admin. Authorization
// decisions (ownership, role gates) stay with the services; this only
// establishes who is calling.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	keyFunc := func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, keyFunc,
				jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			sub, err := claims.GetSubject()
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "token has no subject")
				return
			}
			userID, err := uuid.Parse(sub)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "subject is not a user id")
				return
			}
			role, _ := claims["role"].(string)
			if role == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "token has no role")
				return
			}

			actor := booking.Actor{ID: userID, Role: booking.Role(role)}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

// ActorFromContext returns the authenticated actor, if any.
func ActorFromContext(ctx context.Context) (booking.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(booking.Actor)
	return actor, ok
}
