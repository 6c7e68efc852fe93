package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"geopharm/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const actorKey contextKey = "actor"

var errInvalidClaims = errors.New("invalid token claims")

// AuthMiddleware validates JWT tokens and puts the acting identity on the context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, logger, true)
}

// OptionalAuthMiddleware authenticates when a token is present and lets
// anonymous requests through. A malformed or expired token is still rejected.
func OptionalAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return authenticate(jwtSecret, logger, false)
}

func authenticate(jwtSecret string, logger *zap.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}
			if !token.Valid {
				logger.Debug("Invalid token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				logger.Error("Failed to extract claims from token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				logger.Debug("Rejected token claims", zap.Error(err))
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			logger.Debug("User authenticated",
				zap.String("user_id", actor.UserID.String()),
				zap.String("role", string(actor.Role)),
			)
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// actorFromClaims reads user_id, role and, for owners, pharmacy_id. The
// system role is never accepted from a token.
func actorFromClaims(claims jwt.MapClaims) (domain.Actor, error) {
	var actor domain.Actor

	rawID, ok := claims["user_id"].(string)
	if !ok {
		return actor, errInvalidClaims
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return actor, errInvalidClaims
	}

	rawRole, ok := claims["role"].(string)
	if !ok {
		return actor, errInvalidClaims
	}
	role := domain.Role(rawRole)
	switch role {
	case domain.RolePatient, domain.RolePharmacyOwner, domain.RoleAdmin:
	default:
		return actor, errInvalidClaims
	}

	actor.UserID = userID
	actor.Role = role

	if rawPharmacy, ok := claims["pharmacy_id"].(string); ok && rawPharmacy != "" {
		pharmacyID, err := uuid.Parse(rawPharmacy)
		if err != nil {
			return actor, errInvalidClaims
		}
		actor.PharmacyID = pharmacyID
	}
	return actor, nil
}

// WithActor stores the acting identity on a context
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the acting identity, if the request was authenticated
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(domain.Actor)
	return actor, ok
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actor.UserID.String(), true
}
