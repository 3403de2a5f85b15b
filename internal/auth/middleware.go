package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

const DefaultActorHeader = "X-Actor-ID"

type Middleware struct {
	*transport.BaseHandler
	verifier    *JWTVerifier
	actorHeader string
}

func NewMiddleware(baseHandler *transport.BaseHandler, verifier *JWTVerifier, actorHeader string) *Middleware {
	if actorHeader == "" {
		actorHeader = DefaultActorHeader
	}
	return &Middleware{
		BaseHandler: baseHandler,
		verifier:    verifier,
		actorHeader: actorHeader,
	}
}

// RequireActor resolves the acting admin and stores it on the request
// context. With a secret configured only a valid bearer token is accepted;
// without one the actor header is trusted.
func (m *Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := m.resolveActor(r)
		if err != nil {
			m.Logger.Warn("actor middleware: rejected request",
				"error", err,
				"path", r.URL.Path)
			m.HandleServiceError(w, err)
			return
		}

		ctx := internal.ContextWithActorID(r.Context(), actorID)
		ctx = logger.WithActor(ctx, actorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) resolveActor(r *http.Request) (string, error) {
	if m.verifier != nil && m.verifier.Enabled() {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			return "", internal.NewUnauthorizedError("missing bearer token", internal.ErrCodeMissingActorIdentity)
		}
		claims, err := m.verifier.Verify(token)
		switch {
		case errors.Is(err, ErrTokenExpired):
			return "", internal.NewUnauthorizedError("token expired", internal.ErrCodeTokenExpired)
		case err != nil:
			return "", internal.NewUnauthorizedError("invalid token", internal.ErrCodeInvalidToken)
		}
		return claims.Subject, nil
	}

	actorID := strings.TrimSpace(r.Header.Get(m.actorHeader))
	if actorID == "" {
		return "", internal.NewUnauthorizedError("missing "+m.actorHeader+" header", internal.ErrCodeMissingActorIdentity)
	}
	return actorID, nil
}
