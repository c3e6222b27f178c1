package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/custodia-labs/studyrag/internal/core/domain"
)

type ownerKey struct{}

// authenticate resolves the bearer token to an owner. Browsers cannot set
// headers on a websocket handshake, so access_token is accepted there too.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, domain.ErrUnauthorized)
			return
		}
		owner, err := s.verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// ownerFrom returns the verified owner set by authenticate.
func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
