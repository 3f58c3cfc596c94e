package auth

import (
	"context"
	"fmt"
	"job-chat/domain/chat"
	"job-chat/errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// Identity is the authenticated side of the board behind a connection.
type Identity struct {
	Party     chat.Sender
	SubjectID string
}

// Authorize checks that the identity owns the side of the conversation it
// claims to write as.
func (i Identity) Authorize(studentID, companyID string, sender chat.Sender) error {
	if sender != i.Party {
		return fmt.Errorf("%w: %s cannot write as %s", errors.ErrForbidden, i.Party, sender)
	}
	return i.AuthorizeViewer(studentID, companyID)
}

// AuthorizeViewer checks that the identity is one of the two parties.
func (i Identity) AuthorizeViewer(studentID, companyID string) error {
	key := chat.ConversationKey{StudentID: strings.TrimSpace(studentID), CompanyID: strings.TrimSpace(companyID)}
	own, err := i.Party.PartyID(key)
	if err != nil {
		return err
	}
	if own != i.SubjectID {
		return fmt.Errorf("%w: %s %s is not part of %s", errors.ErrForbidden, i.Party, i.SubjectID, key)
	}
	return nil
}

// AuthorizeSelf checks that the identity is the given party.
func (i Identity) AuthorizeSelf(party chat.Sender, id string) error {
	if i.Party != party || i.SubjectID != id {
		return fmt.Errorf("%w: %s %s cannot act as %s %s", errors.ErrForbidden, i.Party, i.SubjectID, party, id)
	}
	return nil
}

type contextKey string

const identityKey contextKey = "identity"

// FromContext returns the identity stored by Middleware. ok is false when the
// server trusts client supplied identities.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// TokenFromRequest reads "Authorization: Bearer <token>" or, for browsers
// opening a WebSocket, the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// Middleware validates the session token of every request and injects the
// identity into its context. With nil tokens every request passes untouched.
func Middleware(log *slog.Logger, tokens *Tokens, public ...string) mux.MiddlewareFunc {
	open := make(map[string]struct{}, len(public))
	for _, path := range public {
		open[path] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := open[r.URL.Path]; tokens == nil || ok {
				next.ServeHTTP(w, r)
				return
			}
			tokenString := TokenFromRequest(r)
			if tokenString == "" {
				http.Error(w, "authorization token is missing", http.StatusUnauthorized)
				return
			}
			identity, err := tokens.ValidateToken(tokenString)
			if err != nil {
				log.Debug("Rejected session token", "path", r.URL.Path, "error", err)
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
