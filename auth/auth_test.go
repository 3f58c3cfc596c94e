package auth

import (
	"job-chat/domain/chat"
	"job-chat/errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const secret = "a_test_secret_long_enough_for_hs256"

func TestTokens_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens(secret, time.Hour)

	token, err := tokens.GenerateToken(chat.SenderCompany, "C1")
	req.NoError(err)

	identity, err := tokens.ValidateToken(token)
	req.NoError(err)
	req.Equal(Identity{Party: chat.SenderCompany, SubjectID: "C1"}, identity)
}

func TestTokens_Rejections(t *testing.T) {
	tokens := NewTokens(secret, time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		req := require.New(t)
		token, err := NewTokens("another_secret_entirely_different", time.Hour).GenerateToken(chat.SenderStudent, "S1")
		req.NoError(err)
		_, err = tokens.ValidateToken(token)
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("expired", func(t *testing.T) {
		req := require.New(t)
		past := NewTokens(secret, time.Minute)
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := past.GenerateToken(chat.SenderStudent, "S1")
		req.NoError(err)
		_, err = tokens.ValidateToken(token)
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("unknown party", func(t *testing.T) {
		req := require.New(t)
		claims := &CustomClaims{Party: "admin", SubjectID: "A1", RegisteredClaims: jwt.RegisteredClaims{
			Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		req.NoError(err)
		_, err = tokens.ValidateToken(token)
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tokens.ValidateToken("not.a.token")
		require.ErrorIs(t, err, errors.ErrForbidden)
	})

	t.Run("malformed subject is never signed", func(t *testing.T) {
		_, err := tokens.GenerateToken(chat.SenderStudent, "S 1")
		require.ErrorIs(t, err, errors.ErrInvalidIdentity)
	})
}

func TestIdentity_Authorize(t *testing.T) {
	req := require.New(t)
	student := Identity{Party: chat.SenderStudent, SubjectID: "S1"}
	company := Identity{Party: chat.SenderCompany, SubjectID: "C1"}

	req.NoError(student.Authorize("S1", "C1", chat.SenderStudent))
	req.NoError(company.Authorize("S1", "C1", chat.SenderCompany))

	// A student cannot speak for the company, nor in someone else's conversation
	req.ErrorIs(student.Authorize("S1", "C1", chat.SenderCompany), errors.ErrForbidden)
	req.ErrorIs(student.Authorize("S2", "C1", chat.SenderStudent), errors.ErrForbidden)
	req.ErrorIs(company.AuthorizeViewer("S1", "C2"), errors.ErrForbidden)
	req.NoError(student.AuthorizeViewer(" S1 ", "C9"))

	// An identity of no known party is never a viewer
	req.ErrorIs(Identity{SubjectID: "S1"}.AuthorizeViewer("S1", "C1"), errors.ErrUnknownSender)

	req.NoError(company.AuthorizeSelf(chat.SenderCompany, "C1"))
	req.ErrorIs(company.AuthorizeSelf(chat.SenderStudent, "C1"), errors.ErrForbidden)
}

func TestMiddleware(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	tokens := NewTokens(secret, time.Hour)
	router := mux.NewRouter()
	router.Use(Middleware(log, tokens, "/healthz"))
	router.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
		identity, ok := FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(identity.SubjectID))
	})
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	t.Run("public path needs no token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken(chat.SenderStudent, "S1")
		req.NoError(err)
		r := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, r)
		req.Equal(http.StatusOK, rec.Code)
		req.Equal("S1", rec.Body.String())
	})

	t.Run("query parameter", func(t *testing.T) {
		req := require.New(t)
		token, err := tokens.GenerateToken(chat.SenderCompany, "C1")
		req.NoError(err)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil))
		req.Equal("C1", rec.Body.String())
	})

	t.Run("trusted mode without tokens", func(t *testing.T) {
		open := mux.NewRouter()
		open.Use(Middleware(log, nil))
		open.HandleFunc("/whoami", func(w http.ResponseWriter, r *http.Request) {
			_, ok := FromContext(r.Context())
			require.False(t, ok)
		})
		rec := httptest.NewRecorder()
		open.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
