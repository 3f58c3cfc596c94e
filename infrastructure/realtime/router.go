package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"job-chat/auth"
	"job-chat/domain/chat"
	"job-chat/errors"
	"job-chat/observability"
	"job-chat/services"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type statsSource interface {
	Snapshot() observability.Stats
}

// RouterDeps groups what the HTTP surface serves.
type RouterDeps struct {
	Log     *slog.Logger
	Socket  *Handler
	History services.IHistoryService
	Store   pinger
	Stats   statsSource
	Tokens  *auth.Tokens
}

// NewRouter wires the websocket endpoint, the read-only REST API used by
// conversation pages and the operational endpoints.
func NewRouter(deps RouterDeps) *mux.Router {
	api := &restAPI{log: deps.Log, history: deps.History}

	router := mux.NewRouter()
	router.Use(auth.Middleware(deps.Log, deps.Tokens, "/healthz", "/debug/stats"))

	router.Handle("/ws", deps.Socket).Methods(http.MethodGet)
	router.HandleFunc("/api/conversations/{companyId}/{studentId}/messages", api.messages).Methods(http.MethodGet)
	router.HandleFunc("/api/students/{studentId}/companies", api.counterparts(chat.SenderStudent, "studentId")).Methods(http.MethodGet)
	router.HandleFunc("/api/companies/{companyId}/students", api.counterparts(chat.SenderCompany, "companyId")).Methods(http.MethodGet)

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	router.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Stats.Snapshot())
	}).Methods(http.MethodGet)

	return router
}

type restAPI struct {
	log     *slog.Logger
	history services.IHistoryService
}

// messages serves the conversation page. The viewer is the authenticated
// party, or the viewer query parameter when identities are trusted.
func (a *restAPI) messages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	studentID, companyID := vars["studentId"], vars["companyId"]

	viewer, err := a.viewer(r, studentID, companyID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	messages, err := a.history.OpenConversation(r.Context(), chat.GetMessagesCommand{
		Viewer:    viewer,
		StudentID: studentID,
		CompanyID: companyID,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, historyFrame{
		Type:      frameHistory,
		StudentID: studentID,
		CompanyID: companyID,
		Messages:  toPayloads(messages),
	})
}

func (a *restAPI) viewer(r *http.Request, studentID, companyID string) (chat.Sender, error) {
	if identity, ok := auth.FromContext(r.Context()); ok {
		if err := identity.AuthorizeViewer(studentID, companyID); err != nil {
			return 0, err
		}
		return identity.Party, nil
	}
	raw := r.URL.Query().Get("viewer")
	if raw == "" {
		return 0, fmt.Errorf("%w: viewer is required", errors.ErrValidation)
	}
	return chat.ParseSender(raw)
}

func (a *restAPI) counterparts(party chat.Sender, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)[param]
		if identity, ok := auth.FromContext(r.Context()); ok {
			if err := identity.AuthorizeSelf(party, id); err != nil {
				a.writeError(w, err)
				return
			}
		}
		ids, err := a.history.ListCounterparts(r.Context(), party, id)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
	}
}

func (a *restAPI) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorFrame{Type: frameError, Code: errors.Code(err), Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
