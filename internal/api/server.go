// Package api exposes the form-authoring pipeline and the presentation-layer
// CRUD surface over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/faradid/formforge/internal/agent"
	"github.com/faradid/formforge/internal/schema"
	"github.com/faradid/formforge/internal/store"
)

// Pipeline runs the conversational form-authoring flow for one message.
type Pipeline interface {
	Handle(ctx context.Context, userID, userInput string) agent.Outcome
}

// Gateway is the tenant-scoped document-store surface the CRUD handlers use.
type Gateway interface {
	ListFormTypes(ctx context.Context, userID string) ([]store.FormType, error)
	GetFormType(ctx context.Context, userID, id string) (store.FormType, error)
	CreateFormType(ctx context.Context, userID, name string, s schema.FormSchema) (string, error)
	UpdateFormType(ctx context.Context, userID, id, name string, s schema.FormSchema) error
	DeleteFormType(ctx context.Context, userID, id string) error
	ListRecordsByFormType(ctx context.Context, userID, formTypeID string) ([]store.Record, error)
	CreateRecord(ctx context.Context, userID, formTypeID string, data schema.RecordData) (string, error)
	UpdateRecord(ctx context.Context, userID, id string, data schema.RecordData) error
	DeleteRecord(ctx context.Context, userID, id string) error
	ChatHistory(ctx context.Context, userID string) ([]store.ChatMessage, error)
}

type Server struct {
	router   chi.Router
	store    Gateway
	pipeline Pipeline
}

func NewServer(gw Gateway, pipeline Pipeline) *Server {
	srv := &Server{
		router:   chi.NewRouter(),
		store:    gw,
		pipeline: pipeline,
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-User-ID"},
	}))
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("dur", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("request")
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/api/agent", s.handleAgent)

	s.router.Get("/api/forms", s.handleListForms)
	s.router.Post("/api/forms", s.handleCreateForm)
	s.router.Get("/api/forms/{id}", s.handleGetForm)
	s.router.Put("/api/forms/{id}", s.handleUpdateForm)
	s.router.Delete("/api/forms/{id}", s.handleDeleteForm)

	s.router.Get("/api/forms/{id}/records", s.handleListRecords)
	s.router.Post("/api/forms/{id}/records", s.handleCreateRecord)
	s.router.Put("/api/records/{id}", s.handleUpdateRecord)
	s.router.Delete("/api/records/{id}", s.handleDeleteRecord)

	s.router.Get("/api/chat", s.handleChatHistory)
}

func tenantID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	if status >= http.StatusInternalServerError {
		log.Error().Int("status", status).Str("error", msg).Msg("request failed")
	} else {
		log.Warn().Int("status", status).Str("error", msg).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
