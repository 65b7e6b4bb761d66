package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"

	"github.com/faradid/formforge/internal/schema"
)

// ensureFieldIDs backfills ids for fields submitted without one, the same
// shape the form builder clients generate.
func ensureFieldIDs(s *schema.FormSchema) {
	for i := range s.HeaderFields {
		if s.HeaderFields[i].ID == "" {
			s.HeaderFields[i].ID = schema.NewFieldID()
		}
	}
	for i := range s.ItemFields {
		if s.ItemFields[i].ID == "" {
			s.ItemFields[i].ID = schema.NewFieldID()
		}
	}
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserInput = strings.TrimSpace(req.UserInput)
	if req.UserInput == "" {
		writeError(w, http.StatusBadRequest, "Missing userInput")
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = tenantID(r)
	}

	// The pipeline runs to completion and persists its report even if the
	// client goes away mid-request.
	out := s.pipeline.Handle(context.WithoutCancel(r.Context()), userID, req.UserInput)
	resp := AgentResponse{
		TextAnswer: out.TextAnswer,
		Success:    out.Success,
		Error:      out.Err,
		APIStats:   out.Stats,
	}
	status := http.StatusOK
	if out.Err != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.store.ListFormTypes(r.Context(), tenantID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]FormTypeView, len(forms))
	for i, ft := range forms {
		views[i] = FormTypeView{ID: ft.ID, Name: ft.Name, Schema: ft.Schema}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	ft, err := s.store.GetFormType(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FormTypeView{ID: ft.ID, Name: ft.Name, Schema: ft.Schema})
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	var req FormTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Missing name")
		return
	}
	ensureFieldIDs(&req.Schema)
	id, err := s.store.CreateFormType(r.Context(), tenantID(r), req.Name, req.Schema)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	var req FormTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	ensureFieldIDs(&req.Schema)
	if err := s.store.UpdateFormType(r.Context(), tenantID(r), chi.URLParam(r, "id"), req.Name, req.Schema); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteFormType(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecordsByFormType(r.Context(), tenantID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]RecordView, len(records))
	for i, rec := range records {
		views[i] = RecordView{ID: rec.ID, FormTypeID: rec.FormTypeID, Data: rec.Data}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	formTypeID := chi.URLParam(r, "id")
	if _, err := s.store.GetFormType(r.Context(), tenantID(r), formTypeID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	id, err := s.store.CreateRecord(r.Context(), tenantID(r), formTypeID, req.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, IDResponse{ID: id})
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.store.UpdateRecord(r.Context(), tenantID(r), chi.URLParam(r, "id"), req.Data); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteRecord(r.Context(), tenantID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := s.store.ChatHistory(r.Context(), tenantID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]ChatMessageView, len(messages))
	for i, m := range messages {
		views[i] = ChatMessageView{ID: m.ID, Role: m.Role, Messages: m.Messages, CreatedAt: m.CreatedAt}
	}
	writeJSON(w, http.StatusOK, views)
}
