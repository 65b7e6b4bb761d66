package api

import (
	"github.com/faradid/formforge/internal/agent"
	"github.com/faradid/formforge/internal/schema"
)

// AgentRequest is the body of POST /api/agent.
type AgentRequest struct {
	UserInput string `json:"userInput"`
	UserID    string `json:"userId"`
}

// AgentResponse mirrors the pipeline outcome on the wire.
type AgentResponse struct {
	TextAnswer string      `json:"text_answer"`
	Success    bool        `json:"success"`
	Error      string      `json:"error,omitempty"`
	APIStats   agent.Stats `json:"api_stats"`
}

// FormTypeView is the wire shape of one stored form type.
type FormTypeView struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Schema schema.FormSchema `json:"schema"`
}

// FormTypeRequest is the body for form-type create/update.
type FormTypeRequest struct {
	Name   string            `json:"name"`
	Schema schema.FormSchema `json:"schema"`
}

// RecordView is the wire shape of one stored record.
type RecordView struct {
	ID         string            `json:"id"`
	FormTypeID string            `json:"formTypeId"`
	Data       schema.RecordData `json:"data"`
}

// RecordRequest is the body for record create/update.
type RecordRequest struct {
	Data schema.RecordData `json:"data"`
}

// ChatMessageView is the wire shape of one chat-log entry.
type ChatMessageView struct {
	ID        string   `json:"id"`
	Role      string   `json:"role"`
	Messages  []string `json:"messages"`
	CreatedAt string   `json:"createdAt"`
}

// IDResponse acknowledges a create with the new document id.
type IDResponse struct {
	ID string `json:"id"`
}
