package schema

import "sort"

// Action methods and types as emitted by the model.
const (
	ActionTypeFormType = "form_type"
	ActionTypeRecord   = "record"

	MethodCreate = "create"
	MethodUpdate = "update"
	MethodDelete = "delete"
)

// Action is one requested mutation. The envelope tolerates the aliases the
// model occasionally produces: an "action" shorthand instead of method/type,
// payloads under form_type/record instead of data, and documentId/$id/id for
// the target entity.
type Action struct {
	Step       int            `json:"step"`
	Type       string         `json:"type,omitempty"`
	Method     string         `json:"method,omitempty"`
	DollarID   string         `json:"$id,omitempty"`
	DocumentID string         `json:"documentId,omitempty"`
	PlainID    string         `json:"id,omitempty"`
	FormTypeID string         `json:"formTypeId,omitempty"`
	Shorthand  string         `json:"action,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	FormType   map[string]any `json:"form_type,omitempty"`
	Record     map[string]any `json:"record,omitempty"`
}

// EnvelopeID returns the first id present on the action envelope itself.
func (a Action) EnvelopeID() string {
	switch {
	case a.DocumentID != "":
		return a.DocumentID
	case a.DollarID != "":
		return a.DollarID
	default:
		return a.PlainID
	}
}

// SortActions orders actions ascending by step. Later actions may depend on
// ids produced by earlier ones, so execution order must follow step order.
func SortActions(actions []Action) []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// ActionsEnvelope is the strict-JSON output contract of the schema stage.
type ActionsEnvelope struct {
	Actions []Action `json:"actions"`
}

// QAVerdict is the validation block of the QA stage output.
type QAVerdict struct {
	IsValid        bool     `json:"is_valid"`
	CriticalIssues []string `json:"critical_issues,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
}

// QAEnvelope is the strict-JSON output contract of the QA stage.
type QAEnvelope struct {
	Validation QAVerdict `json:"validation"`
	Fixes      []Action  `json:"fixes"`
}
