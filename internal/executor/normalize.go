package executor

import (
	"maps"
	"strings"

	"github.com/faradid/formforge/internal/schema"
)

// Model output is tolerated in a few alias shapes. This adapter folds them
// into the canonical {method, type, data} form so the executor itself only
// deals with one representation.
func normalizeAction(raw schema.Action) schema.Action {
	act := raw
	if act.Shorthand != "" && act.Method == "" {
		method, rest, _ := strings.Cut(act.Shorthand, "_")
		act.Method = method
		if rest == "form" || rest == "form_type" {
			act.Type = schema.ActionTypeFormType
		} else {
			act.Type = rest
		}
	}
	if act.Data == nil {
		switch {
		case act.FormType != nil:
			act.Data = act.FormType
		case act.Record != nil:
			act.Data = act.Record
		}
	}
	if act.Data != nil {
		act.Data = maps.Clone(act.Data)
	}
	return act
}

var idAliasKeys = []string{"documentId", "$id", "id"}

// extractEntityID finds the target entity id for update/delete actions,
// checking the envelope first and the payload as fallback. Id aliases found
// in the payload are stripped so they are never persisted as field values.
func extractEntityID(act *schema.Action) string {
	if id := act.EnvelopeID(); id != "" {
		stripIDAliases(act.Data)
		return id
	}
	if act.Data == nil {
		return ""
	}
	for _, k := range idAliasKeys {
		if v, ok := act.Data[k].(string); ok && v != "" {
			stripIDAliases(act.Data)
			return v
		}
	}
	return ""
}

func stripIDAliases(data map[string]any) {
	for _, k := range idAliasKeys {
		delete(data, k)
	}
}

// resolveTolerant rewrites placeholders that already have step-map entries
// and leaves the payload untouched when any referenced step is still
// pending. Schemas stored with literal placeholders get another chance in
// the post-batch resolve loop.
func resolveTolerant(data map[string]any, steps schema.StepMap) map[string]any {
	resolved, err := schema.Resolve(data, steps)
	if err != nil {
		return data
	}
	out, ok := resolved.(map[string]any)
	if !ok {
		return data
	}
	return out
}
