package schema

import (
	"fmt"
	"strings"
)

// ValidateFormType checks a proposed form-type payload against the
// structural rules. Validation failures are data, not control flow: the
// result is a list of error strings, empty on success.
func ValidateFormType(data map[string]any, method string) []string {
	var errs []string
	if !isNonEmptyString(data["name"]) {
		errs = append(errs, "Missing or invalid name")
	}
	if _, ok := data["hasItems"].(bool); !ok {
		errs = append(errs, "Missing or invalid hasItems")
	}
	errs = append(errs, validateFieldArray(data, "headerFields")...)
	errs = append(errs, validateFieldArray(data, "itemFields")...)
	if _, ok := data["schema"]; ok {
		errs = append(errs, "Do not use schema wrapper; provide fields directly")
	}
	if method == MethodUpdate && !isNonEmptyString(data["$id"]) && !isNonEmptyString(data["documentId"]) && !isNonEmptyString(data["id"]) {
		errs = append(errs, "Missing or invalid $id for update")
	}
	return errs
}

func validateFieldArray(data map[string]any, key string) []string {
	raw, ok := data[key]
	if !ok || raw == nil {
		return []string{fmt.Sprintf("%s must be an array", key)}
	}
	arr, ok := raw.([]any)
	if !ok {
		return []string{fmt.Sprintf("%s must be an array", key)}
	}
	var errs []string
	for i, rf := range arr {
		f, ok := rf.(map[string]any)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s[%d]: not an object", key, i))
			continue
		}
		if !isNonEmptyString(f["id"]) {
			errs = append(errs, fmt.Sprintf("%s[%d]: Missing or invalid id", key, i))
		}
		typ, _ := f["type"].(string)
		if typ == "" || !IsAllowedFieldType(typ) {
			errs = append(errs, fmt.Sprintf("%s[%d]: Invalid type", key, i))
		}
		if !isNonEmptyString(f["label"]) {
			errs = append(errs, fmt.Sprintf("%s[%d]: Missing or invalid label", key, i))
		}
		if _, ok := f["required"].(bool); !ok {
			errs = append(errs, fmt.Sprintf("%s[%d]: Missing or invalid required", key, i))
		}
		if typ == "reference" {
			if !isString(f["targetFormType"]) && !isString(f["referenceTo"]) {
				errs = append(errs, fmt.Sprintf("%s[%d]: Reference missing targetFormType", key, i))
			}
			if !isString(f["displayField"]) {
				errs = append(errs, fmt.Sprintf("%s[%d]: Reference missing displayField", key, i))
			}
		}
	}
	return errs
}

// ValidateRecord checks a proposed record payload and its action envelope.
func ValidateRecord(data map[string]any, act Action) []string {
	var errs []string
	if _, ok := data["header"].(map[string]any); !ok {
		errs = append(errs, "Missing header object")
	}
	if _, ok := data["items"].([]any); !ok {
		if _, typed := data["items"].([]map[string]any); !typed {
			errs = append(errs, "items must be an array")
		}
	}
	formTypeID := act.FormTypeID
	if formTypeID == "" {
		formTypeID, _ = data["formTypeId"].(string)
	}
	if formTypeID == "" {
		errs = append(errs, "Missing formTypeId")
	}
	if act.Method == MethodUpdate && act.EnvelopeID() == "" &&
		!isNonEmptyString(data["$id"]) && !isNonEmptyString(data["documentId"]) {
		errs = append(errs, "Missing or invalid ID for update")
	}
	return errs
}

// ValidateActions dispatches per action type/method and prefixes each error
// with the 1-based action index.
func ValidateActions(actions []Action) []string {
	var errs []string
	for i, act := range actions {
		var actionErrs []string
		switch {
		case act.Type == ActionTypeFormType && (act.Method == MethodCreate || act.Method == MethodUpdate):
			data := act.Data
			if data == nil {
				data = act.FormType
			}
			if data == nil {
				actionErrs = []string{"Missing data"}
			} else {
				actionErrs = ValidateFormType(data, act.Method)
			}
		case act.Type == ActionTypeRecord && (act.Method == MethodCreate || act.Method == MethodUpdate):
			data := act.Data
			if data == nil {
				data = act.Record
			}
			if data == nil {
				actionErrs = []string{"Missing data"}
			} else {
				actionErrs = ValidateRecord(data, act)
			}
		}
		for _, e := range actionErrs {
			errs = append(errs, fmt.Sprintf("Action %d: %s", i+1, e))
		}
	}
	return errs
}

// ValidateItems enforces the hasItems/itemFields consistency invariant.
func ValidateItems(s FormSchema) []string {
	var errs []string
	if s.HasItems {
		if len(s.ItemFields) == 0 {
			errs = append(errs, "Form has hasItems:true but no itemFields defined")
			return errs
		}
		for _, f := range s.ItemFields {
			if f.ID == "" || f.Type == "" {
				errs = append(errs, "Item field is missing required attributes: id or type")
			}
			if f.Type == "reference" && f.TargetFormType == "" {
				errs = append(errs, fmt.Sprintf("Reference field '%s' is missing referenceTo or targetFormType attribute", f.ID))
			}
		}
	} else if len(s.ItemFields) > 0 {
		errs = append(errs, "Form has itemFields but hasItems is not set to true")
	}
	return errs
}

// ValidateRecordData checks a record's values against its owning schema:
// every required header field must have a non-empty value under its exact
// label key, and every required item field in every item row.
func ValidateRecordData(data RecordData, s FormSchema) []string {
	var errs []string
	for _, f := range s.HeaderFields {
		if !f.Required {
			continue
		}
		if isEmptyValue(data.Header[f.Label]) {
			errs = append(errs, fmt.Sprintf("Field '%s' is required but missing in header", f.Label))
		}
	}
	for _, f := range s.ItemFields {
		if !f.Required {
			continue
		}
		for i, item := range data.Items {
			if isEmptyValue(item[f.Label]) {
				errs = append(errs, fmt.Sprintf("Field '%s' is required but missing in item %d", f.Label, i+1))
			}
		}
	}
	return errs
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
