// Package schema defines the form-type data model and the pure validation
// helpers used by the action executor and the pipeline orchestrator.
package schema

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// AllowedFieldTypes is the closed set of field types a form may use.
var AllowedFieldTypes = []string{
	"text", "textarea", "number", "integer", "decimal",
	"email", "password", "url",
	"date", "datetime", "time",
	"select", "multiselect", "checkbox", "radio",
	"file", "image", "hidden", "reference",
}

// IsAllowedFieldType reports whether t is in the allow-list.
func IsAllowedFieldType(t string) bool {
	for _, a := range AllowedFieldTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Field is a single form attribute. The label doubles as the storage key for
// the field's value inside a record, so renaming a label orphans previously
// stored values. Kept for compatibility with existing data.
type Field struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Label          string   `json:"label"`
	Required       bool     `json:"required"`
	Options        []string `json:"options,omitempty"`
	TargetFormType string   `json:"targetFormType,omitempty"`
	DisplayField   string   `json:"displayField,omitempty"`
}

// UnmarshalJSON accepts the legacy "referenceTo" alias for targetFormType.
func (f *Field) UnmarshalJSON(data []byte) error {
	type alias Field
	aux := struct {
		*alias
		ReferenceTo string `json:"referenceTo,omitempty"`
	}{alias: (*alias)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if f.TargetFormType == "" && aux.ReferenceTo != "" {
		f.TargetFormType = aux.ReferenceTo
	}
	return nil
}

// FormSchema describes one form's shape.
type FormSchema struct {
	Name         string  `json:"name"`
	HasItems     bool    `json:"hasItems"`
	HeaderFields []Field `json:"headerFields"`
	ItemFields   []Field `json:"itemFields"`
}

// RecordData is one row of data conforming to a FormSchema. Keys in Header
// and in each item map are the exact label strings of the owning schema.
type RecordData struct {
	Header map[string]any   `json:"header"`
	Items  []map[string]any `json:"items"`
}

// FromMap decodes a loose JSON object into a FormSchema, unwrapping a nested
// "schema" key when the model emitted one despite instructions.
func FromMap(data map[string]any) (FormSchema, error) {
	if inner, ok := data["schema"].(map[string]any); ok {
		merged := make(map[string]any, len(inner)+1)
		for k, v := range inner {
			merged[k] = v
		}
		if name, ok := data["name"].(string); ok && merged["name"] == nil {
			merged["name"] = name
		}
		data = merged
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return FormSchema{}, fmt.Errorf("marshal schema data: %w", err)
	}
	var s FormSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return FormSchema{}, fmt.Errorf("decode schema data: %w", err)
	}
	return s, nil
}

// RecordFromMap decodes a loose JSON object into RecordData. Flat payloads
// without header/items keys are wrapped into a header-only record, and the
// wrapped flag reports when that happened.
func RecordFromMap(data map[string]any) (RecordData, bool, error) {
	_, hasHeader := data["header"]
	_, hasItems := data["items"]
	if !hasHeader && !hasItems {
		flat := make(map[string]any, len(data))
		for k, v := range data {
			flat[k] = v
		}
		return RecordData{Header: flat, Items: []map[string]any{}}, true, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return RecordData{}, false, fmt.Errorf("marshal record data: %w", err)
	}
	var r RecordData
	if err := json.Unmarshal(raw, &r); err != nil {
		return RecordData{}, false, fmt.Errorf("decode record data: %w", err)
	}
	if r.Header == nil {
		r.Header = map[string]any{}
	}
	if r.Items == nil {
		r.Items = []map[string]any{}
	}
	return r, false, nil
}

const fieldIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewFieldID generates a field id in the field-<millis>-<random> shape the
// form builder clients expect.
func NewFieldID() string {
	var b strings.Builder
	for i := 0; i < 9; i++ {
		b.WriteByte(fieldIDAlphabet[rand.Intn(len(fieldIDAlphabet))])
	}
	return fmt.Sprintf("field-%d-%s", time.Now().UnixMilli(), b.String())
}

// EnsureHeaderFields guarantees a schema is never persisted without header
// fields by injecting a default free-text field, and normalizes a nil
// itemFields slice.
func EnsureHeaderFields(s *FormSchema) {
	if len(s.HeaderFields) == 0 {
		s.HeaderFields = []Field{{
			ID:       "default_1",
			Type:     "text",
			Label:    "توضیحات",
			Required: false,
		}}
	}
	if s.ItemFields == nil {
		s.ItemFields = []Field{}
	}
}

// NormalizeFieldTypes rewrites disallowed field types to the nearest allowed
// type and returns a description of every rewrite for the fix log.
func NormalizeFieldTypes(s *FormSchema) []string {
	var fixes []string
	normalize := func(fields []Field) {
		for i := range fields {
			f := &fields[i]
			if f.Type == "" || IsAllowedFieldType(f.Type) {
				continue
			}
			old := f.Type
			switch strings.ToLower(f.Type) {
			case "currency", "money":
				f.Type = "decimal"
			case "int", "whole":
				f.Type = "integer"
			default:
				f.Type = "text"
			}
			name := f.ID
			if name == "" {
				name = f.Label
			}
			fixes = append(fixes, fmt.Sprintf("نوع فیلد '%s' از '%s' به '%s' اصلاح شد", name, old, f.Type))
		}
	}
	normalize(s.HeaderFields)
	normalize(s.ItemFields)
	return fixes
}

// RemovedFields returns the fields present in old but absent (by id) from new,
// across both header and item fields.
func RemovedFields(old, new FormSchema) []Field {
	missing := func(olds, news []Field) []Field {
		var out []Field
		for _, of := range olds {
			found := false
			for _, nf := range news {
				if nf.ID == of.ID {
					found = true
					break
				}
			}
			if !found {
				out = append(out, of)
			}
		}
		return out
	}
	removed := missing(old.HeaderFields, new.HeaderFields)
	return append(removed, missing(old.ItemFields, new.ItemFields)...)
}
