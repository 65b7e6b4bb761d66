package agent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/faradid/formforge/internal/gemini"
	"github.com/faradid/formforge/internal/schema"
)

//go:embed envelope_schema.json
var envelopeSchemaJSON string

// parseActionsEnvelope extracts and decodes the {actions: [...]} envelope
// from raw model output, checking it against the embedded JSON schema.
func parseActionsEnvelope(raw string) (schema.ActionsEnvelope, error) {
	text, ok := gemini.ExtractJSON(raw)
	if !ok {
		return schema.ActionsEnvelope{}, fmt.Errorf("model output contains no JSON object")
	}
	if err := validateEnvelopeShape(text); err != nil {
		return schema.ActionsEnvelope{}, err
	}
	var env schema.ActionsEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return schema.ActionsEnvelope{}, fmt.Errorf("decode actions envelope: %w", err)
	}
	return env, nil
}

// parseQAEnvelope decodes the QA stage's {validation, fixes} envelope.
func parseQAEnvelope(raw string) (schema.QAEnvelope, error) {
	text, ok := gemini.ExtractJSON(raw)
	if !ok {
		return schema.QAEnvelope{}, fmt.Errorf("model output contains no JSON object")
	}
	var env schema.QAEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return schema.QAEnvelope{}, fmt.Errorf("decode qa envelope: %w", err)
	}
	return env, nil
}

func validateEnvelopeShape(text string) error {
	schemaLoader := gojsonschema.NewStringLoader(envelopeSchemaJSON)
	documentLoader := gojsonschema.NewStringLoader(text)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validate actions envelope: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, schemaErr.String())
	}
	sort.Strings(errs)

	return fmt.Errorf("actions envelope shape invalid: %s", strings.Join(errs, "; "))
}
