package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/faradid/formforge/internal/schema"
	"github.com/faradid/formforge/internal/store"
)

// Worked samples appended to generation prompts so the model copies the
// exact field and record shapes.
var sampleFormType = schema.FormSchema{
	Name:     "فرم نمونه جدید",
	HasItems: true,
	HeaderFields: []schema.Field{
		{ID: "field-1762897563897-gez01r05y", Type: "text", Label: "فیلد متنی", Required: false},
		{ID: "field-1762897571646-d0xuus90j", Type: "number", Label: "فیلد عددی", Required: true},
	},
	ItemFields: []schema.Field{
		{ID: "field-1762897581100-fiwttyvl8", Type: "number", Label: "فیلد عددی در قلم", Required: true},
		{ID: "field-1762897655430-xhqdr5k8a", Type: "reference", Label: "ارجاع به سند حسابداری", Required: false,
			TargetFormType: "69139ddc00355ecb8228", DisplayField: "1"},
	},
}

var sampleRecord = schema.RecordData{
	Header: map[string]any{"فیلد متنی": "ثصق", "فیلد عددی": 15},
	Items:  []map[string]any{{"فیلد عددی در قلم": 45, "ارجاع به سند حسابداری": ""}},
}

// ExamplesTokenEstimate approximates the prompt-token cost of the embedded
// worked samples, reported back to the caller in the API stats.
const ExamplesTokenEstimate = 400

type promptContext struct {
	userInput   string
	chatHistory string
	formTypes   []store.FormType
	records     []store.Record
}

func (p promptContext) formTypesJSON() string {
	type view struct {
		ID     string            `json:"$id"`
		Name   string            `json:"name"`
		Schema schema.FormSchema `json:"schema"`
	}
	views := make([]view, len(p.formTypes))
	for i, ft := range p.formTypes {
		views[i] = view{ID: ft.ID, Name: ft.Name, Schema: ft.Schema}
	}
	return mustJSON(views)
}

// records grouped by owning form type, mirroring what the model saw when
// the existing data was created
func (p promptContext) groupedRecordsJSON() string {
	type view struct {
		ID   string            `json:"$id"`
		Data schema.RecordData `json:"data"`
	}
	grouped := map[string][]view{}
	for _, r := range p.records {
		grouped[r.FormTypeID] = append(grouped[r.FormTypeID], view{ID: r.ID, Data: r.Data})
	}
	return mustJSON(grouped)
}

func buildStructurePrompt(p promptContext) string {
	var b strings.Builder
	b.WriteString(`You are a senior software architect and enterprise systems specialist (CRM, ERP, business applications). The user requests a form or system. Think holistically and scalably, and add industry-standard details the user did not mention (created dates, creator users, status fields, relationships between forms).

**Key Structure Rules:**
- For each main document/form (e.g., inventory document, sales invoice), create only ONE form_type containing both headerFields (form header) and itemFields (line items). Use hasItems: true to enable line items.
- headerFields and itemFields must be in the SAME form_type, not separate forms. Items are part of the document.
- Create base forms (products, warehouses, customers) separately, and reference them in header/itemFields using reference type.
- If the user requests editing (words like "edit", "update", "modify"), update existing forms instead of creating new ones. Identify and delete duplicates.
- Relationships: use reference fields to link to other forms. Only delete entities that are not referenced.

`)
	fmt.Fprintf(&b, "### Conversation History:\n%s\n\n", p.chatHistory)
	fmt.Fprintf(&b, "### User Message:\n%q\n\n", p.userInput)
	fmt.Fprintf(&b, "### Existing Forms:\n%s\n\n", p.formTypesJSON())
	fmt.Fprintf(&b, "### Existing Records:\n%s\n\n", p.groupedRecordsJSON())
	b.WriteString(`### Instructions:
- Provide a detailed description of the proposed structure: how many form_types are needed, and for each one, which headerFields and itemFields, and how they reference each other.
- For complex requests like "build a CRM", break down modules: Customers, Contacts, Opportunities, Sales, Reports.
- Follow enterprise standards: required fields, validation, scalability.
- Output only descriptive Persian text, no JSON or code blocks.
`)
	return b.String()
}

func buildSchemaPrompt(p promptContext, structureDescription string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an intelligent assistant for dynamic form creation. **Output ONLY JSON**. Based on the structure description below, create forms with depth and detail. Each field type must be exactly from this allowed list: %s. If an invalid type is suggested, replace it with 'text' or 'number'.

**Key Rules:**
- For each main document, create ONLY ONE form_type action with hasItems: true, headerFields for the document header, and itemFields for line items. Header and items must NOT be separated.
- Create base forms (products, employees, customers) in early steps, then the main form in later steps with references to them using {step_X_id} or an existing $id.
- If the user requests editing, use method: "update" with the existing $id instead of creating new. Avoid duplicates.
- For form_type create, data must NOT include $id and must have "name", "hasItems", "headerFields", "itemFields" directly (no 'schema' wrapper). Always include a meaningful Persian "name".
- For record create/update, use "formTypeId" (NOT "documentId") and wrap the payload as {"header": {...}, "items": [...]}. Keys MUST be the exact Persian labels from the schema fields, never field ids.

### Strict Rules:
1. Any form with line items gets hasItems:true and its line item fields in itemFields, in the SAME form_type.
2. Any field that is a list (products, personnel, customers) becomes a SEPARATE form_type in a lower step, referenced with {step_X_id} or an existing $id using type 'reference'.
3. Base forms come FIRST (step 1, 2, ...), dependent forms after them.
4. At least 2-3 required fields per form_type, with depth (options for select, validation).
5. Output ONLY this JSON shape, no extra text:

{
  "actions": [
    {"step": 1, "type": "form_type", "method": "create", "data": {"name": "...", "hasItems": true, "headerFields": [...], "itemFields": [...]}},
    {"step": 2, "type": "record", "method": "create", "formTypeId": "{step_1_id}", "data": {"header": {...}, "items": [...]}}
  ]
}

Correct form type sample: %s
Correct record sample: %s
For field ids, generate unique strings shaped like 'field-' + timestamp + '-' + random alphanumeric (e.g. 'field-1762948862951-1djg12twe'). Always start form_type data with the "name" key.

### VERY IMPORTANT FOR UPDATE ACTIONS:
When updating an existing form you MUST include its real "$id" on the action, looked up from the Existing Forms list.

`, strings.Join(schema.AllowedFieldTypes, ", "), mustJSON(sampleFormType), mustJSON(sampleRecord))

	fmt.Fprintf(&b, "### Structure Description:\n%s\n\n", structureDescription)
	fmt.Fprintf(&b, "### Conversation History:\n%s\n\n", p.chatHistory)
	fmt.Fprintf(&b, "### User Message:\n%q\n\n", p.userInput)
	fmt.Fprintf(&b, "### Existing Forms:\n%s\n\n", p.formTypesJSON())
	fmt.Fprintf(&b, "### Existing Records:\n%s\n", p.groupedRecordsJSON())
	return b.String()
}

func appendStructureErrors(prompt string, previous any, errs []string) string {
	return prompt + fmt.Sprintf(`
### Previous Output and Structure Issues:
This was your answer: %s
You should fix these structure issues: %s alongside other checks. Ensure every form_type data starts with "name".
`, mustJSON(previous), strings.Join(errs, ", "))
}

func appendExecutionFailure(prompt string, previous any, failure string) string {
	return prompt + fmt.Sprintf(`
### Previous Output and Issues:
Here is your output the last time we asked you to do this:
%s

Here is what is wrong with it and needs fixing:
- Ensure "name" is always present and first in form_type data objects.
- Placeholders like {step_X_id} were not resolved properly in some cases.
- %s
Please correct these issues in the new output.
`, mustJSON(previous), failure)
}

func buildQAPrompt(p promptContext, executed []schema.Action, steps schema.StepMap, midReport string) string {
	type recordView struct {
		ID         string   `json:"$id"`
		FormTypeID string   `json:"formTypeId"`
		HeaderKeys []string `json:"headerKeys"`
	}
	recViews := make([]recordView, 0, 10)
	for _, r := range p.records {
		if len(recViews) == 10 {
			break
		}
		keys := make([]string, 0, len(r.Data.Header))
		for k := range r.Data.Header {
			keys = append(keys, k)
		}
		recViews = append(recViews, recordView{ID: r.ID, FormTypeID: r.FormTypeID, HeaderKeys: keys})
	}

	var b strings.Builder
	b.WriteString(`You are the FINAL QA Engineer for this dynamic forms system.

Your ONLY job: find real bugs in the executed actions and give 100% correct fixes.

### REAL-TIME DATABASE STATE (THIS IS TRUTH):
Current Form Types (with real $id and current schema):
`)
	b.WriteString(p.formTypesJSON())
	fmt.Fprintf(&b, "\n\nCurrent Records (first 10 for context):\n%s\n\n", mustJSON(recViews))
	fmt.Fprintf(&b, "### Actions That Were Executed:\n%s\n\n", mustJSON(executed))
	fmt.Fprintf(&b, "### Step Map (What Was Created):\n%s\n\n", mustJSON(steps))
	fmt.Fprintf(&b, "### Execution Report:\n%s\n\n", midReport)
	fmt.Fprintf(&b, `### Rules (100%% Enforced):
1. Reference fields must use a real $id or {step_X_id}
2. required: true fields must have values in existing records
3. Form type integrity: name first, hasItems matches itemFields, no duplicates
4. Step ordering: base forms before main forms
5. Record keys MUST be exact Persian labels, never field ids

### PERFECT EXAMPLES (Follow Exactly):
Form type example: %s
Record example: %s

### Output ONLY this JSON (no extra text):
{
  "validation": {"is_valid": true, "critical_issues": [], "warnings": []},
  "fixes": [
    {"step": 999, "type": "form_type", "method": "update", "$id": "...", "data": {"name": "...", "hasItems": false, "headerFields": [...]}}
  ]
}
`, mustJSON(sampleFormType), mustJSON(sampleRecord))
	return b.String()
}

func appendFixErrors(prompt string, errs []string) string {
	return prompt + fmt.Sprintf("\n\n### Your previous fixes had these errors: %s\nFix them now.\n", strings.Join(errs, ", "))
}

func mustJSON(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(raw)
}
