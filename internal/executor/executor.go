// Package executor runs ordered mutation batches against the document store:
// per-action validation, duplicate redirection, referential delete guards,
// and forward-reference resolution through the step map.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/faradid/formforge/internal/report"
	"github.com/faradid/formforge/internal/schema"
	"github.com/faradid/formforge/internal/store"
)

// Store is the document-store surface the executor needs.
type Store interface {
	ListFormTypes(ctx context.Context, userID string) ([]store.FormType, error)
	CreateFormType(ctx context.Context, userID, name string, s schema.FormSchema) (string, error)
	UpdateFormType(ctx context.Context, userID, id, name string, s schema.FormSchema) error
	DeleteFormType(ctx context.Context, userID, id string) error
	ListRecords(ctx context.Context, userID string) ([]store.Record, error)
	CountRecordsByFormType(ctx context.Context, userID, formTypeID string) (int, error)
	CreateRecord(ctx context.Context, userID, formTypeID string, data schema.RecordData) (string, error)
	UpdateRecord(ctx context.Context, userID, id string, data schema.RecordData) error
	DeleteRecord(ctx context.Context, userID, id string) error
}

// ValidationAbortError signals that a freshly generated record failed
// schema validation and the whole batch should be regenerated rather than
// partially applied.
type ValidationAbortError struct {
	Action schema.Action
	Errors []string
}

func (e *ValidationAbortError) Error() string {
	return fmt.Sprintf("record validation failed at step %d: %s", e.Action.Step, strings.Join(e.Errors, ", "))
}

// Result is the outcome of one batch execution.
type Result struct {
	Success bool
	Entries []report.Entry
}

// Executor applies action batches sequentially. Later actions may depend on
// ids produced by earlier ones, so there is no concurrency within a batch.
type Executor struct {
	store           Store
	resolveDelay    time.Duration
	resolveAttempts int
}

// New creates an executor with the default post-resolve policy.
func New(s Store) *Executor {
	return &Executor{
		store:           s,
		resolveDelay:    1200 * time.Millisecond,
		resolveAttempts: 6,
	}
}

// WithResolvePolicy overrides the post-batch resolve loop bounds.
func (e *Executor) WithResolvePolicy(attempts int, delay time.Duration) *Executor {
	e.resolveAttempts = attempts
	e.resolveDelay = delay
	return e
}

// Execute runs the batch in ascending step order. On the first pass a record
// validation failure aborts with ValidationAbortError so the caller can
// regenerate the plan; in retry mode the same failure only fails that
// action. Entries collected before an abort are still returned.
func (e *Executor) Execute(ctx context.Context, userID string, actions []schema.Action, steps schema.StepMap, isRetry bool) (Result, error) {
	if steps == nil {
		steps = schema.StepMap{}
	}
	formTypes, err := e.store.ListFormTypes(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("list form types: %w", err)
	}
	records, err := e.store.ListRecords(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("list records: %w", err)
	}

	state := &batchState{
		userID:    userID,
		steps:     steps,
		formTypes: formTypes,
		records:   records,
		isRetry:   isRetry,
	}

	success := true
	for _, raw := range schema.SortActions(actions) {
		act := normalizeAction(raw)
		if err := e.apply(ctx, state, act); err != nil {
			success = false
			var abort *ValidationAbortError
			if errors.As(err, &abort) {
				return Result{Success: false, Entries: state.entries}, abort
			}
			log.Error().Err(err).
				Int("step", act.Step).
				Str("method", act.Method).
				Str("type", act.Type).
				Msg("action failed")
			state.entries = append(state.entries, report.Entry{Kind: report.Error, Message: err.Error()})
		}
	}

	if success && !isRetry {
		e.resolveStoredRefs(ctx, userID, steps, &state.entries)
	}
	return Result{Success: success, Entries: state.entries}, nil
}

type batchState struct {
	userID    string
	steps     schema.StepMap
	formTypes []store.FormType
	records   []store.Record
	isRetry   bool
	entries   []report.Entry
}

func (s *batchState) findFormType(id string) *store.FormType {
	for i := range s.formTypes {
		if s.formTypes[i].ID == id {
			return &s.formTypes[i]
		}
	}
	return nil
}

func (e *Executor) apply(ctx context.Context, state *batchState, act schema.Action) error {
	var entityID string
	if act.Method == schema.MethodUpdate || act.Method == schema.MethodDelete {
		entityID = extractEntityID(&act)
		entityID = resolveID(entityID, state.steps)
	}

	switch {
	case act.Method == schema.MethodDelete:
		return e.applyDelete(ctx, state, act, entityID)
	case act.Type == schema.ActionTypeFormType:
		return e.applyFormType(ctx, state, act, entityID)
	case act.Type == schema.ActionTypeRecord:
		return e.applyRecord(ctx, state, act, entityID)
	default:
		return fmt.Errorf("unknown action type %q", act.Type)
	}
}

func (e *Executor) applyDelete(ctx context.Context, state *batchState, act schema.Action, entityID string) error {
	if entityID == "" {
		return fmt.Errorf("missing id for delete, explored: id, $id, documentId")
	}

	if act.Type == schema.ActionTypeFormType {
		n, err := e.store.CountRecordsByFormType(ctx, state.userID, entityID)
		if err != nil {
			return fmt.Errorf("check form type references: %w", err)
		}
		name := "Unknown"
		if ft := state.findFormType(entityID); ft != nil {
			name = ft.Name
		}
		if n > 0 {
			state.entries = append(state.entries, report.Entry{
				Kind:   report.FormTypeSkipped,
				Name:   name,
				Reason: "Form type has associated records - delete skipped",
			})
			return nil
		}
		if err := e.store.DeleteFormType(ctx, state.userID, entityID); err != nil {
			return fmt.Errorf("delete form type: %w", err)
		}
		state.entries = append(state.entries, report.Entry{Kind: report.FormTypeDeleted, Name: name, ID: entityID})
		return nil
	}

	formTypeID := "Unknown"
	for _, r := range state.records {
		if r.ID == entityID {
			formTypeID = r.FormTypeID
			break
		}
	}
	if recordIsReferenced(entityID, state.records) {
		state.entries = append(state.entries, report.Entry{
			Kind:       report.RecordSkipped,
			ID:         entityID,
			FormTypeID: formTypeID,
			Reason:     "Record is referenced elsewhere - delete skipped",
		})
		return nil
	}
	if err := e.store.DeleteRecord(ctx, state.userID, entityID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	state.entries = append(state.entries, report.Entry{Kind: report.RecordDeleted, ID: entityID, FormTypeID: formTypeID})
	return nil
}

func (e *Executor) applyFormType(ctx context.Context, state *batchState, act schema.Action, entityID string) error {
	if act.Data == nil {
		return fmt.Errorf("missing data for form_type")
	}
	data := resolveTolerant(act.Data, state.steps)

	s, err := schema.FromMap(data)
	if err != nil {
		return err
	}
	for _, fix := range schema.NormalizeFieldTypes(&s) {
		state.entries = append(state.entries, report.Entry{Kind: report.FixApplied, Message: fix})
	}
	if itemErrs := schema.ValidateItems(s); len(itemErrs) > 0 {
		return fmt.Errorf("item validation failed: %s", strings.Join(itemErrs, ", "))
	}

	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("missing name for form_type")
	}
	schema.EnsureHeaderFields(&s)

	switch act.Method {
	case schema.MethodUpdate:
		if entityID == "" {
			return fmt.Errorf("missing documentId or $id for form_type update")
		}
		if old := state.findFormType(entityID); old != nil {
			removed := schema.RemovedFields(old.Schema, s)
			if len(removed) > 0 && e.fieldsHoldData(entityID, removed, state.records) {
				state.entries = append(state.entries, report.Entry{
					Kind:    report.Warning,
					Message: fmt.Sprintf("Removing fields with existing data in %q - proceed with caution", name),
				})
			}
		}
		if err := e.store.UpdateFormType(ctx, state.userID, entityID, name, s); err != nil {
			return fmt.Errorf("update form type: %w", err)
		}
		state.rememberFormType(entityID, name, s)
		state.entries = append(state.entries, formTypeEntry(report.FormTypeUpdated, name, entityID, s))
		return nil

	case schema.MethodCreate:
		existing := make([]schema.NamedSchema, len(state.formTypes))
		for i, ft := range state.formTypes {
			existing[i] = schema.NamedSchema{ID: ft.ID, Name: ft.Name, Schema: ft.Schema}
		}
		if dup := schema.FindDuplicate(existing, name, s); dup != nil {
			if err := e.store.UpdateFormType(ctx, state.userID, dup.ID, name, s); err != nil {
				return fmt.Errorf("update existing form type: %w", err)
			}
			state.steps[act.Step] = dup.ID
			state.rememberFormType(dup.ID, name, s)
			state.entries = append(state.entries, formTypeEntry(report.FormTypeUpdated, name, dup.ID, s))
			return nil
		}
		id, err := e.store.CreateFormType(ctx, state.userID, name, s)
		if err != nil {
			return fmt.Errorf("create form type: %w", err)
		}
		state.steps[act.Step] = id
		state.rememberFormType(id, name, s)
		state.entries = append(state.entries, formTypeEntry(report.FormTypeCreated, name, id, s))
		return nil

	default:
		return fmt.Errorf("unknown method %q for form_type", act.Method)
	}
}

func (e *Executor) applyRecord(ctx context.Context, state *batchState, act schema.Action, entityID string) error {
	if act.Data == nil {
		return fmt.Errorf("missing data for record")
	}
	data := resolveTolerant(act.Data, state.steps)

	formTypeID := act.FormTypeID
	if formTypeID == "" {
		formTypeID = act.DocumentID
	}
	if formTypeID == "" {
		formTypeID, _ = data["formTypeId"].(string)
	}
	if formTypeID == "" {
		formTypeID, _ = data["form_type_id"].(string)
	}
	if formTypeID == "" {
		return fmt.Errorf("missing formTypeId for record")
	}
	resolved, err := schema.Resolve(formTypeID, state.steps)
	if err != nil {
		return err
	}
	formTypeID = resolved.(string)

	ft := state.findFormType(formTypeID)
	if ft == nil {
		return fmt.Errorf("form type with ID %s not found", formTypeID)
	}

	delete(data, "formTypeId")
	delete(data, "form_type_id")
	stripIDAliases(data)

	rec, wrapped, err := schema.RecordFromMap(data)
	if err != nil {
		return err
	}
	if wrapped {
		log.Debug().Str("form_type", ft.Name).Msg("wrapped flat record payload into header structure")
	}

	if valErrs := schema.ValidateRecordData(rec, ft.Schema); len(valErrs) > 0 {
		if state.isRetry {
			return fmt.Errorf("record validation failed after retry: %s", strings.Join(valErrs, ", "))
		}
		state.entries = append(state.entries, report.Entry{
			Kind:    report.Warning,
			Message: fmt.Sprintf("Validation failed for %s: %s. Will retry with AI fix.", ft.Name, strings.Join(valErrs, ", ")),
		})
		return &ValidationAbortError{Action: act, Errors: valErrs}
	}

	switch act.Method {
	case schema.MethodCreate:
		id, err := e.store.CreateRecord(ctx, state.userID, formTypeID, rec)
		if err != nil {
			return fmt.Errorf("create record: %w", err)
		}
		state.steps[act.Step] = id
		state.records = append(state.records, store.Record{ID: id, FormTypeID: formTypeID, Data: rec, UserID: state.userID})
		state.entries = append(state.entries, report.Entry{
			Kind: report.RecordCreated, ID: id, FormTypeID: formTypeID, FormTypeName: ft.Name,
		})
		return nil

	case schema.MethodUpdate:
		if entityID == "" {
			return fmt.Errorf("missing required parameter for update: documentId")
		}
		if err := e.store.UpdateRecord(ctx, state.userID, entityID, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		state.entries = append(state.entries, report.Entry{
			Kind: report.RecordUpdated, ID: entityID, FormTypeID: formTypeID, FormTypeName: ft.Name,
		})
		return nil

	default:
		return fmt.Errorf("unknown method %q for record", act.Method)
	}
}

// ResolveRefs runs one more resolve pass over all stored schemas against the
// final step map. Used after QA fixes have been applied.
func (e *Executor) ResolveRefs(ctx context.Context, userID string, steps schema.StepMap) []report.Entry {
	var entries []report.Entry
	e.resolveStoredRefs(ctx, userID, steps, &entries)
	return entries
}

// resolveStoredRefs re-reads stored schemas and rewrites any placeholder
// that has since gained a step-map entry. A schema created early in the
// batch may reference an entity created later, so resolution is retried a
// few times until a pass makes no progress.
func (e *Executor) resolveStoredRefs(ctx context.Context, userID string, steps schema.StepMap, entries *[]report.Entry) {
	for attempt := 0; attempt < e.resolveAttempts; attempt++ {
		forms, err := e.store.ListFormTypes(ctx, userID)
		if err != nil {
			log.Warn().Err(err).Msg("post-resolve list failed")
			return
		}
		updated := false
		for _, form := range forms {
			resolved, changed, err := schema.ResolveSchema(form.Schema, steps)
			if err != nil || !changed {
				continue
			}
			if err := e.store.UpdateFormType(ctx, userID, form.ID, form.Name, resolved); err != nil {
				log.Warn().Err(err).Str("id", form.ID).Msg("post-resolve update failed")
				continue
			}
			updated = true
			*entries = append(*entries, report.Entry{Kind: report.RefResolved, Name: form.Name, ID: form.ID})
		}
		if !updated {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.resolveDelay):
		}
	}
	*entries = append(*entries, report.Entry{
		Kind:    report.Error,
		Message: fmt.Sprintf("Post-resolve failed after %d attempts", e.resolveAttempts),
	})
}

func (e *Executor) fieldsHoldData(formTypeID string, removed []schema.Field, records []store.Record) bool {
	for _, r := range records {
		if r.FormTypeID != formTypeID {
			continue
		}
		for _, f := range removed {
			if v, ok := r.Data.Header[f.Label]; ok && !emptyValue(v) {
				return true
			}
			for _, item := range r.Data.Items {
				if v, ok := item[f.Label]; ok && !emptyValue(v) {
					return true
				}
			}
		}
	}
	return false
}

func (s *batchState) rememberFormType(id, name string, formSchema schema.FormSchema) {
	for i := range s.formTypes {
		if s.formTypes[i].ID == id {
			s.formTypes[i].Name = name
			s.formTypes[i].Schema = formSchema
			return
		}
	}
	s.formTypes = append(s.formTypes, store.FormType{ID: id, Name: name, Schema: formSchema, UserID: s.userID})
}

// recordIsReferenced reports whether any other record's serialized payload
// contains the id. A textual hit anywhere counts as a reference.
func recordIsReferenced(id string, records []store.Record) bool {
	for _, r := range records {
		if r.ID == id {
			continue
		}
		raw, err := json.Marshal(r.Data)
		if err != nil {
			continue
		}
		if strings.Contains(string(raw), id) {
			return true
		}
	}
	return false
}

func formTypeEntry(kind report.Kind, name, id string, s schema.FormSchema) report.Entry {
	return report.Entry{
		Kind:         kind,
		Name:         name,
		ID:           id,
		HeaderFields: len(s.HeaderFields),
		ItemFields:   len(s.ItemFields),
	}
}

func emptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func resolveID(id string, steps schema.StepMap) string {
	if id == "" {
		return id
	}
	resolved, err := schema.Resolve(id, steps)
	if err != nil {
		return id
	}
	if s, ok := resolved.(string); ok {
		return s
	}
	return id
}
