package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faradid/formforge/internal/report"
	"github.com/faradid/formforge/internal/schema"
	"github.com/faradid/formforge/internal/store"
)

type fakeStore struct {
	formTypes []store.FormType
	records   []store.Record
	nextID    int
}

func (f *fakeStore) newID(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) ListFormTypes(_ context.Context, userID string) ([]store.FormType, error) {
	var out []store.FormType
	for _, ft := range f.formTypes {
		if ft.UserID == userID {
			out = append(out, ft)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateFormType(_ context.Context, userID, name string, s schema.FormSchema) (string, error) {
	id := f.newID("ft")
	f.formTypes = append(f.formTypes, store.FormType{ID: id, Name: name, Schema: s, UserID: userID})
	return id, nil
}

func (f *fakeStore) UpdateFormType(_ context.Context, userID, id, name string, s schema.FormSchema) error {
	for i := range f.formTypes {
		if f.formTypes[i].ID == id && f.formTypes[i].UserID == userID {
			f.formTypes[i].Name = name
			f.formTypes[i].Schema = s
			return nil
		}
	}
	return fmt.Errorf("form type %s not found", id)
}

func (f *fakeStore) DeleteFormType(_ context.Context, userID, id string) error {
	for i := range f.formTypes {
		if f.formTypes[i].ID == id && f.formTypes[i].UserID == userID {
			f.formTypes = append(f.formTypes[:i], f.formTypes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("form type %s not found", id)
}

func (f *fakeStore) ListRecords(_ context.Context, userID string) ([]store.Record, error) {
	var out []store.Record
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) CountRecordsByFormType(_ context.Context, userID, formTypeID string) (int, error) {
	n := 0
	for _, r := range f.records {
		if r.UserID == userID && r.FormTypeID == formTypeID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateRecord(_ context.Context, userID, formTypeID string, data schema.RecordData) (string, error) {
	id := f.newID("rec")
	f.records = append(f.records, store.Record{ID: id, FormTypeID: formTypeID, Data: data, UserID: userID})
	return id, nil
}

func (f *fakeStore) UpdateRecord(_ context.Context, userID, id string, data schema.RecordData) error {
	for i := range f.records {
		if f.records[i].ID == id && f.records[i].UserID == userID {
			f.records[i].Data = data
			return nil
		}
	}
	return fmt.Errorf("record %s not found", id)
}

func (f *fakeStore) DeleteRecord(_ context.Context, userID, id string) error {
	for i := range f.records {
		if f.records[i].ID == id && f.records[i].UserID == userID {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("record %s not found", id)
}

func newTestExecutor(f *fakeStore) *Executor {
	e := New(f)
	e.resolveDelay = 0
	return e
}

func fieldMap(id, label, typ string, required bool) map[string]any {
	return map[string]any{"id": id, "label": label, "type": typ, "required": required}
}

func formTypeData(name string, fields ...map[string]any) map[string]any {
	arr := make([]any, len(fields))
	for i, f := range fields {
		arr[i] = f
	}
	return map[string]any{
		"name":         name,
		"hasItems":     false,
		"headerFields": arr,
		"itemFields":   []any{},
	}
}

func TestExecuteCreateFormType(t *testing.T) {
	f := &fakeStore{}
	e := newTestExecutor(f)
	steps := schema.StepMap{}

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{{
		Step:   1,
		Type:   schema.ActionTypeFormType,
		Method: schema.MethodCreate,
		Data:   formTypeData("مشتریان", fieldMap("f1", "نام", "text", true), fieldMap("f2", "شماره تلفن", "text", false)),
	}}, steps, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, f.formTypes, 1)
	assert.Equal(t, "مشتریان", f.formTypes[0].Name)
	assert.Equal(t, f.formTypes[0].ID, steps[1])

	require.Len(t, res.Entries, 1)
	assert.Equal(t, report.FormTypeCreated, res.Entries[0].Kind)
	assert.Equal(t, 2, res.Entries[0].HeaderFields)
}

func TestExecuteNilStepMap(t *testing.T) {
	f := &fakeStore{}
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{{
		Step:   1,
		Type:   schema.ActionTypeFormType,
		Method: schema.MethodCreate,
		Data:   formTypeData("انبار", fieldMap("f1", "نام کالا", "text", true)),
	}}, nil, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, f.formTypes, 1)
}

func TestExecuteForwardReference(t *testing.T) {
	f := &fakeStore{}
	e := newTestExecutor(f)
	steps := schema.StepMap{}

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{
		{
			Step:   1,
			Type:   schema.ActionTypeFormType,
			Method: schema.MethodCreate,
			Data:   formTypeData("کالا", fieldMap("f1", "نام کالا", "text", true)),
		},
		{
			Step:       2,
			Type:       schema.ActionTypeRecord,
			Method:     schema.MethodCreate,
			FormTypeID: "{step_1_id}",
			Data: map[string]any{
				"header": map[string]any{"نام کالا": "لپ‌تاپ"},
				"items":  []any{},
			},
		},
	}, steps, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, f.records, 1)
	assert.Equal(t, f.formTypes[0].ID, f.records[0].FormTypeID)
	assert.NotContains(t, f.records[0].FormTypeID, "{step_")
}

func TestExecuteDuplicateRedirectsToUpdate(t *testing.T) {
	f := &fakeStore{}
	f.formTypes = append(f.formTypes, store.FormType{
		ID: "ft-existing", Name: "فاکتور فروش", UserID: "user-1",
		Schema: schema.FormSchema{Name: "فاکتور فروش", HeaderFields: []schema.Field{{ID: "f1", Label: "شماره", Type: "number", Required: true}}},
	})
	e := newTestExecutor(f)
	steps := schema.StepMap{}

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{{
		Step:   1,
		Type:   schema.ActionTypeFormType,
		Method: schema.MethodCreate,
		Data:   formTypeData("فاکتور فروش ", fieldMap("f1", "شماره", "number", true)),
	}}, steps, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, f.formTypes, 1)
	assert.Equal(t, "ft-existing", steps[1])
	require.Len(t, res.Entries, 1)
	assert.Equal(t, report.FormTypeUpdated, res.Entries[0].Kind)
}

func TestExecuteNormalizesInvalidFieldTypes(t *testing.T) {
	f := &fakeStore{}
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{{
		Step:   1,
		Type:   schema.ActionTypeFormType,
		Method: schema.MethodCreate,
		Data:   formTypeData("هزینه‌ها", fieldMap("f1", "مبلغ", "currency", true)),
	}}, schema.StepMap{}, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, f.formTypes, 1)
	assert.Equal(t, "decimal", f.formTypes[0].Schema.HeaderFields[0].Type)

	var fixes int
	for _, e := range res.Entries {
		if e.Kind == report.FixApplied {
			fixes++
		}
	}
	assert.Equal(t, 1, fixes)
}

func TestExecuteDeleteGuards(t *testing.T) {
	f := &fakeStore{}
	f.formTypes = append(f.formTypes,
		store.FormType{ID: "ft-1", Name: "انبار", UserID: "user-1"},
		store.FormType{ID: "ft-2", Name: "موقت", UserID: "user-1"},
	)
	f.records = append(f.records, store.Record{
		ID: "rec-1", FormTypeID: "ft-1", UserID: "user-1",
		Data: schema.RecordData{Header: map[string]any{"نام": "مرکزی"}},
	})
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{
		{Step: 1, Type: schema.ActionTypeFormType, Method: schema.MethodDelete, DollarID: "ft-1"},
		{Step: 2, Type: schema.ActionTypeFormType, Method: schema.MethodDelete, DollarID: "ft-2"},
	}, schema.StepMap{}, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	// ft-1 has records and survives, ft-2 is gone
	require.Len(t, f.formTypes, 1)
	assert.Equal(t, "ft-1", f.formTypes[0].ID)

	kinds := []report.Kind{res.Entries[0].Kind, res.Entries[1].Kind}
	assert.Contains(t, kinds, report.FormTypeSkipped)
	assert.Contains(t, kinds, report.FormTypeDeleted)
}

func TestExecuteDeleteReferencedRecordSkipped(t *testing.T) {
	f := &fakeStore{}
	f.records = append(f.records,
		store.Record{ID: "rec-1", FormTypeID: "ft-1", UserID: "user-1",
			Data: schema.RecordData{Header: map[string]any{"نام": "الف"}}},
		store.Record{ID: "rec-2", FormTypeID: "ft-2", UserID: "user-1",
			Data: schema.RecordData{Header: map[string]any{"مرجع": "rec-1"}}},
	)
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{
		{Step: 1, Type: schema.ActionTypeRecord, Method: schema.MethodDelete, DollarID: "rec-1"},
	}, schema.StepMap{}, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Len(t, f.records, 2)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, report.RecordSkipped, res.Entries[0].Kind)
}

func TestExecuteRecordValidationAbortsFirstPass(t *testing.T) {
	f := &fakeStore{}
	f.formTypes = append(f.formTypes, store.FormType{
		ID: "ft-1", Name: "مشتریان", UserID: "user-1",
		Schema: schema.FormSchema{Name: "مشتریان", HeaderFields: []schema.Field{{ID: "f1", Label: "نام", Type: "text", Required: true}}},
	})
	e := newTestExecutor(f)

	action := schema.Action{
		Step: 1, Type: schema.ActionTypeRecord, Method: schema.MethodCreate,
		FormTypeID: "ft-1",
		Data:       map[string]any{"header": map[string]any{}, "items": []any{}},
	}

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{action}, schema.StepMap{}, false)
	require.Error(t, err)
	var abort *ValidationAbortError
	require.ErrorAs(t, err, &abort)
	assert.False(t, res.Success)
	assert.Empty(t, f.records)

	// retry pass degrades to a per-action failure
	res, err = e.Execute(context.Background(), "user-1", []schema.Action{action}, schema.StepMap{}, true)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, f.records)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, report.Error, res.Entries[0].Kind)
}

func TestExecuteShorthandAndFlatPayload(t *testing.T) {
	f := &fakeStore{}
	f.formTypes = append(f.formTypes, store.FormType{
		ID: "ft-1", Name: "مشتریان", UserID: "user-1",
		Schema: schema.FormSchema{Name: "مشتریان", HeaderFields: []schema.Field{{ID: "f1", Label: "نام", Type: "text", Required: true}}},
	})
	e := newTestExecutor(f)

	res, err := e.Execute(context.Background(), "user-1", []schema.Action{{
		Step:       1,
		Shorthand:  "create_record",
		FormTypeID: "ft-1",
		Record:     map[string]any{"نام": "علی"},
	}}, schema.StepMap{}, false)

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, f.records, 1)
	assert.Equal(t, "علی", f.records[0].Data.Header["نام"])
}

func TestPostBatchResolveRewritesStoredSchemas(t *testing.T) {
	f := &fakeStore{}
	e := newTestExecutor(f)
	steps := schema.StepMap{}

	// step 1 references the form created at step 2
	res, err := e.Execute(context.Background(), "user-1", []schema.Action{
		{
			Step: 1, Type: schema.ActionTypeFormType, Method: schema.MethodCreate,
			Data: map[string]any{
				"name": "سند انبار", "hasItems": false,
				"headerFields": []any{map[string]any{
					"id": "f1", "label": "کالا", "type": "reference", "required": true,
					"targetFormType": "{step_2_id}", "displayField": "نام کالا",
				}},
				"itemFields": []any{},
			},
		},
		{
			Step: 2, Type: schema.ActionTypeFormType, Method: schema.MethodCreate,
			Data: formTypeData("کالا", fieldMap("f1", "نام کالا", "text", true)),
		},
	}, steps, false)

	require.NoError(t, err)
	assert.True(t, res.Success)

	var doc *store.FormType
	for i := range f.formTypes {
		if f.formTypes[i].Name == "سند انبار" {
			doc = &f.formTypes[i]
		}
	}
	require.NotNil(t, doc)
	assert.Equal(t, steps[2], doc.Schema.HeaderFields[0].TargetFormType)
	assert.NotContains(t, doc.Schema.HeaderFields[0].TargetFormType, "{step_")
}
