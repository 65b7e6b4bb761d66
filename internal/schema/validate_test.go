package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFormTypeData() map[string]any {
	return map[string]any{
		"name":     "فاکتور فروش",
		"hasItems": true,
		"headerFields": []any{
			map[string]any{"id": "f1", "type": "text", "label": "شماره فاکتور", "required": true},
			map[string]any{
				"id": "f2", "type": "reference", "label": "مشتری", "required": true,
				"targetFormType": "abc123", "displayField": "نام مشتری",
			},
		},
		"itemFields": []any{
			map[string]any{"id": "f3", "type": "decimal", "label": "مبلغ", "required": true},
		},
	}
}

func TestValidateFormType_Valid(t *testing.T) {
	assert.Empty(t, ValidateFormType(validFormTypeData(), MethodCreate))
}

func TestValidateFormType_MissingName(t *testing.T) {
	data := validFormTypeData()
	data["name"] = "  "
	errs := ValidateFormType(data, MethodCreate)
	assert.Contains(t, errs, "Missing or invalid name")
}

func TestValidateFormType_ReferenceCompleteness(t *testing.T) {
	data := validFormTypeData()
	data["headerFields"] = []any{
		map[string]any{"id": "f2", "type": "reference", "label": "مشتری", "required": true},
	}
	errs := ValidateFormType(data, MethodCreate)
	assert.Contains(t, errs, "headerFields[0]: Reference missing targetFormType")
	assert.Contains(t, errs, "headerFields[0]: Reference missing displayField")
}

func TestValidateFormType_RejectsSchemaWrapper(t *testing.T) {
	data := validFormTypeData()
	data["schema"] = map[string]any{"headerFields": []any{}}
	errs := ValidateFormType(data, MethodCreate)
	assert.Contains(t, errs, "Do not use schema wrapper; provide fields directly")
}

func TestValidateFormType_UpdateRequiresID(t *testing.T) {
	data := validFormTypeData()
	errs := ValidateFormType(data, MethodUpdate)
	assert.Contains(t, errs, "Missing or invalid $id for update")

	data["$id"] = "691e2c4a003bcc5a010d"
	assert.Empty(t, ValidateFormType(data, MethodUpdate))
}

func TestValidateFormType_InvalidFieldType(t *testing.T) {
	data := validFormTypeData()
	data["headerFields"] = []any{
		map[string]any{"id": "f1", "type": "currency", "label": "مبلغ", "required": false},
	}
	errs := ValidateFormType(data, MethodCreate)
	assert.Contains(t, errs, "headerFields[0]: Invalid type")
}

func TestValidateRecord(t *testing.T) {
	data := map[string]any{
		"header": map[string]any{"نام": "علی"},
		"items":  []any{},
	}
	act := Action{Type: ActionTypeRecord, Method: MethodCreate, FormTypeID: "ft1"}
	assert.Empty(t, ValidateRecord(data, act))

	act.FormTypeID = ""
	errs := ValidateRecord(data, act)
	assert.Contains(t, errs, "Missing formTypeId")

	act.FormTypeID = "ft1"
	act.Method = MethodUpdate
	errs = ValidateRecord(data, act)
	assert.Contains(t, errs, "Missing or invalid ID for update")
}

func TestValidateActions_PrefixesIndex(t *testing.T) {
	actions := []Action{
		{Step: 1, Type: ActionTypeFormType, Method: MethodCreate, Data: validFormTypeData()},
		{Step: 2, Type: ActionTypeFormType, Method: MethodCreate, Data: map[string]any{"hasItems": "yes"}},
	}
	errs := ValidateActions(actions)
	require.NotEmpty(t, errs)
	for _, e := range errs {
		assert.Contains(t, e, "Action 2: ")
	}
}

func TestValidateItems_Consistency(t *testing.T) {
	s := FormSchema{Name: "x", HasItems: true}
	errs := ValidateItems(s)
	assert.Contains(t, errs, "Form has hasItems:true but no itemFields defined")

	s = FormSchema{Name: "x", HasItems: false, ItemFields: []Field{{ID: "f1", Type: "text", Label: "a"}}}
	errs = ValidateItems(s)
	assert.Contains(t, errs, "Form has itemFields but hasItems is not set to true")

	s = FormSchema{Name: "x", HasItems: true, ItemFields: []Field{{ID: "f1", Type: "text", Label: "a"}}}
	assert.Empty(t, ValidateItems(s))
}

func TestValidateItems_ReferenceNeedsTarget(t *testing.T) {
	s := FormSchema{
		Name: "x", HasItems: true,
		ItemFields: []Field{{ID: "f1", Type: "reference", Label: "کالا"}},
	}
	errs := ValidateItems(s)
	assert.Contains(t, errs, "Reference field 'f1' is missing referenceTo or targetFormType attribute")
}

func TestValidateRecordData_RequiredHeader(t *testing.T) {
	s := FormSchema{
		Name:         "مشتری",
		HeaderFields: []Field{{ID: "f1", Type: "text", Label: "نام مشتری", Required: true}},
	}
	errs := ValidateRecordData(RecordData{Header: map[string]any{}}, s)
	assert.Equal(t, []string{"Field 'نام مشتری' is required but missing in header"}, errs)

	assert.Empty(t, ValidateRecordData(RecordData{Header: map[string]any{"نام مشتری": "علی"}}, s))
}

func TestValidateRecordData_RequiredItems(t *testing.T) {
	s := FormSchema{
		Name:       "فاکتور",
		HasItems:   true,
		ItemFields: []Field{{ID: "f1", Type: "decimal", Label: "مبلغ", Required: true}},
	}
	data := RecordData{
		Header: map[string]any{},
		Items:  []map[string]any{{"مبلغ": 100}, {"مبلغ": ""}},
	}
	errs := ValidateRecordData(data, s)
	assert.Equal(t, []string{"Field 'مبلغ' is required but missing in item 2"}, errs)
}

func TestFieldUnmarshal_ReferenceToAlias(t *testing.T) {
	s, err := FromMap(map[string]any{
		"name":     "سند",
		"hasItems": false,
		"headerFields": []any{
			map[string]any{"id": "f1", "type": "reference", "label": "کالا", "required": false, "referenceTo": "ft9", "displayField": "نام"},
		},
		"itemFields": []any{},
	})
	require.NoError(t, err)
	require.Len(t, s.HeaderFields, 1)
	assert.Equal(t, "ft9", s.HeaderFields[0].TargetFormType)
}

func TestFromMap_UnwrapsSchemaKey(t *testing.T) {
	s, err := FromMap(map[string]any{
		"name": "کالا",
		"schema": map[string]any{
			"hasItems":     false,
			"headerFields": []any{map[string]any{"id": "f1", "type": "text", "label": "نام", "required": true}},
			"itemFields":   []any{},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "کالا", s.Name)
	assert.Len(t, s.HeaderFields, 1)
}

func TestRecordFromMap_WrapsFlatPayload(t *testing.T) {
	r, wrapped, err := RecordFromMap(map[string]any{"نام": "علی", "تلفن": "0912"})
	require.NoError(t, err)
	assert.True(t, wrapped)
	assert.Equal(t, "علی", r.Header["نام"])
	assert.Empty(t, r.Items)

	r, wrapped, err = RecordFromMap(map[string]any{"header": map[string]any{"نام": "علی"}, "items": []any{}})
	require.NoError(t, err)
	assert.False(t, wrapped)
	assert.Equal(t, "علی", r.Header["نام"])
}

func TestNormalizeFieldTypes(t *testing.T) {
	s := FormSchema{
		HeaderFields: []Field{
			{ID: "f1", Type: "currency", Label: "مبلغ"},
			{ID: "f2", Type: "int", Label: "تعداد"},
			{ID: "f3", Type: "banana", Label: "متفرقه"},
			{ID: "f4", Type: "text", Label: "نام"},
		},
	}
	fixes := NormalizeFieldTypes(&s)
	assert.Len(t, fixes, 3)
	assert.Equal(t, "decimal", s.HeaderFields[0].Type)
	assert.Equal(t, "integer", s.HeaderFields[1].Type)
	assert.Equal(t, "text", s.HeaderFields[2].Type)
	assert.Equal(t, "text", s.HeaderFields[3].Type)
}

func TestEnsureHeaderFields(t *testing.T) {
	s := FormSchema{Name: "خالی"}
	EnsureHeaderFields(&s)
	require.Len(t, s.HeaderFields, 1)
	assert.Equal(t, "توضیحات", s.HeaderFields[0].Label)
	assert.NotNil(t, s.ItemFields)
}

func TestRemovedFields(t *testing.T) {
	old := FormSchema{
		HeaderFields: []Field{{ID: "f1", Label: "a"}, {ID: "f2", Label: "b"}},
		ItemFields:   []Field{{ID: "f3", Label: "c"}},
	}
	updated := FormSchema{
		HeaderFields: []Field{{ID: "f1", Label: "a"}},
		ItemFields:   []Field{},
	}
	removed := RemovedFields(old, updated)
	require.Len(t, removed, 2)
	assert.Equal(t, "f2", removed[0].ID)
	assert.Equal(t, "f3", removed[1].ID)
}
