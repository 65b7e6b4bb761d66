package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSummaryCounts(t *testing.T) {
	md := Generate([]Entry{
		{Kind: FormTypeCreated, Name: "فاکتور فروش", ID: "ft-1", HeaderFields: 4, ItemFields: 3},
		{Kind: FormTypeUpdated, Name: "انبار", ID: "ft-2", HeaderFields: 2},
		{Kind: RecordCreated, ID: "rec-1", FormTypeID: "ft-1", FormTypeName: "فاکتور فروش"},
	})

	assert.Contains(t, md, "# 📊 گزارش عملیات سیستم")
	assert.Contains(t, md, "**فرم‌ها:** 2 عملیات (1 ایجاد, 1 به‌روزرسانی, 0 حذف)")
	assert.Contains(t, md, "**رکوردها:** 1 عملیات (1 ایجاد, 0 به‌روزرسانی, 0 حذف)")
	assert.Contains(t, md, "### 📄 فاکتور فروش")
	assert.Contains(t, md, "- **فیلدهای آیتم:** 3 فیلد")
	assert.Contains(t, md, "رکورد در فرم \"فاکتور فروش\"")
}

func TestGenerateSkippedAppearsOnlyWhenPresent(t *testing.T) {
	md := Generate([]Entry{
		{Kind: FormTypeCreated, Name: "الف", ID: "ft-1", HeaderFields: 1},
	})
	assert.NotContains(t, md, "نادیده گرفته‌شده")

	md = Generate([]Entry{
		{Kind: FormTypeSkipped, Name: "الف", Reason: "duplicate"},
	})
	assert.Contains(t, md, "1 نادیده گرفته‌شده")
}

func TestGenerateFixWarningErrorSections(t *testing.T) {
	md := Generate([]Entry{
		{Kind: FixApplied, Message: "نوع فیلد مبلغ به decimal اصلاح شد"},
		{Kind: RefResolved, Name: "فاکتور فروش", ID: "ft-9"},
		{Kind: Warning, Message: "فیلد حذف شده"},
		{Kind: Error, Message: "Action 2: خطا"},
	})

	assert.Contains(t, md, "## 🔧 به‌روزرسانی‌های خودکار QA")
	assert.Contains(t, md, "- ✅ نوع فیلد مبلغ به decimal اصلاح شد")
	assert.Contains(t, md, "Resolved references for فاکتور فروش (ft-9)")
	assert.Contains(t, md, "## ⚠️ هشدارها")
	assert.Contains(t, md, "## ❌ خطاهای احتمالی")
	assert.Contains(t, md, "*این گزارش به صورت خودکار توسط سیستم هوشمند ایجاد شده است")
}

func TestGenerateEmptyEntries(t *testing.T) {
	md := Generate(nil)
	assert.Contains(t, md, "**فرم‌ها:** 0 عملیات")
	assert.NotContains(t, md, "## ✅")
	assert.NotContains(t, md, "## 🔧")
}
