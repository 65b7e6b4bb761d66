// Package report renders the Persian markdown operation report from typed
// execution log entries.
package report

import (
	"fmt"
	"strings"
)

// Kind identifies what a log entry describes.
type Kind string

const (
	FormTypeCreated Kind = "form_type_created"
	FormTypeUpdated Kind = "form_type_updated"
	FormTypeDeleted Kind = "form_type_deleted"
	FormTypeSkipped Kind = "form_type_skipped"
	RecordCreated   Kind = "record_created"
	RecordUpdated   Kind = "record_updated"
	RecordDeleted   Kind = "record_deleted"
	RecordSkipped   Kind = "record_skipped"
	FixApplied      Kind = "fix_applied"
	RefResolved     Kind = "reference_resolved"
	Warning         Kind = "warning"
	Error           Kind = "error"
)

// Entry is one typed execution log item. Which fields are meaningful
// depends on Kind.
type Entry struct {
	Kind         Kind
	Name         string // form-type name
	ID           string // document id
	FormTypeID   string
	FormTypeName string
	HeaderFields int
	ItemFields   int
	Reason       string // skip reason
	Message      string // fix / warning / error text
}

// Generate renders the full Persian markdown report.
func Generate(entries []Entry) string {
	var formsCreated, formsUpdated, formsDeleted, formsSkipped []Entry
	var recsCreated, recsUpdated, recsDeleted, recsSkipped []Entry
	var fixes, warnings, errors []string

	for _, e := range entries {
		switch e.Kind {
		case FormTypeCreated:
			formsCreated = append(formsCreated, e)
		case FormTypeUpdated:
			formsUpdated = append(formsUpdated, e)
		case FormTypeDeleted:
			formsDeleted = append(formsDeleted, e)
		case FormTypeSkipped:
			formsSkipped = append(formsSkipped, e)
		case RecordCreated:
			recsCreated = append(recsCreated, e)
		case RecordUpdated:
			recsUpdated = append(recsUpdated, e)
		case RecordDeleted:
			recsDeleted = append(recsDeleted, e)
		case RecordSkipped:
			recsSkipped = append(recsSkipped, e)
		case FixApplied:
			fixes = append(fixes, e.Message)
		case RefResolved:
			fixes = append(fixes, fmt.Sprintf("Resolved references for %s (%s)", e.Name, e.ID))
		case Warning:
			warnings = append(warnings, e.Message)
		case Error:
			errors = append(errors, e.Message)
		}
	}

	var b strings.Builder
	b.WriteString("# 📊 گزارش عملیات سیستم\n\n")
	b.WriteString("## 📋 خلاصه عملیات\n\n")

	totalForms := len(formsCreated) + len(formsUpdated) + len(formsDeleted)
	totalRecords := len(recsCreated) + len(recsUpdated) + len(recsDeleted)

	fmt.Fprintf(&b, "**فرم‌ها:** %d عملیات (%d ایجاد, %d به‌روزرسانی, %d حذف",
		totalForms, len(formsCreated), len(formsUpdated), len(formsDeleted))
	if len(formsSkipped) > 0 {
		fmt.Fprintf(&b, ", %d نادیده گرفته‌شده", len(formsSkipped))
	}
	b.WriteString(")\n\n")

	fmt.Fprintf(&b, "**رکوردها:** %d عملیات (%d ایجاد, %d به‌روزرسانی, %d حذف",
		totalRecords, len(recsCreated), len(recsUpdated), len(recsDeleted))
	if len(recsSkipped) > 0 {
		fmt.Fprintf(&b, ", %d نادیده گرفته‌شده", len(recsSkipped))
	}
	b.WriteString(")\n\n")

	writeFormSection(&b, "## ✅ فرم‌های جدید ایجاد شده\n\n", formsCreated, "با موفقیت ایجاد شد", true)
	writeFormSection(&b, "## 🔄 فرم‌های به‌روزرسانی شده\n\n", formsUpdated, "با موفقیت به‌روزرسانی شد", true)
	writeFormSection(&b, "## ❌ فرم‌های حذف شده\n\n", formsDeleted, "با موفقیت حذف شد", false)
	writeRecordSection(&b, "## 📝 رکورد‌های جدید ایجاد شده\n\n", recsCreated, "با موفقیت ایجاد شد")
	writeRecordSection(&b, "## 🔄 رکورد‌های به‌روزرسانی شده\n\n", recsUpdated, "با موفقیت به‌روزرسانی شد")

	if len(fixes) > 0 {
		b.WriteString("## 🔧 به‌روزرسانی‌های خودکار QA\n\n")
		for _, f := range fixes {
			fmt.Fprintf(&b, "- ✅ %s\n", f)
		}
		b.WriteString("\n")
	}
	if len(warnings) > 0 {
		b.WriteString("## ⚠️ هشدارها\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- ⚠️ %s\n", w)
		}
		b.WriteString("\n")
	}
	if len(errors) > 0 {
		b.WriteString("## ❌ خطاهای احتمالی\n\n")
		for _, e := range errors {
			fmt.Fprintf(&b, "- ❌ %s\n", e)
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n*این گزارش به صورت خودکار توسط سیستم هوشمند ایجاد شده است. برای سوالات بیشتر می‌توانید با پشتیبانی تماس بگیرید.*\n")
	return b.String()
}

func writeFormSection(b *strings.Builder, heading string, forms []Entry, status string, withFields bool) {
	if len(forms) == 0 {
		return
	}
	b.WriteString(heading)
	for _, f := range forms {
		fmt.Fprintf(b, "### 📄 %s\n", f.Name)
		fmt.Fprintf(b, "- **شناسه فرم:** `%s`\n", f.ID)
		if withFields {
			fmt.Fprintf(b, "- **فیلدهای هدر:** %d فیلد\n", f.HeaderFields)
			if f.ItemFields > 0 {
				fmt.Fprintf(b, "- **فیلدهای آیتم:** %d فیلد\n", f.ItemFields)
			}
		}
		fmt.Fprintf(b, "- **وضعیت:** %s\n\n", status)
	}
}

func writeRecordSection(b *strings.Builder, heading string, recs []Entry, status string) {
	if len(recs) == 0 {
		return
	}
	b.WriteString(heading)
	for _, r := range recs {
		fmt.Fprintf(b, "### رکورد در فرم \"%s\"\n", r.FormTypeName)
		fmt.Fprintf(b, "- **شناسه رکورد:** `%s`\n", r.ID)
		fmt.Fprintf(b, "- **شناسه فرم:** `%s`\n", r.FormTypeID)
		fmt.Fprintf(b, "- **وضعیت:** %s\n\n", status)
	}
}
