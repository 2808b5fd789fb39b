package export

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/formly-platform/formly/internal/domain/model"
	"github.com/formly-platform/formly/internal/domain/schema"
)

// WriteSubmissionWord пишет заявку как HTML-документ, совместимый
// с Word (.doc). Word открывает такой файл как обычный документ;
// байтовая совместимость с OOXML не требуется.
func WriteSubmissionWord(w io.Writer, sub *model.Submission, sch *schema.Schema, formName string) error {
	titles := sch.TitleMap()

	var b strings.Builder
	b.WriteString(`<html xmlns:o="urn:schemas-microsoft-com:office:office" xmlns:w="urn:schemas-microsoft-com:office:word">`)
	b.WriteString(`<head><meta charset="utf-8"><title>`)
	b.WriteString(html.EscapeString(formName))
	b.WriteString(`</title></head><body>`)

	fmt.Fprintf(&b, `<h1>%s</h1>`, html.EscapeString(formName))
	fmt.Fprintf(&b, `<p>№ %d · %s · %s</p>`,
		sub.ID,
		html.EscapeString(sub.Status),
		sub.CreatedAt.Format("2006-01-02 15:04"))

	b.WriteString(`<table border="1" cellspacing="0" cellpadding="6" style="border-collapse:collapse">`)
	for _, key := range dataKeys(sub.Data, sch) {
		label := titles[key]
		if label == "" {
			label = key
		}
		fmt.Fprintf(&b, `<tr><td><b>%s</b></td><td>%s</td></tr>`,
			html.EscapeString(label),
			html.EscapeString(fmt.Sprint(cellValue(sub.Data[key]))))
	}
	if sub.ReviewComment != "" {
		fmt.Fprintf(&b, `<tr><td><b>Комментарий модератора</b></td><td>%s</td></tr>`,
			html.EscapeString(sub.ReviewComment))
	}
	b.WriteString(`</table></body></html>`)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("запись документа: %w", err)
	}
	return nil
}
