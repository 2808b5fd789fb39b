package schema

import (
	"regexp"
	"strings"
)

// Column — колонка admin-консоли, выведенная из схемы.
type Column struct {
	// Key — ключ поля в JSON заявки
	Key string `json:"key"`
	// Label — человекочитаемая подпись
	Label string `json:"label"`
	// Type — тип поля
	Type string `json:"type"`
}

// htmlTagRe — HTML-теги, вырезаемые из подписей.
var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// cjkRe — символы CJK Unified Ideographs.
var cjkRe = regexp.MustCompile(`[\x{4e00}-\x{9fff}]`)

// HasCJK сообщает, содержит ли текст CJK-символы.
func HasCJK(text string) bool {
	return cjkRe.MatchString(text)
}

// labelCandidateKeys — плоские ключи-кандидаты подписи, в порядке приоритета.
// Покрывает схемы разных конструкторов форм.
var labelCandidateKeys = []string{
	"label", "title", "text", "name", "placeholder", "question",
	"displayName", "desc", "description",
}

// nestedLabelKeys — вложенные объекты, внутри которых ищется подпись.
var nestedLabelKeys = []string{"ui", "props", "meta"}

// i18nObjectKeys — ключи, значение которых может быть i18n-словарём.
var i18nObjectKeys = []string{"i18n", "labelHTML", "label", "title", "question"}

// i18nLangKeys — языковые ключи i18n-словаря, в порядке приоритета.
var i18nLangKeys = []string{"zh-CN", "zh_CN", "zh-cn", "zh", "text", "title", "label", "question", "en"}

// Columns выводит колонки консоли из полей схемы.
// Порядок — порядок объявления полей. Поля без подписи пропускаются;
// при Labels.RequireCJK пропускаются и поля без CJK-символов в подписи.
func (s *Schema) Columns() []Column {
	var cols []Column
	for _, f := range s.Fields {
		label := InferLabel(f.Raw)
		if label == "" {
			continue
		}
		if s.Labels.RequireCJK && !HasCJK(label) {
			continue
		}
		cols = append(cols, Column{Key: f.Key, Label: label, Type: string(f.Kind)})
	}
	return cols
}

// TitleMap возвращает отображение ключ → подпись для колонок.
func (s *Schema) TitleMap() map[string]string {
	cols := s.Columns()
	m := make(map[string]string, len(cols))
	for _, c := range cols {
		m[c.Key] = c.Label
	}
	return m
}

// InferLabel выводит подпись поля из исходного JSON-объекта.
// Проверяет плоские ключи, вложенные ui/props/meta и i18n-словари;
// HTML-теги вырезаются. Пустая строка — подпись не найдена.
func InferLabel(raw map[string]any) string {
	if raw == nil {
		return ""
	}

	for _, k := range labelCandidateKeys {
		if t := cleanLabel(raw[k]); t != "" {
			return t
		}
	}

	for _, nk := range nestedLabelKeys {
		if obj, ok := raw[nk].(map[string]any); ok {
			for _, k := range []string{"label", "title"} {
				if t := cleanLabel(obj[k]); t != "" {
					return t
				}
			}
		}
	}

	// i18n / богатые подписи
	for _, k := range i18nObjectKeys {
		obj, ok := raw[k].(map[string]any)
		if !ok {
			continue
		}
		for _, lang := range i18nLangKeys {
			if t := cleanLabel(obj[lang]); t != "" {
				return t
			}
		}
	}

	return ""
}

// cleanLabel вырезает HTML-теги и пробелы из строкового значения.
func cleanLabel(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}
