package schema

import "testing"

func TestInferLabel(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want string
	}{
		{"плоский label", map[string]any{"label": "姓名"}, "姓名"},
		{"title вместо label", map[string]any{"title": "标题"}, "标题"},
		{"HTML вырезается", map[string]any{"label": "<b>姓名</b>"}, "姓名"},
		{"вложенный ui.label", map[string]any{"ui": map[string]any{"label": "嵌套"}}, "嵌套"},
		{"props.title", map[string]any{"props": map[string]any{"title": "属性"}}, "属性"},
		{"i18n zh-CN", map[string]any{"i18n": map[string]any{"zh-CN": "国际化", "en": "i18n"}}, "国际化"},
		{"i18n только en", map[string]any{"i18n": map[string]any{"en": "English"}}, "English"},
		{"labelHTML-словарь", map[string]any{"labelHTML": map[string]any{"text": "富文本"}}, "富文本"},
		{"приоритет label над desc", map[string]any{"desc": "описание", "label": "подпись"}, "подпись"},
		{"пусто", map[string]any{}, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InferLabel(tt.raw); got != tt.want {
				t.Errorf("InferLabel() = %q, ожидается %q", got, tt.want)
			}
		})
	}
}

func TestHasCJK(t *testing.T) {
	if !HasCJK("姓名") {
		t.Error("HasCJK(姓名) = false")
	}
	if !HasCJK("name 姓名 mixed") {
		t.Error("HasCJK со смешанным текстом = false")
	}
	if HasCJK("latin only") {
		t.Error("HasCJK(latin only) = true")
	}
	if HasCJK("") {
		t.Error("HasCJK(\"\") = true")
	}
}

func TestColumns_CJKPolicy(t *testing.T) {
	raw := mustRaw(t, `{"fields": [
		{"key": "name", "label": "姓名", "type": "text"},
		{"key": "code", "label": "latin", "type": "text"},
		{"key": "anon", "type": "text"}
	]}`)
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() вернул ошибку: %v", err)
	}

	// По умолчанию: только колонки с CJK-подписью
	cols := s.Columns()
	if len(cols) != 1 || cols[0].Key != "name" {
		t.Fatalf("Columns() = %v, ожидается только name", cols)
	}

	// Политика отключена: латинская подпись проходит, поле без подписи — нет
	s.Labels.RequireCJK = false
	cols = s.Columns()
	if len(cols) != 2 {
		t.Fatalf("Columns() без CJK-фильтра = %v, ожидается 2 колонки", cols)
	}

	tm := s.TitleMap()
	if tm["code"] != "latin" {
		t.Errorf("TitleMap()[code] = %q", tm["code"])
	}
}

func TestColumns_Order(t *testing.T) {
	raw := mustRaw(t, `{"fields": [
		{"key": "b", "label": "乙"},
		{"key": "a", "label": "甲"}
	]}`)
	s, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() вернул ошибку: %v", err)
	}
	cols := s.Columns()
	if len(cols) != 2 || cols[0].Key != "b" || cols[1].Key != "a" {
		t.Errorf("порядок колонок должен совпадать с порядком полей: %v", cols)
	}
}
