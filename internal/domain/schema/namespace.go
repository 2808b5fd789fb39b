package schema

import (
	"regexp"
	"strings"
)

// Лимит длины идентификатора PostgreSQL.
const pgIdentMax = 63

// siteNameRe — грамматика slug'а: буквы/цифры/подчёркивание,
// не начинается с цифры.
var siteNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// nonIdentRe — всё, что не входит в [a-z0-9_].
var nonIdentRe = regexp.MustCompile(`[^a-z0-9_]`)

// underscoresRe — серии подчёркиваний.
var underscoresRe = regexp.MustCompile(`_+`)

// ValidSiteName проверяет slug по грамматике идентификатора.
func ValidSiteName(s string) bool {
	return siteNameRe.MatchString(s)
}

// DeriveNamespace выводит идентификатор пространства арендатора из slug'а.
// Чистая детерминированная функция: нижний регистр, дефисы и прочие
// символы → подчёркивание, серии подчёркиваний схлопываются, ведущая
// цифра получает префикс s_, усечение до лимита идентификатора.
// Устойчива к коллизиям на практике, но не гарантирует глобальную
// уникальность на злонамеренном вводе.
func DeriveNamespace(siteName string) string {
	s := strings.ToLower(strings.TrimSpace(siteName))
	s = strings.ReplaceAll(s, "-", "_")
	s = nonIdentRe.ReplaceAllString(s, "_")
	s = underscoresRe.ReplaceAllString(s, "_")
	if s == "" {
		return "s_default"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "s_" + s
	}
	if len(s) > pgIdentMax {
		s = s[:pgIdentMax]
	}
	return s
}
