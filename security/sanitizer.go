// Package security — проверка и очистка входящего чат-трафика:
// санитайзер, эвристический детектор угроз, валидация, rate limiter
// и объединяющий их middleware.
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strictPolicy вычищает все HTML-теги и экранирует остаточные
// спецсимволы. Политика идемпотентна: повторная очистка не меняет текст.
var strictPolicy = bluemonday.StrictPolicy()

var (
	// управляющие символы, кроме \t \n \r (их схлопнет collapse)
	controlCharsRe = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// Эвристики XSS. Детекция намеренно отделена от очистки:
// сообщение с XSS отклоняется целиком, а не «чинится» молча.
var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script\b`),
	regexp.MustCompile(`(?i)<\s*/\s*script\s*>`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=\s*["']`),
	regexp.MustCompile(`(?i)\bon\w+\s*=\s*[a-z_]+\s*\(`),
	regexp.MustCompile(`(?i)<\s*iframe\b`),
	regexp.MustCompile(`(?i)data:\s*(?:text/html|text/javascript|application/javascript|image/svg\+xml)`),
}

// Эвристики SQL-инъекций. Обычные английские фразы с одиночными
// SQL-словами («select a restaurant») флагаться не должны.
var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+(?:all\s+)?select\b`),
	regexp.MustCompile(`(?i);\s*(?:select|insert|update|delete|drop|alter|create|truncate)\b`),
	regexp.MustCompile(`'\s*--`),
	regexp.MustCompile(`/\*`),
	regexp.MustCompile(`(?i)'\s*or\s+'?\d+'?\s*=\s*'?\d+`),
}

// Словарь кодовых инъекций (eval, манипуляции с прототипами и т.п.)
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)new\s+Function\s*\(`),
	regexp.MustCompile(`__proto__`),
	regexp.MustCompile(`(?i)\.prototype\s*[.\[]`),
	regexp.MustCompile(`(?i)\bconstructor\s*\[`),
	regexp.MustCompile(`(?i)document\.cookie`),
	regexp.MustCompile(`(?i)\bFunction\s*\(\s*["']`),
}

// Sanitize очищает текст: убирает управляющие символы, вычищает HTML,
// экранирует спецсимволы и схлопывает пробельные серии в один пробел.
// Пустой или пробельный ввод превращается в пустую строку.
// Гарантируется идемпотентность: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	clean := controlCharsRe.ReplaceAllString(raw, "")
	clean = strictPolicy.Sanitize(clean)
	clean = whitespaceRe.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}

// ContainsXSS сообщает, похож ли ввод на XSS-нагрузку
func ContainsXSS(raw string) bool {
	return matchesAny(raw, xssPatterns)
}

// ContainsSQLInjection сообщает, похож ли ввод на SQL-инъекцию
func ContainsSQLInjection(raw string) bool {
	return matchesAny(raw, sqlPatterns)
}

// ContainsSuspiciousKeywords сообщает, содержит ли ввод словарь
// кодовых инъекций
func ContainsSuspiciousKeywords(raw string) bool {
	return matchesAny(raw, suspiciousPatterns)
}

func matchesAny(raw string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}
