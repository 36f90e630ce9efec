// Package templates — движок плейсхолдеров шаблонов уведомлений:
// извлечение переменных, предпросмотр с подстановкой и валидация
// по каталогу переменных канала. Только чистые функции.
package templates

import (
	"fmt"
	"regexp"
	"strings"

	"visionchatserver/models"
)

// Syntax — синтаксис плейсхолдеров. В системе сосуществуют два:
// {{variable}} в шаблонах уведомлений и [variable] в шаблонах
// сообщений админки. Объединять их нельзя — оба сохраняются
// как настраиваемые варианты.
type Syntax string

const (
	SyntaxCurly   Syntax = "curly"   // {{variable}}
	SyntaxBracket Syntax = "bracket" // [variable]
)

var syntaxRe = map[Syntax]*regexp.Regexp{
	SyntaxCurly:   regexp.MustCompile(`\{\{\s*([a-zA-Z][a-zA-Z0-9_]*)\s*\}\}`),
	SyntaxBracket: regexp.MustCompile(`\[([a-zA-Z][a-zA-Z0-9_]*)\]`),
}

// unknownMark визуально помечает нераспознанный плейсхолдер в предпросмотре,
// чтобы автор шаблона заметил опечатку
const unknownMark = "⚠️"

// ExtractVariables возвращает имена переменных в порядке первого
// появления, без дубликатов. Без явных синтаксисов ищется {{variable}}.
func ExtractVariables(text string, syntaxes ...Syntax) []string {
	if len(syntaxes) == 0 {
		syntaxes = []Syntax{SyntaxCurly}
	}

	seen := make(map[string]struct{})
	var names []string
	for _, syntax := range syntaxes {
		re, ok := syntaxRe[syntax]
		if !ok {
			continue
		}
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			name := match[1]
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// GeneratePreview подставляет значения в плейсхолдеры. Нераспознанные
// переменные не выбрасываются молча, а помечаются в тексте.
func GeneratePreview(text string, data map[string]string, syntaxes ...Syntax) string {
	if len(syntaxes) == 0 {
		syntaxes = []Syntax{SyntaxCurly}
	}

	out := text
	for _, syntax := range syntaxes {
		re, ok := syntaxRe[syntax]
		if !ok {
			continue
		}
		out = re.ReplaceAllStringFunc(out, func(placeholder string) string {
			name := re.FindStringSubmatch(placeholder)[1]
			if value, ok := data[name]; ok {
				return value
			}
			return fmt.Sprintf("%s%s%s", unknownMark, name, unknownMark)
		})
	}
	return out
}

// FieldError — одно замечание валидации шаблона
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateTemplate проверяет шаблон: обязательные поля, тему для email
// и соответствие переменных каталогу канала. Порядок замечаний стабилен.
func ValidateTemplate(tpl models.NotificationTemplate) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(tpl.Name) == "" {
		errs = append(errs, FieldError{"name", "название шаблона обязательно"})
	}
	if strings.TrimSpace(tpl.Content) == "" {
		errs = append(errs, FieldError{"content", "текст шаблона обязателен"})
	}
	if tpl.Type == models.TemplateTypeEmail && strings.TrimSpace(tpl.Subject) == "" {
		errs = append(errs, FieldError{"subject", "для email-шаблона обязательна тема"})
	}

	known := knownNames()
	for _, name := range ExtractVariables(tpl.Subject) {
		if _, ok := known[name]; !ok {
			errs = append(errs, FieldError{"subject",
				fmt.Sprintf("неизвестная переменная {{%s}}", name)})
		}
	}
	used := make(map[string]struct{})
	for _, name := range ExtractVariables(tpl.Content) {
		used[name] = struct{}{}
		if _, ok := known[name]; !ok {
			errs = append(errs, FieldError{"content",
				fmt.Sprintf("неизвестная переменная {{%s}}", name)})
		}
	}

	// Обязательные переменные канала должны присутствовать в тексте
	for _, name := range requiredByType[tpl.Type] {
		if _, ok := used[name]; !ok {
			errs = append(errs, FieldError{"content",
				fmt.Sprintf("обязательная переменная {{%s}} не используется", name)})
		}
	}

	return errs
}
