// Package apperrors — единая таксономия ошибок чат-подсистемы.
// Все структурированные ошибки создаются только фабриками этого пакета.
package apperrors

import (
	"fmt"
	"time"
)

// Category — категория ошибки, определяет политику обработки наверху.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryExternalAPI   Category = "external_api"
	CategoryBusinessLogic Category = "business_logic"
	CategorySystem        Category = "system"
	CategoryNetwork       Category = "network"
)

// Severity — серьёзность ошибки
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Code — фиксированный код ошибки. Новые коды добавляются только вместе
// с записью в catalog, иначе фабрики откажутся создавать ошибку.
type Code string

const (
	CodeInvalidMessageContent  Code = "INVALID_MESSAGE_CONTENT"
	CodeMessageTooLong         Code = "MESSAGE_TOO_LONG"
	CodeXSSDetected            Code = "XSS_DETECTED"
	CodeSQLInjectionDetected   Code = "SQL_INJECTION_DETECTED"
	CodeRateLimitExceeded      Code = "RATE_LIMIT_EXCEEDED"
	CodeWebhookUnreachable     Code = "WEBHOOK_UNREACHABLE"
	CodeWebhookTimeout         Code = "WEBHOOK_TIMEOUT"
	CodeWebhookAuthFailed      Code = "WEBHOOK_AUTH_FAILED"
	CodeWebhookRateLimited     Code = "WEBHOOK_RATE_LIMITED"
	CodeWebhookInvalidResponse Code = "WEBHOOK_INVALID_RESPONSE"
	CodeSessionExpired         Code = "SESSION_EXPIRED"
	CodeSessionNotFound        Code = "SESSION_NOT_FOUND"
	CodeSessionBlocked         Code = "SESSION_BLOCKED"
	CodeSessionLimitReached    Code = "SESSION_LIMIT_REACHED"
	CodeHistoryLoadFailed      Code = "HISTORY_LOAD_FAILED"
	CodeHistorySaveFailed      Code = "HISTORY_SAVE_FAILED"
	CodeHistoryCorrupted       Code = "HISTORY_CORRUPTED"
	CodeVoiceNotSupported      Code = "VOICE_NOT_SUPPORTED"
	CodeMicrophoneAccessDenied Code = "MICROPHONE_ACCESS_DENIED"
	CodeVoiceRecognitionFailed Code = "VOICE_RECOGNITION_FAILED"
	CodeNetworkError           Code = "NETWORK_ERROR"
	CodeChatSystemError        Code = "CHAT_SYSTEM_ERROR"
)

// catalogEntry — атрибуты, жёстко привязанные к коду ошибки.
// Severity и Retryable назначаются здесь, а не в месте вызова.
type catalogEntry struct {
	userMessage string
	category    Category
	severity    Severity
	retryable   bool
	actionable  bool
}

// catalog — полный справочник кодов. У каждого кода есть сообщение
// для пользователя по умолчанию.
var catalog = map[Code]catalogEntry{
	CodeInvalidMessageContent:  {"Сообщение содержит недопустимое содержимое, проверьте текст", CategoryValidation, SeverityLow, false, true},
	CodeMessageTooLong:         {"Сообщение слишком длинное, сократите текст", CategoryValidation, SeverityLow, false, true},
	CodeXSSDetected:            {"Сообщение содержит запрещённые элементы и было отклонено", CategoryValidation, SeverityHigh, false, false},
	CodeSQLInjectionDetected:   {"Сообщение содержит запрещённые элементы и было отклонено", CategoryValidation, SeverityHigh, false, false},
	CodeRateLimitExceeded:      {"Слишком много сообщений, подождите немного", CategoryValidation, SeverityMedium, true, true},
	CodeWebhookUnreachable:     {"Сервис временно недоступен, попробуйте ещё раз", CategoryExternalAPI, SeverityMedium, true, false},
	CodeWebhookTimeout:         {"Сервис не ответил вовремя, попробуйте ещё раз", CategoryExternalAPI, SeverityMedium, true, false},
	CodeWebhookAuthFailed:      {"Ошибка доступа к сервису, обратитесь к администратору", CategoryExternalAPI, SeverityHigh, false, false},
	CodeWebhookRateLimited:     {"Сервис перегружен, попробуйте чуть позже", CategoryExternalAPI, SeverityMedium, true, false},
	CodeWebhookInvalidResponse: {"Сервис вернул некорректный ответ, попробуйте ещё раз", CategoryExternalAPI, SeverityMedium, true, false},
	CodeSessionExpired:         {"Сессия истекла, начните новый диалог", CategoryBusinessLogic, SeverityLow, true, true},
	CodeSessionNotFound:        {"Сессия не найдена, начните новый диалог", CategoryBusinessLogic, SeverityMedium, false, true},
	CodeSessionBlocked:         {"Сессия заблокирована", CategoryBusinessLogic, SeverityHigh, false, false},
	CodeSessionLimitReached:    {"Достигнут лимит активных сессий, попробуйте позже", CategoryBusinessLogic, SeverityMedium, true, true},
	CodeHistoryLoadFailed:      {"Не удалось загрузить историю диалога", CategorySystem, SeverityMedium, true, false},
	CodeHistorySaveFailed:      {"Не удалось сохранить историю диалога", CategorySystem, SeverityMedium, true, false},
	CodeHistoryCorrupted:       {"История диалога повреждена и была сброшена", CategorySystem, SeverityHigh, false, false},
	CodeVoiceNotSupported:      {"Голосовой ввод не поддерживается вашим браузером", CategorySystem, SeverityLow, false, true},
	CodeMicrophoneAccessDenied: {"Нет доступа к микрофону, проверьте разрешения", CategorySystem, SeverityMedium, false, true},
	CodeVoiceRecognitionFailed: {"Не удалось распознать речь, попробуйте ещё раз", CategorySystem, SeverityLow, true, true},
	CodeNetworkError:           {"Проблема с сетью, проверьте подключение", CategoryNetwork, SeverityMedium, true, false},
	CodeChatSystemError:        {"Произошла внутренняя ошибка чата", CategorySystem, SeverityHigh, true, false},
}

// ErrContext — типизированный контекст ошибки. Каждая фабрика кладёт
// сюда свою структуру, поэтому набор полей известен статически.
type ErrContext interface {
	errContext()
}

// ChatAppError — структурированная ошибка приложения.
// После создания не изменяется: это запись о конкретном сбое.
type ChatAppError struct {
	Code          Code       `json:"code"`
	Message       string     `json:"message"`
	UserMessage   string     `json:"userMessage"`
	Category      Category   `json:"category"`
	Severity      Severity   `json:"severity"`
	Retryable     bool       `json:"retryable"`
	Actionable    bool       `json:"actionable"`
	SessionID     string     `json:"sessionId,omitempty"`
	MessageID     string     `json:"messageId,omitempty"`
	Context       ErrContext `json:"context,omitempty"`
	OriginalError error      `json:"-"`
	Timestamp     time.Time  `json:"timestamp"`
}

// Error реализует интерфейс error
func (e *ChatAppError) Error() string {
	if e.OriginalError != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.OriginalError)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает исходную ошибку для errors.Is / errors.As
func (e *ChatAppError) Unwrap() error {
	return e.OriginalError
}

// IsRetryable сообщает, имеет ли смысл повторять операцию.
// nil и не-ChatAppError считаются неповторяемыми.
func IsRetryable(err error) bool {
	if appErr, ok := err.(*ChatAppError); ok {
		return appErr.Retryable
	}
	return false
}

// newError собирает ошибку по справочнику. Код обязан быть известным —
// это инвариант всей таксономии.
func newError(code Code, message string, orig error) *ChatAppError {
	entry, ok := catalog[code]
	if !ok {
		// Неизвестный код — дефект вызывающего кода, деградируем в системную ошибку
		entry = catalog[CodeChatSystemError]
		message = fmt.Sprintf("неизвестный код ошибки %q: %s", code, message)
		code = CodeChatSystemError
	}
	if message == "" {
		message = entry.userMessage
	}
	return &ChatAppError{
		Code:          code,
		Message:       message,
		UserMessage:   entry.userMessage,
		Category:      entry.category,
		Severity:      entry.severity,
		Retryable:     entry.retryable,
		Actionable:    entry.actionable,
		OriginalError: orig,
		Timestamp:     time.Now(),
	}
}

// DefaultUserMessage возвращает пользовательское сообщение по коду
func DefaultUserMessage(code Code) string {
	if entry, ok := catalog[code]; ok {
		return entry.userMessage
	}
	return catalog[CodeChatSystemError].userMessage
}

// KnownCodes возвращает все зарегистрированные коды (для тестов и диагностики)
func KnownCodes() []Code {
	codes := make([]Code, 0, len(catalog))
	for code := range catalog {
		codes = append(codes, code)
	}
	return codes
}
