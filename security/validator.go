package security

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"visionchatserver/models"
)

// MaxMessageLength — максимальная длина сообщения чата в символах
const MaxMessageLength = 1000

// Коды отказа валидации. Это не коды таксономии apperrors:
// терминальную ошибку из них собирает middleware.
const (
	FailNotAString      = "NOT_A_STRING"
	FailEmpty           = "EMPTY"
	FailTooLong         = "TOO_LONG"
	FailXSS             = "XSS_DETECTED"
	FailSQLInjection    = "SQL_INJECTION_DETECTED"
	FailSuspicious      = "SUSPICIOUS_CONTENT"
	FailInvalidSession  = "INVALID_SESSION_ID"
	FailInvalidUserType = "INVALID_USER_TYPE"
	FailInvalidTime     = "INVALID_TIMESTAMP"
	FailNotAnObject     = "NOT_AN_OBJECT"
	FailNoSuccessField  = "MISSING_SUCCESS_FIELD"
)

// Формат идентификатора сессии: chat_<scope>_<token>
var sessionIDRe = regexp.MustCompile(`^chat_(public|admin)_[A-Za-z0-9][A-Za-z0-9_-]*$`)

// MessageResult — результат валидации сообщения. Валидация никогда
// не паникует и не возвращает error: отказ — это обычное значение.
type MessageResult struct {
	Valid   bool
	Value   string // очищенное сообщение при Valid == true
	Code    string // код отказа при Valid == false
	Message string // человекочитаемое описание отказа
}

// RequestResult — результат валидации запроса к автоматизации
type RequestResult struct {
	Valid   bool
	Request *models.N8nChatRequest
	Code    string
	Message string
}

// ResponseResult — результат валидации ответа автоматизации
type ResponseResult struct {
	Valid    bool
	Response *models.N8nChatResponse
	Code     string
	Message  string
}

func failMessage(code, message string) MessageResult {
	return MessageResult{Code: code, Message: message}
}

// ValidateAndSanitizeMessage проверяет и очищает текст сообщения.
// Порядок проверок: тип → пустота → длина → XSS → очистка.
func ValidateAndSanitizeMessage(input interface{}) MessageResult {
	text, ok := input.(string)
	if !ok {
		return failMessage(FailNotAString, "сообщение должно быть строкой")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failMessage(FailEmpty, "сообщение не может быть пустым")
	}

	if len([]rune(trimmed)) > MaxMessageLength {
		return failMessage(FailTooLong,
			fmt.Sprintf("сообщение слишком длинное: максимум %d символов", MaxMessageLength))
	}

	if ContainsXSS(trimmed) {
		return failMessage(FailXSS, "сообщение содержит потенциально опасное содержимое")
	}

	return MessageResult{Valid: true, Value: Sanitize(trimmed)}
}

// ValidateAndSanitizeRequest проверяет запрос перед отправкой вебхуку:
// формат sessionId, тип пользователя, timestamp и рекурсивную очистку
// строковых значений метаданных. Отсутствующие метаданные заменяются
// пустой картой.
func ValidateAndSanitizeRequest(req *models.N8nChatRequest) RequestResult {
	if req == nil {
		return RequestResult{Code: FailNotAnObject, Message: "запрос отсутствует"}
	}

	if !sessionIDRe.MatchString(req.SessionID) {
		return RequestResult{Code: FailInvalidSession,
			Message: fmt.Sprintf("неверный идентификатор сессии: %q", req.SessionID)}
	}

	if req.UserType != models.SessionTypePublic && req.UserType != models.SessionTypeAdmin {
		return RequestResult{Code: FailInvalidUserType,
			Message: fmt.Sprintf("неверный тип пользователя: %q", req.UserType)}
	}

	if _, err := time.Parse(time.RFC3339, req.Timestamp); err != nil {
		return RequestResult{Code: FailInvalidTime,
			Message: fmt.Sprintf("timestamp не соответствует ISO-8601: %q", req.Timestamp)}
	}

	msg := ValidateAndSanitizeMessage(req.Message)
	if !msg.Valid {
		return RequestResult{Code: msg.Code, Message: msg.Message}
	}

	sanitized := &models.N8nChatRequest{
		SessionID: req.SessionID,
		Message:   msg.Value,
		UserType:  req.UserType,
		Timestamp: req.Timestamp,
		Metadata:  sanitizeMetadata(req.Metadata),
	}
	return RequestResult{Valid: true, Request: sanitized}
}

// ValidateResponse проверяет сырой ответ вебхука: это должен быть
// JSON-объект с булевым полем success; строковые поля ответа и
// payload'ов действий очищаются до передачи наверх.
func ValidateResponse(raw []byte) ResponseResult {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ResponseResult{Code: FailNotAnObject, Message: "ответ не является JSON-объектом"}
	}

	successRaw, ok := probe["success"]
	if !ok {
		return ResponseResult{Code: FailNoSuccessField, Message: "в ответе отсутствует поле success"}
	}
	var success bool
	if err := json.Unmarshal(successRaw, &success); err != nil {
		return ResponseResult{Code: FailNoSuccessField, Message: "поле success должно быть булевым"}
	}

	var resp models.N8nChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return ResponseResult{Code: FailNotAnObject,
			Message: fmt.Sprintf("не удалось разобрать ответ: %v", err)}
	}

	if resp.Data != nil {
		resp.Data.Response = Sanitize(resp.Data.Response)
		for i := range resp.Data.Actions {
			resp.Data.Actions[i].Payload = sanitizeMetadata(resp.Data.Actions[i].Payload)
		}
	}

	return ResponseResult{Valid: true, Response: &resp}
}

// sanitizeMetadata рекурсивно очищает строковые значения,
// сохраняя остальные типы как есть. nil превращается в пустую карту.
func sanitizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	clean := make(map[string]interface{}, len(metadata))
	for key, value := range metadata {
		clean[key] = sanitizeValue(value)
	}
	return clean
}

func sanitizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		return Sanitize(v)
	case map[string]interface{}:
		return sanitizeMetadata(v)
	case []interface{}:
		items := make([]interface{}, len(v))
		for i, item := range v {
			items[i] = sanitizeValue(item)
		}
		return items
	default:
		return value
	}
}
