package apperrors

import "fmt"

// ─────────────────────────────── security

// SecurityReason — причины отказа на уровне безопасности
type SecurityReason string

const (
	SecurityInvalidContent SecurityReason = "invalid_content"
	SecurityTooLong        SecurityReason = "too_long"
	SecurityXSS            SecurityReason = "xss"
	SecuritySQLInjection   SecurityReason = "sql_injection"
	SecurityRateLimit      SecurityReason = "rate_limit"
	SecuritySessionBlocked SecurityReason = "session_blocked"
)

// SecurityContext — контекст ошибки безопасности
type SecurityContext struct {
	Reason   SecurityReason `json:"reason"`
	Identity string         `json:"identity,omitempty"`
	Origin   string         `json:"origin,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

func (SecurityContext) errContext() {}

var securityCodes = map[SecurityReason]Code{
	SecurityInvalidContent: CodeInvalidMessageContent,
	SecurityTooLong:        CodeMessageTooLong,
	SecurityXSS:            CodeXSSDetected,
	SecuritySQLInjection:   CodeSQLInjectionDetected,
	SecurityRateLimit:      CodeRateLimitExceeded,
	SecuritySessionBlocked: CodeSessionBlocked,
}

// NewSecurityError создает ошибку безопасности по причине отказа
func NewSecurityError(reason SecurityReason, sessionID string, ctx SecurityContext) *ChatAppError {
	code, ok := securityCodes[reason]
	if !ok {
		code = CodeChatSystemError
	}
	ctx.Reason = reason
	err := newError(code, fmt.Sprintf("проверка безопасности не пройдена: %s", reason), nil)
	err.SessionID = sessionID
	err.Context = ctx
	return err
}

// ─────────────────────────────── webhook

// WebhookReason — причины сбоя при обращении к вебхуку
type WebhookReason string

const (
	WebhookUnreachable     WebhookReason = "unreachable"
	WebhookTimeout         WebhookReason = "timeout"
	WebhookAuthFailed      WebhookReason = "auth_failed"
	WebhookRateLimited     WebhookReason = "rate_limited"
	WebhookInvalidResponse WebhookReason = "invalid_response"
)

// WebhookContext — контекст ошибки вебхука
type WebhookContext struct {
	Reason     WebhookReason `json:"reason"`
	StatusCode int           `json:"statusCode,omitempty"`
	URL        string        `json:"url,omitempty"`
	Attempt    int           `json:"attempt,omitempty"`
}

func (WebhookContext) errContext() {}

var webhookCodes = map[WebhookReason]Code{
	WebhookUnreachable:     CodeWebhookUnreachable,
	WebhookTimeout:         CodeWebhookTimeout,
	WebhookAuthFailed:      CodeWebhookAuthFailed,
	WebhookRateLimited:     CodeWebhookRateLimited,
	WebhookInvalidResponse: CodeWebhookInvalidResponse,
}

// NewWebhookError создает ошибку вебхука. statusCode равен нулю,
// если до HTTP-ответа дело не дошло.
func NewWebhookError(reason WebhookReason, statusCode int, orig error) *ChatAppError {
	code, ok := webhookCodes[reason]
	if !ok {
		code = CodeChatSystemError
	}
	err := newError(code, fmt.Sprintf("ошибка вебхука: %s (status=%d)", reason, statusCode), orig)
	err.Context = WebhookContext{Reason: reason, StatusCode: statusCode}
	return err
}

// ─────────────────────────────── session

// SessionReason — причины сбоя жизненного цикла сессии
type SessionReason string

const (
	SessionExpired      SessionReason = "expired"
	SessionNotFound     SessionReason = "not_found"
	SessionBlocked      SessionReason = "blocked"
	SessionLimitReached SessionReason = "limit_reached"
)

// SessionContext — контекст ошибки сессии
type SessionContext struct {
	Reason    SessionReason `json:"reason"`
	SessionID string        `json:"sessionId,omitempty"`
}

func (SessionContext) errContext() {}

var sessionCodes = map[SessionReason]Code{
	SessionExpired:      CodeSessionExpired,
	SessionNotFound:     CodeSessionNotFound,
	SessionBlocked:      CodeSessionBlocked,
	SessionLimitReached: CodeSessionLimitReached,
}

// NewSessionError создает ошибку жизненного цикла сессии
func NewSessionError(reason SessionReason, sessionID string) *ChatAppError {
	code, ok := sessionCodes[reason]
	if !ok {
		code = CodeChatSystemError
	}
	err := newError(code, fmt.Sprintf("ошибка сессии %s: %s", sessionID, reason), nil)
	err.SessionID = sessionID
	err.Context = SessionContext{Reason: reason, SessionID: sessionID}
	return err
}

// ─────────────────────────────── history

// HistoryReason — причины сбоя локального хранения истории
type HistoryReason string

const (
	HistoryLoadFailed HistoryReason = "load_failed"
	HistorySaveFailed HistoryReason = "save_failed"
	HistoryCorrupted  HistoryReason = "corrupted"
)

// HistoryContext — контекст ошибки хранения истории
type HistoryContext struct {
	Reason HistoryReason `json:"reason"`
	Key    string        `json:"key,omitempty"`
}

func (HistoryContext) errContext() {}

var historyCodes = map[HistoryReason]Code{
	HistoryLoadFailed: CodeHistoryLoadFailed,
	HistorySaveFailed: CodeHistorySaveFailed,
	HistoryCorrupted:  CodeHistoryCorrupted,
}

// NewHistoryError создает ошибку локального хранилища истории
func NewHistoryError(reason HistoryReason, key string, orig error) *ChatAppError {
	code, ok := historyCodes[reason]
	if !ok {
		code = CodeChatSystemError
	}
	err := newError(code, fmt.Sprintf("ошибка хранилища истории: %s", reason), orig)
	err.Context = HistoryContext{Reason: reason, Key: key}
	return err
}

// ─────────────────────────────── voice

// VoiceReason — причины сбоя голосового ввода
type VoiceReason string

const (
	VoiceNotSupported      VoiceReason = "not_supported"
	VoiceMicAccessDenied   VoiceReason = "mic_access_denied"
	VoiceRecognitionFailed VoiceReason = "recognition_failed"
)

// VoiceContext — контекст ошибки голосового ввода
type VoiceContext struct {
	Reason VoiceReason `json:"reason"`
}

func (VoiceContext) errContext() {}

var voiceCodes = map[VoiceReason]Code{
	VoiceNotSupported:      CodeVoiceNotSupported,
	VoiceMicAccessDenied:   CodeMicrophoneAccessDenied,
	VoiceRecognitionFailed: CodeVoiceRecognitionFailed,
}

// NewVoiceError создает ошибку голосового ввода
func NewVoiceError(reason VoiceReason) *ChatAppError {
	code, ok := voiceCodes[reason]
	if !ok {
		code = CodeChatSystemError
	}
	err := newError(code, fmt.Sprintf("ошибка голосового ввода: %s", reason), nil)
	err.Context = VoiceContext{Reason: reason}
	return err
}

// ─────────────────────────────── legacy

// LegacyChatError — слабо типизированная ошибка старого формата
// (поле type вместо кода таксономии).
type LegacyChatError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// FromChatError приводит ошибку старого формата к таксономии.
// Неизвестные типы деградируют в CHAT_SYSTEM_ERROR.
func FromChatError(legacy LegacyChatError) *ChatAppError {
	var code Code
	switch legacy.Type {
	case "validation":
		code = CodeInvalidMessageContent
	case "network":
		code = CodeNetworkError
	case "webhook":
		code = CodeWebhookUnreachable
	case "timeout":
		code = CodeWebhookTimeout
	case "auth":
		code = CodeWebhookAuthFailed
	case "rate_limit":
		code = CodeRateLimitExceeded
	case "session":
		code = CodeSessionNotFound
	case "history":
		code = CodeHistoryLoadFailed
	case "voice":
		code = CodeVoiceRecognitionFailed
	default:
		code = CodeChatSystemError
	}
	err := newError(code, legacy.Message, nil)
	err.SessionID = legacy.SessionID
	return err
}
