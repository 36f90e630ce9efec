package models

// N8nChatRequest — тело POST-запроса к внешнему эндпоинту автоматизации.
// Перед отправкой запрос обязательно проходит валидацию (пакет security).
type N8nChatRequest struct {
	SessionID string                 `json:"sessionId"`
	Message   string                 `json:"message"`
	UserType  string                 `json:"userType"` // "public" или "admin"
	Timestamp string                 `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// N8nAction — действие, которое автоматизация просит выполнить на клиенте.
type N8nAction struct {
	Type        string                 `json:"type"`
	Payload     map[string]interface{} `json:"payload"`
	Description string                 `json:"description,omitempty"`
}

// N8nResponseData — полезная нагрузка успешного ответа автоматизации.
type N8nResponseData struct {
	Response        string      `json:"response"`
	Actions         []N8nAction `json:"actions,omitempty"`
	SessionComplete bool        `json:"sessionComplete,omitempty"`
}

// N8nError — описание ошибки в теле неуспешного ответа.
type N8nError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// N8nChatResponse — ответ внешнего эндпоинта автоматизации.
// Валидируется при получении до передачи наверх.
type N8nChatResponse struct {
	Success bool             `json:"success"`
	Data    *N8nResponseData `json:"data,omitempty"`
	Error   *N8nError        `json:"error,omitempty"`
}
