package websocket

import (
	"encoding/json"

	"visionchatserver/models"
)

// WebSocketMessage представляет сообщение для WebSocket
type WebSocketMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage создает новое сообщение с указанным типом и данными
func NewMessage(messageType string, payload interface{}) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	message := WebSocketMessage{
		Type:    messageType,
		Payload: payloadJSON,
	}

	return json.Marshal(message)
}

// NewChatMessage создает событие о новом сообщении в сессии
func NewChatMessage(session *models.ChatSession, message *models.ChatMessage) ([]byte, error) {
	payload := struct {
		SessionID string              `json:"sessionId"`
		Message   *models.ChatMessage `json:"message"`
	}{
		SessionID: session.ID,
		Message:   message,
	}

	return NewMessage("new_message", payload)
}

// NewSessionUpdatedMessage создает событие об изменении сессии
func NewSessionUpdatedMessage(session *models.ChatSession) ([]byte, error) {
	return NewMessage("chat_updated", session)
}

// NewSessionListMessage создает событие со списком сессий
func NewSessionListMessage(sessions []models.ChatSessionSummary) ([]byte, error) {
	return NewMessage("chat_list", sessions)
}

// NewSecurityAlertMessage создает событие о блокировке безопасности
func NewSecurityAlertMessage(event interface{}) ([]byte, error) {
	return NewMessage("security_alert", event)
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(errorText string) ([]byte, error) {
	payload := struct {
		Error string `json:"error"`
	}{
		Error: errorText,
	}

	return NewMessage("error", payload)
}
