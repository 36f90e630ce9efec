package models

import "time"

// PendingOfflineMessage — сообщение, которое не удалось доставить,
// пока вебхук был недоступен. Создаётся менеджером оффлайн-очереди,
// удаляется после успешной переотправки или по истечении maxAge.
type PendingOfflineMessage struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	SessionID string                 `json:"sessionId"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
