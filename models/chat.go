package models

import (
	"time"
)

// Отправитель сообщения в чате
const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// Статусы сообщения
const (
	MessageStatusPending   = "pending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusFailed    = "failed"
)

// Типы сессий чата
const (
	SessionTypePublic = "public"
	SessionTypeAdmin  = "admin"
)

// ChatMessage представляет собой одно сообщение в чате.
// После сохранения меняется только поле Status.
type ChatMessage struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	SessionID string                 `json:"sessionId"`
	Sender    string                 `json:"sender"` // "user" или "agent"
	Timestamp time.Time              `json:"timestamp"`
	Status    string                 `json:"status"` // "pending", "sent", "delivered", "failed"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ChatSession представляет собой одну беседу с автоматизацией.
// Сообщения только добавляются в конец, в порядке отправки.
type ChatSession struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"` // "public" или "admin"
	Messages     []ChatMessage `json:"messages"`
	IsActive     bool          `json:"isActive"`
	LastActivity time.Time     `json:"lastActivity"`
	WebhookURL   string        `json:"webhookUrl,omitempty"`
}

// ChatSessionSnapshot — формат персистентного хранения сессий
// (ключ chat_sessions в Redis).
type ChatSessionSnapshot struct {
	Sessions    []*ChatSession `json:"sessions"`
	Version     string         `json:"version"`
	LastCleanup time.Time      `json:"lastCleanup"`
}

// ChatSessionSummary для списка чатов на фронтенде
type ChatSessionSummary struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	LastMessage  *ChatMessage `json:"lastMessage,omitempty"`
	IsActive     bool         `json:"isActive"`
	LastActivity time.Time    `json:"lastActivity"`
	MessageCount int          `json:"messageCount"`
}
