package models

import "time"

// Каналы уведомлений
const (
	TemplateTypeEmail    = "email"
	TemplateTypeWhatsApp = "whatsapp"
	TemplateTypeSMS      = "sms"
)

// NotificationTemplate представляет собой шаблон уведомления.
// Content и Subject могут содержать плейсхолдеры вида {{variable}};
// каждый плейсхолдер обязан существовать в каталоге переменных
// для данного типа шаблона (проверяется пакетом templates).
type NotificationTemplate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // "email", "whatsapp", "sms"
	Subject   string    `json:"subject,omitempty"`
	Content   string    `json:"content"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
