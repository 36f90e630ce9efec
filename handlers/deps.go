package handlers

import (
	"visionchatserver/config"
	"visionchatserver/offline"
	"visionchatserver/security"
	"visionchatserver/sessions"
	"visionchatserver/webhook"
)

// Зависимости обработчиков. Устанавливаются один раз из main —
// сами пакеты ядра синглтонов не держат.
var (
	AppConfig     *config.Config
	Sessions      *sessions.Manager
	OfflineQueue  *offline.Manager
	WebhookClient *webhook.Client
	SecurityGuard *security.Guard
)

// Setup связывает обработчики с их зависимостями
func Setup(cfg *config.Config, sm *sessions.Manager, om *offline.Manager, wc *webhook.Client, guard *security.Guard) {
	AppConfig = cfg
	Sessions = sm
	OfflineQueue = om
	WebhookClient = wc
	SecurityGuard = guard
}
