package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"visionchatserver/apperrors"
	"visionchatserver/models"
	"visionchatserver/security"
	"visionchatserver/sessions"
	"visionchatserver/webhook"
	"visionchatserver/websocket"
)

// PublicChatMessage принимает сообщение из публичного виджета чата,
// прогоняет его через проверки безопасности и отправляет в автоматизацию.
// При недоступности автоматизации сообщение уходит в оффлайн-очередь,
// а посетитель получает локальный автоответ.
func PublicChatMessage(c *gin.Context) {
	var body struct {
		SessionID string                 `json:"sessionId"`
		Message   string                 `json:"message" binding:"required"`
		Metadata  map[string]interface{} `json:"metadata,omitempty"`
	}

	if err := c.ShouldBindJSON(&body); err != nil {
		log.Printf("Ошибка в формате данных сообщения: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	// Новый посетитель получает новую сессию
	sessionID := body.SessionID
	if sessionID == "" {
		sessionID = sessions.NewSessionID(models.SessionTypePublic)
	}

	session, err := Sessions.GetOrCreate(sessionID, models.SessionTypePublic)
	if err != nil {
		respondAppError(c, err)
		return
	}

	// Проверки безопасности: валидация, санитизация и лимит по сессии.
	// Лимит по IP уже снят middleware'ом до входа в обработчик.
	secCtx := security.NewSecurityContext(session.ID, "", c.GetHeader("Origin"))
	clean, appErr := SecurityGuard.SecureValidateMessage(secCtx, body.Message)
	if appErr != nil {
		respondAppError(c, appErr)
		return
	}

	userMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		Content:   clean,
		SessionID: session.ID,
		Sender:    models.SenderUser,
		Timestamp: time.Now().UTC(),
		Status:    models.MessageStatusPending,
		Metadata:  body.Metadata,
	}
	if err := Sessions.Append(session.ID, userMsg); err != nil {
		respondAppError(c, err)
		return
	}

	// Уведомляем админку о новом сообщении
	if data, err := websocket.NewChatMessage(session, &userMsg); err == nil {
		WebSocketHub.BroadcastRaw(data)
	}

	// Отправка в автоматизацию с повторами
	result, err := WebhookClient.SendMessage(c.Request.Context(), session.ID, clean, session.Type, webhook.SendOptions{
		Timeout:     AppConfig.WebhookTimeout,
		AutoRetry:   true,
		MaxAttempts: 3,
		RetryDelay:  time.Second,
	})
	if err != nil {
		handleWebhookFailure(c, session, userMsg, clean, body.Metadata, err)
		return
	}

	Sessions.UpdateMessageStatus(session.ID, userMsg.ID, models.MessageStatusDelivered)

	agentMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		Content:   result.Response.Data.Response,
		SessionID: session.ID,
		Sender:    models.SenderAgent,
		Timestamp: time.Now().UTC(),
		Status:    models.MessageStatusSent,
	}
	if err := Sessions.Append(session.ID, agentMsg); err != nil {
		log.Printf("Предупреждение: не удалось сохранить ответ агента: %v", err)
	}

	if data, err := websocket.NewChatMessage(session, &agentMsg); err == nil {
		WebSocketHub.BroadcastRaw(data)
	}

	if result.Response.Data.SessionComplete {
		Sessions.Close(session.ID)
		session.IsActive = false
		if data, err := websocket.NewSessionUpdatedMessage(session); err == nil {
			WebSocketHub.BroadcastRaw(data)
		}
	}

	log.Printf("Сообщение %s обработано за %d попыток(-и)", userMsg.ID, result.Attempts)
	c.JSON(http.StatusOK, gin.H{
		"sessionId":       session.ID,
		"messageId":       userMsg.ID,
		"response":        result.Response.Data.Response,
		"actions":         result.Response.Data.Actions,
		"sessionComplete": result.Response.Data.SessionComplete,
	})
}

// handleWebhookFailure: retryable-ошибки переводят чат в оффлайн-режим,
// остальные возвращаются клиенту как есть
func handleWebhookFailure(c *gin.Context, session *models.ChatSession, userMsg models.ChatMessage, clean string, metadata map[string]interface{}, err error) {
	var appErr *apperrors.ChatAppError
	if !errors.As(err, &appErr) {
		log.Printf("Неожиданная ошибка вебхука: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
		return
	}

	// Ошибки валидации и безопасности в очередь не попадают
	if appErr.Category == apperrors.CategoryValidation {
		Sessions.UpdateMessageStatus(session.ID, userMsg.ID, models.MessageStatusFailed)
		respondAppError(c, appErr)
		return
	}

	log.Printf("Автоматизация недоступна (%s), сообщение %s уходит в оффлайн-очередь", appErr.Code, userMsg.ID)
	OfflineQueue.StoreOfflineMessage(clean, session.ID, metadata)
	Sessions.UpdateMessageStatus(session.ID, userMsg.ID, models.MessageStatusPending)

	fallback := OfflineQueue.GenerateFallbackResponse(clean)

	agentMsg := models.ChatMessage{
		ID:        uuid.New().String(),
		Content:   fallback.Response,
		SessionID: session.ID,
		Sender:    models.SenderAgent,
		Timestamp: fallback.Timestamp,
		Status:    models.MessageStatusSent,
		Metadata:  map[string]interface{}{"offline": true, "fallbackType": fallback.Type},
	}
	if err := Sessions.Append(session.ID, agentMsg); err != nil {
		log.Printf("Предупреждение: не удалось сохранить автоответ: %v", err)
	}

	if data, err := websocket.NewChatMessage(session, &agentMsg); err == nil {
		WebSocketHub.BroadcastRaw(data)
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId": session.ID,
		"messageId": userMsg.ID,
		"response":  fallback.Response,
		"offline":   true,
	})
}

// GetChats возвращает список активных сессий для админки
func GetChats(c *gin.Context) {
	adminID := c.GetString("adminID")
	if adminID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	summaries := Sessions.List()
	log.Printf("Запрос списка чатов от admin %s: %d сессий", adminID, len(summaries))
	c.JSON(http.StatusOK, gin.H{"items": summaries, "totalItems": len(summaries)})
}

// GetChatByID возвращает сессию вместе с историей сообщений
func GetChatByID(c *gin.Context) {
	adminID := c.GetString("adminID")
	if adminID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	session, err := Sessions.Get(c.Param("id"))
	if err != nil {
		respondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": session, "totalMessages": len(session.Messages)})
}

// SendMessage отправляет сообщение оператора в чат
func SendMessage(c *gin.Context) {
	chatID := c.Param("id")
	adminID := c.GetString("adminID")
	if adminID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	var body struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Некорректные данные: " + err.Error()})
		return
	}

	// Сообщения операторов проходят те же проверки, что и публичные
	secCtx := security.NewSecurityContext(chatID, "admin:"+adminID, c.GetHeader("Origin"))
	clean, appErr := SecurityGuard.SecureValidateMessage(secCtx, body.Content)
	if appErr != nil {
		respondAppError(c, appErr)
		return
	}

	session, err := Sessions.Get(chatID)
	if err != nil {
		respondAppError(c, err)
		return
	}

	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Content:   clean,
		SessionID: chatID,
		Sender:    models.SenderAgent,
		Timestamp: time.Now().UTC(),
		Status:    models.MessageStatusSent,
		Metadata:  map[string]interface{}{"adminId": adminID},
	}
	if err := Sessions.Append(chatID, msg); err != nil {
		respondAppError(c, err)
		return
	}

	if data, err := websocket.NewChatMessage(session, &msg); err == nil {
		WebSocketHub.BroadcastRaw(data)
	}

	log.Printf("Сообщение оператора %s отправлено в чат %s", msg.ID, chatID)
	c.JSON(http.StatusOK, msg)
}

// GetOfflineStats возвращает состояние оффлайн-очереди
func GetOfflineStats(c *gin.Context) {
	adminID := c.GetString("adminID")
	if adminID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}
	c.JSON(http.StatusOK, OfflineQueue.Stats())
}

// FlushOfflineQueue повторно отправляет накопленные сообщения в автоматизацию
func FlushOfflineQueue(c *gin.Context) {
	adminID := c.GetString("adminID")
	if adminID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Необходима авторизация"})
		return
	}

	sent, failed := OfflineQueue.Flush(c.Request.Context(), func(ctx context.Context, msg *models.PendingOfflineMessage) error {
		_, err := WebhookClient.SendMessage(ctx, msg.SessionID, msg.Content, models.SessionTypePublic, webhook.SendOptions{
			Timeout: AppConfig.WebhookTimeout,
		})
		return err
	})

	log.Printf("Оффлайн-очередь: отправлено %d, не отправлено %d", sent, failed)
	c.JSON(http.StatusOK, gin.H{"sent": sent, "failed": failed})
}

// respondAppError превращает типизированную ошибку в HTTP-ответ.
// Клиенту уходит только userMessage и атрибуты — без внутренних деталей.
func respondAppError(c *gin.Context, err error) {
	var appErr *apperrors.ChatAppError
	if !errors.As(err, &appErr) {
		log.Printf("Необработанная ошибка: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера"})
		return
	}

	c.JSON(httpStatusFor(appErr), gin.H{
		"error":      appErr.UserMessage,
		"code":       appErr.Code,
		"category":   appErr.Category,
		"retryable":  appErr.Retryable,
		"actionable": appErr.Actionable,
	})
}

// httpStatusFor подбирает HTTP-статус по коду и категории ошибки
func httpStatusFor(appErr *apperrors.ChatAppError) int {
	switch appErr.Code {
	case apperrors.CodeRateLimitExceeded, apperrors.CodeWebhookRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeSessionNotFound:
		return http.StatusNotFound
	case apperrors.CodeSessionExpired, apperrors.CodeSessionBlocked, apperrors.CodeSessionLimitReached:
		return http.StatusConflict
	}
	switch appErr.Category {
	case apperrors.CategoryValidation:
		return http.StatusBadRequest
	case apperrors.CategoryExternalAPI, apperrors.CategoryNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
