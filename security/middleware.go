package security

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"visionchatserver/apperrors"
	"visionchatserver/models"
)

// AlertSink получает уведомления о заблокированных запросах
// (например, WebSocket-хаб для панели администратора).
// Сбой приёмника не должен влиять на обработку запроса.
type AlertSink interface {
	SecurityAlert(event interface{})
}

// SecurityContext привязывает каждое решение безопасности к сессии,
// чтобы его можно было проследить по логам.
type SecurityContext struct {
	SessionID string    `json:"sessionId"`
	Identity  string    `json:"identity"`
	Origin    string    `json:"origin,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewSecurityContext создает контекст безопасности для одного запроса.
// Если identity не задан, лимитирование ведётся по идентификатору сессии.
func NewSecurityContext(sessionID, identity, origin string) SecurityContext {
	if identity == "" {
		identity = sessionID
	}
	return SecurityContext{
		SessionID: sessionID,
		Identity:  identity,
		Origin:    origin,
		CreatedAt: time.Now(),
	}
}

// GuardConfig — пороги лимитера для входящего трафика
type GuardConfig struct {
	MaxRequests int
	Window      time.Duration
}

// Guard объединяет лимитер, валидацию и детектор угроз в одно
// решение о допуске запроса. Первый отказ прерывает цепочку,
// побочных эффектов от частично пройденных проверок нет.
type Guard struct {
	limiter *RateLimiter
	cfg     GuardConfig
	alerts  AlertSink
}

// NewGuard создает Guard с явно переданным лимитером
func NewGuard(limiter *RateLimiter, cfg GuardConfig, alerts AlertSink) *Guard {
	return &Guard{limiter: limiter, cfg: cfg, alerts: alerts}
}

// SecureValidateMessage: rate limit → валидация/очистка → детектор угроз.
// Возвращает очищенный текст либо терминальную ошибку таксономии.
func (g *Guard) SecureValidateMessage(secCtx SecurityContext, input interface{}) (string, *apperrors.ChatAppError) {
	if appErr := g.checkRateLimit(secCtx); appErr != nil {
		return "", appErr
	}

	result := ValidateAndSanitizeMessage(input)
	if !result.Valid {
		appErr := apperrors.NewSecurityError(FailReason(result.Code), secCtx.SessionID,
			apperrors.SecurityContext{Identity: secCtx.Identity, Origin: secCtx.Origin, Detail: result.Message})
		g.logThreat(secCtx, string(appErr.Code), result.Message)
		return "", appErr
	}

	// Детектор работает по исходному тексту: очищенная версия
	// могла замаскировать нагрузку
	if raw, ok := input.(string); ok {
		if ContainsSQLInjection(raw) {
			appErr := apperrors.NewSecurityError(apperrors.SecuritySQLInjection, secCtx.SessionID,
				apperrors.SecurityContext{Identity: secCtx.Identity, Origin: secCtx.Origin})
			g.logThreat(secCtx, string(appErr.Code), "похоже на SQL-инъекцию")
			return "", appErr
		}
		if ContainsSuspiciousKeywords(raw) {
			appErr := apperrors.NewSecurityError(apperrors.SecurityInvalidContent, secCtx.SessionID,
				apperrors.SecurityContext{Identity: secCtx.Identity, Origin: secCtx.Origin, Detail: "подозрительная лексика"})
			g.logThreat(secCtx, string(appErr.Code), "словарь кодовых инъекций")
			return "", appErr
		}
	}

	return result.Value, nil
}

// SecureValidateRequest проверяет исходящий запрос к автоматизации
func (g *Guard) SecureValidateRequest(secCtx SecurityContext, req *models.N8nChatRequest) (*models.N8nChatRequest, *apperrors.ChatAppError) {
	if appErr := g.checkRateLimit(secCtx); appErr != nil {
		return nil, appErr
	}

	result := ValidateAndSanitizeRequest(req)
	if !result.Valid {
		appErr := apperrors.NewSecurityError(FailReason(result.Code), secCtx.SessionID,
			apperrors.SecurityContext{Identity: secCtx.Identity, Origin: secCtx.Origin, Detail: result.Message})
		g.logThreat(secCtx, string(appErr.Code), result.Message)
		return nil, appErr
	}
	return result.Request, nil
}

// SecureValidateResponse проверяет входящий ответ автоматизации.
// Ответы не лимитируются: лимит уже снят на запросе.
func (g *Guard) SecureValidateResponse(secCtx SecurityContext, raw []byte) (*models.N8nChatResponse, *apperrors.ChatAppError) {
	result := ValidateResponse(raw)
	if !result.Valid {
		appErr := apperrors.NewWebhookError(apperrors.WebhookInvalidResponse, 0, nil)
		appErr.SessionID = secCtx.SessionID
		g.logThreat(secCtx, string(appErr.Code), result.Message)
		return nil, appErr
	}
	return result.Response, nil
}

// RateLimitMiddleware применяет лимитер к HTTP-запросам публичного чата
func (g *Guard) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := "ip:" + c.ClientIP()
		allowed, remaining := g.limiter.Check(identity, g.cfg.MaxRequests, g.cfg.Window)
		if !allowed {
			secCtx := NewSecurityContext("", identity, c.Request.Header.Get("Origin"))
			g.logThreat(secCtx, string(apperrors.CodeRateLimitExceeded), "превышен лимит HTTP-запросов")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": apperrors.DefaultUserMessage(apperrors.CodeRateLimitExceeded),
			})
			c.Abort()
			return
		}
		c.Set("rateRemaining", remaining)
		c.Next()
	}
}

func (g *Guard) checkRateLimit(secCtx SecurityContext) *apperrors.ChatAppError {
	allowed, _ := g.limiter.Check(secCtx.Identity, g.cfg.MaxRequests, g.cfg.Window)
	if allowed {
		return nil
	}
	appErr := apperrors.NewSecurityError(apperrors.SecurityRateLimit, secCtx.SessionID,
		apperrors.SecurityContext{Identity: secCtx.Identity, Origin: secCtx.Origin})
	g.logThreat(secCtx, string(appErr.Code), "превышен лимит запросов")
	return appErr
}

// logThreat пишет запись о блокировке. Логирование — побочный эффект
// и не имеет права уронить обработку: сбои приёмника глотаются.
func (g *Guard) logThreat(secCtx SecurityContext, code, detail string) {
	log.Printf("[security] блокировка: code=%s session=%s identity=%s origin=%s: %s",
		code, secCtx.SessionID, secCtx.Identity, secCtx.Origin, detail)

	if g.alerts == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[security] приёмник оповещений упал: %v", r)
		}
	}()
	g.alerts.SecurityAlert(struct {
		Code      string    `json:"code"`
		SessionID string    `json:"sessionId,omitempty"`
		Identity  string    `json:"identity"`
		Detail    string    `json:"detail"`
		Timestamp time.Time `json:"timestamp"`
	}{code, secCtx.SessionID, secCtx.Identity, detail, time.Now()})
}

// FailReason переводит код отказа валидации в причину таксономии.
// Используется и здесь, и клиентом вебхука.
func FailReason(code string) apperrors.SecurityReason {
	switch code {
	case FailTooLong:
		return apperrors.SecurityTooLong
	case FailXSS:
		return apperrors.SecurityXSS
	case FailSQLInjection:
		return apperrors.SecuritySQLInjection
	default:
		return apperrors.SecurityInvalidContent
	}
}
