// Package webhook — клиент внешнего эндпоинта автоматизации (n8n).
// Единственное место, где сетевые сбои переводятся в таксономию apperrors.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visionchatserver/apperrors"
	"visionchatserver/models"
	"visionchatserver/security"
)

// DefaultTimeout — таймаут одного запроса, если вызывающий не задал свой
const DefaultTimeout = 30 * time.Second

// maxResponseBytes ограничивает читаемое тело ответа
const maxResponseBytes = 1 << 20 // 1MB

// SendOptions — параметры одной отправки
type SendOptions struct {
	Timeout     time.Duration // таймаут одной попытки
	AutoRetry   bool          // повторять ли retryable-ошибки
	MaxAttempts int           // всего попыток при AutoRetry (минимум 1)
	RetryDelay  time.Duration // пауза между попытками
}

// Result — успешный ответ вместе со счётчиком попыток
// (счётчик нужен вызывающему коду и тестам).
// У успешного результата Response.Data всегда заполнен.
type Result struct {
	Response *models.N8nChatResponse
	Attempts int
}

// Client отправляет проверенные сообщения автоматизации
type Client struct {
	endpoint   string
	httpClient *http.Client

	// allowedHosts — белый список хостов вебхука; пустой список отключает проверку
	allowedHosts []string
}

// NewClient создает клиента вебхука. Запросы уходят только на хосты
// из белого списка (базовый домен из конфигурации плюс localhost).
func NewClient(endpoint string, allowedHosts []string) *Client {
	return &Client{
		endpoint:     endpoint,
		httpClient:   &http.Client{},
		allowedHosts: allowedHosts,
	}
}

// SendMessage валидирует запрос, отправляет его автоматизации и
// валидирует ответ. Невалидный запрос не порождает сетевого вызова
// и даёт ошибку категории validation. Повторяются только
// retryable-ошибки таксономии; попытки идут последовательно,
// каждая ждёт исхода предыдущей.
func (c *Client) SendMessage(ctx context.Context, sessionID, message, userType string, opts SendOptions) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if !opts.AutoRetry {
		opts.MaxAttempts = 1
	}

	req := &models.N8nChatRequest{
		SessionID: sessionID,
		Message:   message,
		UserType:  userType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	validated := security.ValidateAndSanitizeRequest(req)
	if !validated.Valid {
		// Ошибка валидации — терминальная, сеть не трогаем
		return nil, apperrors.NewSecurityError(security.FailReason(validated.Code), sessionID,
			apperrors.SecurityContext{Origin: "webhook", Detail: validated.Message})
	}

	if appErr := c.checkEndpoint(); appErr != nil {
		appErr.SessionID = sessionID
		return nil, appErr
	}

	payload, err := json.Marshal(validated.Request)
	if err != nil {
		return nil, apperrors.NewWebhookError(apperrors.WebhookInvalidResponse, 0,
			fmt.Errorf("сериализация запроса: %w", err))
	}

	var lastErr *apperrors.ChatAppError
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		resp, appErr := c.doAttempt(ctx, payload, opts.Timeout)
		if appErr == nil {
			// Отказ автоматизации приходит валидным телом с HTTP 200.
			// Повтор того же сообщения его не изменит — возвращаем сразу.
			if !resp.Success {
				detail := "автоматизация вернула отказ"
				if resp.Error != nil && resp.Error.Message != "" {
					detail = fmt.Sprintf("отказ автоматизации %s: %s", resp.Error.Code, resp.Error.Message)
				}
				failure := apperrors.NewWebhookError(apperrors.WebhookInvalidResponse, http.StatusOK,
					errors.New(detail))
				failure.SessionID = sessionID
				return nil, failure
			}
			return &Result{Response: resp, Attempts: attempt}, nil
		}

		appErr.SessionID = sessionID
		if wc, ok := appErr.Context.(apperrors.WebhookContext); ok {
			wc.Attempt = attempt
			wc.URL = c.endpoint
			appErr.Context = wc
		}
		lastErr = appErr
		log.Printf("[webhook] попытка %d/%d не удалась (сессия %s): %v",
			attempt, opts.MaxAttempts, sessionID, appErr)

		if !appErr.Retryable {
			// auth и подобные ошибки не повторяем вовсе
			break
		}
		if ctx.Err() != nil {
			// Вызывающий отменил запрос или его дедлайн истёк
			break
		}
		if attempt < opts.MaxAttempts && opts.RetryDelay > 0 {
			select {
			case <-time.After(opts.RetryDelay):
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return nil, apperrors.NewWebhookError(apperrors.WebhookTimeout, 0, ctx.Err())
				}
				return nil, apperrors.NewWebhookError(apperrors.WebhookUnreachable, 0, ctx.Err())
			}
		}
	}
	return nil, lastErr
}

// doAttempt выполняет одну попытку POST и классифицирует исход
func (c *Client) doAttempt(ctx context.Context, payload []byte, timeout time.Duration) (*models.N8nChatResponse, *apperrors.ChatAppError) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewWebhookError(apperrors.WebhookUnreachable, 0, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Просроченный дедлайн — таймаут. Отмена вызывающим таймаутом
		// не является: такой запрос классифицируется как недоступность.
		switch {
		case errors.Is(err, context.Canceled):
			return nil, apperrors.NewWebhookError(apperrors.WebhookUnreachable, 0, err)
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
			return nil, apperrors.NewWebhookError(apperrors.WebhookTimeout, 0, err)
		default:
			return nil, apperrors.NewWebhookError(apperrors.WebhookUnreachable, 0, err)
		}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewWebhookError(apperrors.WebhookUnreachable, httpResp.StatusCode, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, apperrors.NewWebhookError(apperrors.WebhookAuthFailed, httpResp.StatusCode, nil)
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewWebhookError(apperrors.WebhookRateLimited, httpResp.StatusCode, nil)
	case httpResp.StatusCode >= 500:
		return nil, apperrors.NewWebhookError(apperrors.WebhookUnreachable, httpResp.StatusCode, nil)
	case httpResp.StatusCode != http.StatusOK:
		return nil, apperrors.NewWebhookError(apperrors.WebhookInvalidResponse, httpResp.StatusCode, nil)
	}

	result := security.ValidateResponse(body)
	if !result.Valid {
		return nil, apperrors.NewWebhookError(apperrors.WebhookInvalidResponse, httpResp.StatusCode,
			errors.New(result.Message))
	}
	// success без data по форме валиден, но передавать наверх нечего
	if result.Response.Success && result.Response.Data == nil {
		return nil, apperrors.NewWebhookError(apperrors.WebhookInvalidResponse, httpResp.StatusCode,
			errors.New("успешный ответ без поля data"))
	}
	return result.Response, nil
}

// checkEndpoint проверяет хост эндпоинта по белому списку доменов
func (c *Client) checkEndpoint() *apperrors.ChatAppError {
	if len(c.allowedHosts) == 0 {
		return nil
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return apperrors.NewWebhookError(apperrors.WebhookUnreachable, 0,
			fmt.Errorf("неверный адрес вебхука %q: %w", c.endpoint, err))
	}

	host := u.Hostname()
	for _, allowed := range c.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return apperrors.NewWebhookError(apperrors.WebhookUnreachable, 0,
		fmt.Errorf("хост %q не входит в список разрешённых доменов", host))
}
