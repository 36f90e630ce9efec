package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"visionchatserver/apperrors"
	"visionchatserver/models"
)

const testSession = "chat_public_test1"

func appErrFrom(t *testing.T, err error) *apperrors.ChatAppError {
	t.Helper()
	var appErr *apperrors.ChatAppError
	if !errors.As(err, &appErr) {
		t.Fatalf("ожидался *apperrors.ChatAppError, получено %T: %v", err, err)
	}
	return appErr
}

func TestSendMessageSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("метод = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		w.Write([]byte(`{"success":true,"data":{"response":"Записали вас!","sessionComplete":false}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	result, err := client.SendMessage(context.Background(), testSession, "Хочу записаться", models.SessionTypePublic, SendOptions{})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d", result.Attempts)
	}
	if result.Response.Data.Response != "Записали вас!" {
		t.Errorf("Response = %q", result.Response.Data.Response)
	}
}

func TestSendMessageInvalidRequestSkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(context.Background(), "плохой-id", "текст", models.SessionTypePublic, SendOptions{})

	appErr := appErrFrom(t, err)
	if appErr.Category != apperrors.CategoryValidation {
		t.Errorf("Category = %s, ожидалась validation", appErr.Category)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("невалидный запрос ушёл в сеть: %d вызовов", n)
	}
}

func TestSendMessageAuthFailureNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{
		AutoRetry:   true,
		MaxAttempts: 3,
	})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookAuthFailed {
		t.Errorf("Code = %s", appErr.Code)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("сбой авторизации повторялся: %d вызовов", n)
	}
}

func TestSendMessageRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"response":"ok"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	result, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{
		AutoRetry:   true,
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("третья попытка должна была пройти: %v", err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, ожидалось 3", result.Attempts)
	}
}

func TestSendMessageExhaustsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{
		AutoRetry:   true,
		MaxAttempts: 2,
	})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookUnreachable {
		t.Errorf("Code = %s", appErr.Code)
	}
	ctx, ok := appErr.Context.(apperrors.WebhookContext)
	if !ok {
		t.Fatalf("Context имеет тип %T", appErr.Context)
	}
	if ctx.Attempt != 2 {
		t.Errorf("Attempt = %d, ожидалась последняя попытка", ctx.Attempt)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("вызовов = %d, ожидалось 2", n)
	}
}

func TestSendMessageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{
		Timeout: 50 * time.Millisecond,
	})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookTimeout {
		t.Errorf("Code = %s, ожидался таймаут", appErr.Code)
	}
}

func TestSendMessageRejectsUnlistedHost(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, []string{"example.com"})
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookUnreachable {
		t.Errorf("Code = %s", appErr.Code)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("запрос на неразрешённый хост ушёл в сеть: %d вызовов", n)
	}
}

func TestSendMessageRateLimitedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookRateLimited {
		t.Errorf("Code = %s", appErr.Code)
	}
}

func TestSendMessageInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`не json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookInvalidResponse {
		t.Errorf("Code = %s", appErr.Code)
	}
}

func TestSendMessageBusinessFailureNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"success":false,"error":{"code":"BUSY","message":"Все операторы заняты"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	result, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{
		AutoRetry:   true,
		MaxAttempts: 3,
	})
	if result != nil {
		t.Fatalf("отказ автоматизации вернулся как успех: %+v", result)
	}

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookInvalidResponse {
		t.Errorf("Code = %s", appErr.Code)
	}
	if appErr.SessionID != testSession {
		t.Errorf("SessionID = %q", appErr.SessionID)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("отказ автоматизации повторялся: %d вызовов", n)
	}
}

func TestSendMessageSuccessWithoutData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, nil)
	result, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{})
	if result != nil {
		t.Fatalf("ответ без data вернулся как успех: %+v", result)
	}

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookInvalidResponse {
		t.Errorf("Code = %s", appErr.Code)
	}
}

func TestSendMessageCallerCancelIsNotTimeout(t *testing.T) {
	var calls int32
	started := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	// Отменяем запрос, когда он уже дошёл до сервера
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	client := NewClient(srv.URL, nil)
	_, err := client.SendMessage(ctx, testSession, "текст", models.SessionTypePublic, SendOptions{
		Timeout:     time.Second,
		AutoRetry:   true,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
	})

	appErr := appErrFrom(t, err)
	if appErr.Code == apperrors.CodeWebhookTimeout {
		t.Error("отмена вызывающим классифицирована как таймаут")
	}
	if appErr.Code != apperrors.CodeWebhookUnreachable {
		t.Errorf("Code = %s", appErr.Code)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("отменённый запрос повторялся: %d вызовов", n)
	}
}

func TestSendMessageUnreachableHost(t *testing.T) {
	// Закрытый сервер гарантирует отказ соединения
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, nil)
	_, err := client.SendMessage(context.Background(), testSession, "текст", models.SessionTypePublic, SendOptions{})

	appErr := appErrFrom(t, err)
	if appErr.Code != apperrors.CodeWebhookUnreachable {
		t.Errorf("Code = %s", appErr.Code)
	}
}
