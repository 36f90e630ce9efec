package offline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"visionchatserver/models"
	"visionchatserver/storage"
)

func TestStoreAndListPending(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), GetDefaultConfig())

	first := m.StoreOfflineMessage("первое", "chat_public_a", nil)
	second := m.StoreOfflineMessage("второе", "chat_public_b", map[string]interface{}{"page": "main"})

	pending := m.PendingMessages()
	if len(pending) != 2 {
		t.Fatalf("в очереди %d сообщений, ожидалось 2", len(pending))
	}
	// Порядок постановки сохраняется
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Error("порядок очереди нарушен")
	}
}

func TestLoadPrunesExpired(t *testing.T) {
	store := storage.NewMemoryStore()
	now := time.Now()
	saved := []*models.PendingOfflineMessage{
		{ID: "old", Content: "устарело", SessionID: "chat_public_a", Timestamp: now.Add(-8 * 24 * time.Hour)},
		{ID: "fresh", Content: "свежее", SessionID: "chat_public_a", Timestamp: now.Add(-time.Hour)},
	}
	data, _ := json.Marshal(saved)
	store.Seed(PendingKey, data)

	m := NewManager(store, GetDefaultConfig()) // MaxAge 7 суток

	pending := m.PendingMessages()
	if len(pending) != 1 {
		t.Fatalf("в очереди %d сообщений, ожидалось 1", len(pending))
	}
	if pending[0].ID != "fresh" {
		t.Errorf("выжило %q, ожидалось свежее сообщение", pending[0].ID)
	}
}

func TestLoadCorruptDataGivesEmptyQueue(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Seed(PendingKey, []byte("{это не json"))

	m := NewManager(store, GetDefaultConfig())
	if n := len(m.PendingMessages()); n != 0 {
		t.Errorf("повреждённые данные дали %d сообщений, ожидалась пустая очередь", n)
	}
}

func TestStoreSurvivesPersistFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailSaves = true

	m := NewManager(store, GetDefaultConfig())
	m.StoreOfflineMessage("текст", "chat_public_a", nil)

	// Память авторитетна: сбой записи не теряет сообщение
	if n := len(m.PendingMessages()); n != 1 {
		t.Errorf("в очереди %d сообщений, ожидалось 1", n)
	}
}

func TestRemoveAndClear(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), GetDefaultConfig())
	msg := m.StoreOfflineMessage("текст", "chat_public_a", nil)
	m.StoreOfflineMessage("ещё", "chat_public_a", nil)

	if !m.RemovePendingMessage(msg.ID) {
		t.Error("удаление существующего сообщения должно вернуть true")
	}
	if m.RemovePendingMessage("нет-такого") {
		t.Error("удаление несуществующего должно вернуть false")
	}
	if n := len(m.PendingMessages()); n != 1 {
		t.Errorf("осталось %d, ожидалось 1", n)
	}

	m.ClearPendingMessages()
	if n := len(m.PendingMessages()); n != 0 {
		t.Errorf("после Clear осталось %d", n)
	}
}

func TestGenerateFallbackResponse(t *testing.T) {
	t.Run("настройки по умолчанию", func(t *testing.T) {
		m := NewManager(storage.NewMemoryStore(), GetDefaultConfig())
		resp := m.GenerateFallbackResponse("Привет!")
		if resp.Type != FallbackGeneral {
			t.Errorf("Type = %s, без умного режима всегда general", resp.Type)
		}
		if resp.Response == "" {
			t.Error("ответ по умолчанию не должен быть пустым")
		}
	})

	t.Run("умный режим распознаёт приветствие", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.SmartResponses = true
		cfg.GreetingKeywords = []string{"привет", "здравствуйте", "hello"}
		cfg.GreetingResponse = "Здравствуйте! Мы сейчас не в сети."
		cfg.GeneralResponse = "Сообщение принято."
		m := NewManager(storage.NewMemoryStore(), cfg)

		resp := m.GenerateFallbackResponse("ПРИВЕТ, есть кто?")
		if resp.Type != FallbackGreeting {
			t.Errorf("Type = %s, ожидалось greeting", resp.Type)
		}
		if resp.Response != cfg.GreetingResponse {
			t.Errorf("Response = %q", resp.Response)
		}

		resp = m.GenerateFallbackResponse("когда ближайшее мероприятие?")
		if resp.Type != FallbackGeneral || resp.Response != cfg.GeneralResponse {
			t.Errorf("обычный текст: %+v", resp)
		}
	})

	t.Run("пустой настроенный ответ заменяется встроенным", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.SmartResponses = true
		cfg.GreetingKeywords = []string{"привет"}
		m := NewManager(storage.NewMemoryStore(), cfg)

		resp := m.GenerateFallbackResponse("привет")
		if resp.Response == "" {
			t.Error("пустой настроенный ответ должен подменяться встроенным")
		}
	})
}

func TestStats(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), GetDefaultConfig())

	if got := m.Stats(); got != (Stats{}) {
		t.Errorf("для пустой очереди ожидалась нулевая сводка, получено %+v", got)
	}

	m.StoreOfflineMessage("a", "chat_public_a", nil)
	m.StoreOfflineMessage("b", "chat_public_a", nil)
	m.StoreOfflineMessage("c", "chat_public_b", nil)

	stats := m.Stats()
	if stats.TotalPendingMessages != 3 {
		t.Errorf("TotalPendingMessages = %d", stats.TotalPendingMessages)
	}
	if stats.SessionCount != 2 {
		t.Errorf("SessionCount = %d", stats.SessionCount)
	}
	if stats.StorageSize == 0 {
		t.Error("StorageSize должен оценивать размер очереди")
	}
}

func TestFlushStopsAtFirstFailure(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), GetDefaultConfig())
	m.StoreOfflineMessage("первое", "chat_public_a", nil)
	m.StoreOfflineMessage("второе", "chat_public_a", nil)
	m.StoreOfflineMessage("третье", "chat_public_a", nil)

	var attempts int
	sent, failed := m.Flush(context.Background(), func(ctx context.Context, msg *models.PendingOfflineMessage) error {
		attempts++
		if attempts == 2 {
			return errors.New("вебхук снова упал")
		}
		return nil
	})

	if sent != 1 || failed != 1 {
		t.Errorf("sent=%d failed=%d, ожидалось 1/1", sent, failed)
	}
	// Первая неудача останавливает проход; неотправленные остаются в очереди
	if n := len(m.PendingMessages()); n != 2 {
		t.Errorf("в очереди осталось %d, ожидалось 2", n)
	}
}

func TestFlushDrainsQueue(t *testing.T) {
	m := NewManager(storage.NewMemoryStore(), GetDefaultConfig())
	m.StoreOfflineMessage("первое", "chat_public_a", nil)
	m.StoreOfflineMessage("второе", "chat_public_a", nil)

	sent, failed := m.Flush(context.Background(), func(ctx context.Context, msg *models.PendingOfflineMessage) error {
		return nil
	})
	if sent != 2 || failed != 0 {
		t.Errorf("sent=%d failed=%d", sent, failed)
	}
	if n := len(m.PendingMessages()); n != 0 {
		t.Errorf("очередь не опустела: %d", n)
	}
}
