// Package offline — очередь недоставленных сообщений и заготовленные
// ответы на время недоступности вебхука.
package offline

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"visionchatserver/models"
	"visionchatserver/storage"
)

// PendingKey — ключ персистентного хранения очереди
const PendingKey = "chat_pending_messages"

const persistTimeout = 3 * time.Second

// Типы заготовленных ответов
const (
	FallbackGreeting = "greeting"
	FallbackGeneral  = "general"
)

// Config содержит настройки оффлайн-менеджера
type Config struct {
	MaxAge           time.Duration // срок жизни сообщения в очереди
	SmartResponses   bool          // классифицировать входящий текст
	GreetingKeywords []string      // ключевые слова приветствия (без учёта регистра)
	GreetingResponse string        // ответ на приветствие
	GeneralResponse  string        // ответ на всё остальное
}

// GetDefaultConfig возвращает настройки оффлайн-менеджера по умолчанию
func GetDefaultConfig() Config {
	return Config{
		MaxAge:         7 * 24 * time.Hour,
		SmartResponses: false,
	}
}

// defaultOfflineMessage — встроенный ответ, когда ничего не настроено
const defaultOfflineMessage = "Сейчас мы не в сети. Ваше сообщение сохранено и будет обработано, как только связь восстановится."

// FallbackResponse — заготовленный ответ вместо ответа автоматизации
type FallbackResponse struct {
	Response  string    `json:"response"`
	Type      string    `json:"type"` // "greeting" или "general"
	Timestamp time.Time `json:"timestamp"`
}

// Stats — сводка состояния очереди
type Stats struct {
	TotalPendingMessages int           `json:"totalPendingMessages"`
	SessionCount         int           `json:"sessionCount"`
	OldestMessageAge     time.Duration `json:"oldestMessageAge"`
	StorageSize          int           `json:"storageSize"`
}

// Manager держит очередь в памяти и лучшим образом дублирует её
// в хранилище. Память — источник истины для текущего процесса:
// сбой записи в хранилище не роняет постановку в очередь.
type Manager struct {
	mu      sync.Mutex
	store   storage.Store
	cfg     Config
	pending []*models.PendingOfflineMessage
	now     func() time.Time
}

// NewManager создает менеджер и загружает сохранённую очередь.
// Повреждённые данные дают пустую очередь, а не ошибку; записи старше
// MaxAge отбрасываются при загрузке.
func NewManager(store storage.Store, cfg Config) *Manager {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	m := &Manager{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	m.load()
	return m
}

func (m *Manager) load() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := m.store.Load(ctx, PendingKey)
	if err != nil {
		if err != storage.ErrNotFound {
			log.Printf("[offline] не удалось загрузить очередь: %v", err)
		}
		return
	}

	var saved []*models.PendingOfflineMessage
	if err := json.Unmarshal(data, &saved); err != nil {
		log.Printf("[offline] очередь повреждена, начинаем с пустой: %v", err)
		return
	}

	cutoff := m.now().Add(-m.cfg.MaxAge)
	kept := saved[:0]
	for _, msg := range saved {
		if msg != nil && msg.Timestamp.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	m.pending = kept
	log.Printf("[offline] загружено %d отложенных сообщений (%d устаревших отброшено)",
		len(kept), len(saved)-len(kept))
}

// StoreOfflineMessage ставит сообщение в очередь. Никогда не возвращает
// ошибку: персистентность — best-effort, память остаётся авторитетной.
func (m *Manager) StoreOfflineMessage(content, sessionID string, metadata map[string]interface{}) *models.PendingOfflineMessage {
	msg := &models.PendingOfflineMessage{
		ID:        uuid.New().String(),
		Content:   content,
		SessionID: sessionID,
		Timestamp: m.now(),
		Metadata:  metadata,
	}

	m.mu.Lock()
	m.pending = append(m.pending, msg)
	m.persistLocked()
	m.mu.Unlock()

	log.Printf("[offline] сообщение %s поставлено в очередь (сессия %s)", msg.ID, sessionID)
	return msg
}

// PendingMessages возвращает копию очереди в порядке постановки
func (m *Manager) PendingMessages() []*models.PendingOfflineMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.PendingOfflineMessage, len(m.pending))
	copy(out, m.pending)
	return out
}

// RemovePendingMessage удаляет сообщение по идентификатору
func (m *Manager) RemovePendingMessage(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, msg := range m.pending {
		if msg.ID == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			m.persistLocked()
			return true
		}
	}
	return false
}

// ClearPendingMessages очищает очередь целиком
func (m *Manager) ClearPendingMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	m.persistLocked()
}

// GenerateFallbackResponse подбирает заготовленный ответ на текст.
// В «умном» режиме приветствие распознаётся по настроенным ключевым
// словам; без настроек возвращается встроенное оффлайн-сообщение.
func (m *Manager) GenerateFallbackResponse(text string) FallbackResponse {
	resp := FallbackResponse{
		Type:      FallbackGeneral,
		Timestamp: m.now(),
	}

	if m.cfg.SmartResponses && m.isGreeting(text) {
		resp.Type = FallbackGreeting
		resp.Response = m.cfg.GreetingResponse
	} else {
		resp.Response = m.cfg.GeneralResponse
	}

	if resp.Response == "" {
		resp.Response = defaultOfflineMessage
	}
	return resp
}

func (m *Manager) isGreeting(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, keyword := range m.cfg.GreetingKeywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// Stats возвращает сводку очереди; при пустой очереди все поля нулевые
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return Stats{}
	}

	sessions := make(map[string]struct{})
	oldest := m.pending[0].Timestamp
	for _, msg := range m.pending {
		sessions[msg.SessionID] = struct{}{}
		if msg.Timestamp.Before(oldest) {
			oldest = msg.Timestamp
		}
	}

	size := 0
	if data, err := json.Marshal(m.pending); err == nil {
		size = len(data)
	}

	return Stats{
		TotalPendingMessages: len(m.pending),
		SessionCount:         len(sessions),
		OldestMessageAge:     m.now().Sub(oldest),
		StorageSize:          size,
	}
}

// Flush пытается переотправить очередь через send. Успешно отправленные
// сообщения удаляются; первая неудача останавливает проход, чтобы не
// молотить недоступный вебхук.
func (m *Manager) Flush(ctx context.Context, send func(ctx context.Context, msg *models.PendingOfflineMessage) error) (sent, failed int) {
	for _, msg := range m.PendingMessages() {
		if err := send(ctx, msg); err != nil {
			log.Printf("[offline] переотправка %s не удалась: %v", msg.ID, err)
			failed++
			break
		}
		m.RemovePendingMessage(msg.ID)
		sent++
	}
	if sent > 0 {
		log.Printf("[offline] переотправлено %d сообщений, осталось %d", sent, len(m.PendingMessages()))
	}
	return sent, failed
}

// persistLocked сохраняет очередь в хранилище. Вызывается под mu.
// Ошибка записи логируется и глотается.
func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}

	data, err := json.Marshal(m.pending)
	if err != nil {
		log.Printf("[offline] не удалось сериализовать очередь: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Save(ctx, PendingKey, data); err != nil {
		log.Printf("[offline] не удалось сохранить очередь: %v", err)
	}
}
