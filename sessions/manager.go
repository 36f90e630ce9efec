// Package sessions — жизненный цикл сессий чата: создание, добавление
// сообщений (только в конец), закрытие и вычистка по неактивности.
package sessions

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"visionchatserver/apperrors"
	"visionchatserver/models"
	"visionchatserver/storage"
)

// SnapshotKey — ключ персистентного снимка сессий
const SnapshotKey = "chat_sessions"

// snapshotVersion — версия формата снимка
const snapshotVersion = "1"

const persistTimeout = 3 * time.Second

var sessionIDRe = regexp.MustCompile(`^chat_(public|admin)_[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Config — пороги менеджера сессий
type Config struct {
	InactivityTimeout time.Duration // сессия без активности считается истёкшей
	MaxSessions       int           // максимум одновременно активных сессий; 0 — без лимита
}

// GetDefaultConfig возвращает настройки менеджера сессий по умолчанию
func GetDefaultConfig() Config {
	return Config{
		InactivityTimeout: 30 * time.Minute,
		MaxSessions:       500,
	}
}

// Manager владеет картой сессий. Снимок лучшим образом дублируется
// в хранилище; повреждённый снимок даёт пустую карту.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession
	store    storage.Store
	cfg      Config
	now      func() time.Time
}

// NewManager создает менеджер и восстанавливает сессии из снимка
func NewManager(store storage.Store, cfg Config) *Manager {
	if cfg.InactivityTimeout <= 0 {
		cfg.InactivityTimeout = 30 * time.Minute
	}
	m := &Manager{
		sessions: make(map[string]*models.ChatSession),
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}
	m.load()
	return m
}

// NewSessionID генерирует идентификатор формата chat_<scope>_<token>
func NewSessionID(scope string) string {
	return fmt.Sprintf("chat_%s_%s", scope, uuid.New().String())
}

// ValidSessionID проверяет формат идентификатора
func ValidSessionID(id string) bool {
	return sessionIDRe.MatchString(id)
}

// GetOrCreate возвращает активную сессию либо создает новую.
// Неверный формат идентификатора и переполнение лимита — ошибки таксономии.
func (m *Manager) GetOrCreate(sessionID, sessionType string) (*models.ChatSession, error) {
	if !sessionIDRe.MatchString(sessionID) {
		return nil, apperrors.NewSessionError(apperrors.SessionNotFound, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		if m.expiredLocked(session) {
			delete(m.sessions, sessionID)
			return nil, apperrors.NewSessionError(apperrors.SessionExpired, sessionID)
		}
		return cloneLocked(session), nil
	}

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, apperrors.NewSessionError(apperrors.SessionLimitReached, sessionID)
	}

	session := &models.ChatSession{
		ID:           sessionID,
		Type:         sessionType,
		Messages:     []models.ChatMessage{},
		IsActive:     true,
		LastActivity: m.now(),
	}
	m.sessions[sessionID] = session
	m.persistLocked()
	log.Printf("[sessions] создана сессия %s (%s), всего активных: %d",
		sessionID, sessionType, len(m.sessions))
	return cloneLocked(session), nil
}

// Get возвращает существующую сессию
func (m *Manager) Get(sessionID string) (*models.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.NewSessionError(apperrors.SessionNotFound, sessionID)
	}
	if m.expiredLocked(session) {
		delete(m.sessions, sessionID)
		return nil, apperrors.NewSessionError(apperrors.SessionExpired, sessionID)
	}
	return cloneLocked(session), nil
}

// cloneLocked снимает копию сессии под мьютексом. Наружу живой
// указатель не выходит: вызывающий код сериализует и читает копию,
// пока Append меняет оригинал.
func cloneLocked(session *models.ChatSession) *models.ChatSession {
	out := *session
	out.Messages = make([]models.ChatMessage, len(session.Messages))
	copy(out.Messages, session.Messages)
	return &out
}

// Append добавляет сообщение в конец сессии и обновляет активность.
// Порядок сообщений — порядок вызовов Append.
func (m *Manager) Append(sessionID string, msg models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return apperrors.NewSessionError(apperrors.SessionNotFound, sessionID)
	}
	if !session.IsActive {
		return apperrors.NewSessionError(apperrors.SessionExpired, sessionID)
	}

	session.Messages = append(session.Messages, msg)
	session.LastActivity = m.now()
	m.persistLocked()
	return nil
}

// UpdateMessageStatus переводит статус сообщения (единственная
// допустимая мутация сохранённого сообщения)
func (m *Manager) UpdateMessageStatus(sessionID, messageID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return apperrors.NewSessionError(apperrors.SessionNotFound, sessionID)
	}
	for i := range session.Messages {
		if session.Messages[i].ID == messageID {
			session.Messages[i].Status = status
			m.persistLocked()
			return nil
		}
	}
	return apperrors.NewSessionError(apperrors.SessionNotFound, sessionID)
}

// Close помечает сессию завершённой (сигнал sessionComplete от
// автоматизации либо ручное закрытие)
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[sessionID]; ok {
		session.IsActive = false
		m.persistLocked()
		log.Printf("[sessions] сессия %s закрыта", sessionID)
	}
}

// List возвращает сводки всех сессий (для админки)
func (m *Manager) List() []models.ChatSessionSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ChatSessionSummary, 0, len(m.sessions))
	for _, session := range m.sessions {
		summary := models.ChatSessionSummary{
			ID:           session.ID,
			Type:         session.Type,
			IsActive:     session.IsActive,
			LastActivity: session.LastActivity,
			MessageCount: len(session.Messages),
		}
		if n := len(session.Messages); n > 0 {
			last := session.Messages[n-1]
			summary.LastMessage = &last
		}
		out = append(out, summary)
	}
	return out
}

// CleanupExpired удаляет истёкшие и закрытые сессии, возвращает
// количество удалённых
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, session := range m.sessions {
		if !session.IsActive || m.expiredLocked(session) {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.persistLocked()
		log.Printf("[sessions] вычищено %d сессий, осталось %d", removed, len(m.sessions))
	}
	return removed
}

func (m *Manager) expiredLocked(session *models.ChatSession) bool {
	return m.now().Sub(session.LastActivity) >= m.cfg.InactivityTimeout
}

// ─────────────────────────────── персистентность

func (m *Manager) load() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	data, err := m.store.Load(ctx, SnapshotKey)
	if err != nil {
		if err != storage.ErrNotFound {
			log.Printf("[sessions] не удалось загрузить снимок: %v", err)
		}
		return
	}

	var snapshot models.ChatSessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		log.Printf("[sessions] снимок повреждён, начинаем с пустого: %v", err)
		return
	}

	for _, session := range snapshot.Sessions {
		if session != nil && session.ID != "" {
			m.sessions[session.ID] = session
		}
	}
	log.Printf("[sessions] восстановлено %d сессий из снимка", len(m.sessions))
}

// persistLocked сохраняет снимок. Вызывается под mu; ошибка записи
// логируется и глотается.
func (m *Manager) persistLocked() {
	if m.store == nil {
		return
	}

	snapshot := models.ChatSessionSnapshot{
		Sessions:    make([]*models.ChatSession, 0, len(m.sessions)),
		Version:     snapshotVersion,
		LastCleanup: m.now(),
	}
	for _, session := range m.sessions {
		snapshot.Sessions = append(snapshot.Sessions, session)
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("[sessions] не удалось сериализовать снимок: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Save(ctx, SnapshotKey, data); err != nil {
		log.Printf("[sessions] не удалось сохранить снимок: %v", err)
	}
}
