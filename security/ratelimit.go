package security

import (
	"sync"
	"time"
)

// rateEntry — счётчик одного идентификатора в текущем окне
type rateEntry struct {
	count       int
	windowStart time.Time
}

// RateLimiter — лимитер запросов с фиксированным окном на идентификатор.
// Экземпляр создаётся композиционным корнем и передаётся явно,
// а не живёт синглтоном на уровне пакета.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateEntry
	now     func() time.Time // подменяется в тестах
}

// NewRateLimiter создает пустой лимитер
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*rateEntry),
		now:     time.Now,
	}
}

// Check атомарно проверяет и учитывает один запрос для identity.
// Счётчики разных идентификаторов полностью независимы.
// По истечении окна счётчик сбрасывается: первый запрос нового окна
// разрешён и оставляет maxRequests-1.
func (rl *RateLimiter) Check(identity string, maxRequests int, window time.Duration) (allowed bool, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.entries[identity]
	if !ok || now.Sub(entry.windowStart) >= window {
		rl.entries[identity] = &rateEntry{count: 1, windowStart: now}
		return true, maxRequests - 1
	}

	if entry.count >= maxRequests {
		return false, 0
	}

	entry.count++
	return true, maxRequests - entry.count
}

// Reset сбрасывает счётчик идентификатора (например, после ручной разблокировки)
func (rl *RateLimiter) Reset(identity string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, identity)
}

// Len возвращает количество отслеживаемых идентификаторов
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// Cleanup удаляет записи, чьё окно истекло давнее maxIdle назад.
// Вызывается периодически из композиционного корня.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for identity, entry := range rl.entries {
		if now.Sub(entry.windowStart) >= maxIdle {
			delete(rl.entries, identity)
			removed++
		}
	}
	return removed
}
