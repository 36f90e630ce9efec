package security

import (
	"testing"
	"time"
)

// limiterAt возвращает лимитер с управляемыми часами
func limiterAt(start time.Time) (*RateLimiter, *time.Time) {
	current := start
	rl := NewRateLimiter()
	rl.now = func() time.Time { return current }
	return rl, &current
}

func TestRateLimiterWindow(t *testing.T) {
	rl, _ := limiterAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	const max = 5
	for i := 0; i < max; i++ {
		allowed, remaining := rl.Check("user1", max, time.Minute)
		if !allowed {
			t.Fatalf("запрос %d должен быть разрешён", i+1)
		}
		if want := max - i - 1; remaining != want {
			t.Errorf("запрос %d: remaining = %d, ожидалось %d", i+1, remaining, want)
		}
	}

	// Запрос сверх лимита
	allowed, remaining := rl.Check("user1", max, time.Minute)
	if allowed || remaining != 0 {
		t.Errorf("запрос сверх лимита: allowed=%v remaining=%d", allowed, remaining)
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl, clock := limiterAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		rl.Check("user1", 3, time.Minute)
	}
	if allowed, _ := rl.Check("user1", 3, time.Minute); allowed {
		t.Fatal("лимит должен быть исчерпан")
	}

	// Ровно через окно счётчик начинается заново
	*clock = clock.Add(time.Minute)
	allowed, remaining := rl.Check("user1", 3, time.Minute)
	if !allowed || remaining != 2 {
		t.Errorf("новое окно: allowed=%v remaining=%d, ожидалось true/2", allowed, remaining)
	}
}

func TestRateLimiterIdentitiesIndependent(t *testing.T) {
	rl, _ := limiterAt(time.Now())

	for i := 0; i < 2; i++ {
		rl.Check("user1", 2, time.Minute)
	}
	if allowed, _ := rl.Check("user1", 2, time.Minute); allowed {
		t.Error("user1 должен быть заблокирован")
	}
	if allowed, _ := rl.Check("user2", 2, time.Minute); !allowed {
		t.Error("блокировка user1 не должна задевать user2")
	}
}

func TestRateLimiterReset(t *testing.T) {
	rl, _ := limiterAt(time.Now())

	rl.Check("user1", 1, time.Minute)
	if allowed, _ := rl.Check("user1", 1, time.Minute); allowed {
		t.Fatal("лимит должен быть исчерпан")
	}

	rl.Reset("user1")
	if allowed, _ := rl.Check("user1", 1, time.Minute); !allowed {
		t.Error("после Reset запрос должен проходить")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := limiterAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	rl.Check("old", 5, time.Minute)
	*clock = clock.Add(30 * time.Minute)
	rl.Check("fresh", 5, time.Minute)

	removed := rl.Cleanup(10 * time.Minute)
	if removed != 1 {
		t.Errorf("Cleanup удалил %d записей, ожидалась 1", removed)
	}
	if rl.Len() != 1 {
		t.Errorf("Len = %d, ожидалась 1", rl.Len())
	}
}
