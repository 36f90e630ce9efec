package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// Загружаем переменные окружения из .env файла
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	db, err := sql.Open("pgx", buildDSN())
	if err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Ошибка проверки соединения с БД: %v", err)
	}
	log.Println("Успешное подключение к базе данных")

	createTables(db)

	// Создаем тестового администратора
	adminID := uuid.New().String()
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(env("SEED_ADMIN_PASSWORD", "password")), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Ошибка хеширования пароля: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO admins (id, name, email, password_hash, role, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
	`, adminID, "Администратор", env("SEED_ADMIN_EMAIL", "admin@example.com"), string(passwordHash), "admin", true)
	if err != nil {
		log.Fatalf("Ошибка создания тестового администратора: %v", err)
	}
	log.Printf("Создан тестовый администратор с ID: %s", adminID)

	seedTemplates(db)

	log.Println("База данных успешно инициализирована")
}

// Создание таблиц базы данных
func createTables(db *sql.DB) {
	// Таблица администраторов
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы admins: %v", err)
	}

	// Таблица шаблонов уведомлений
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS notification_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			subject TEXT,
			content TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		log.Fatalf("Ошибка создания таблицы notification_templates: %v", err)
	}

	log.Println("Все таблицы успешно созданы")
}

// Стартовый набор шаблонов уведомлений
func seedTemplates(db *sql.DB) {
	now := time.Now().UTC()

	templates := []struct {
		name    string
		tplType string
		subject string
		content string
	}{
		{
			name:    "Подтверждение записи (email)",
			tplType: "email",
			subject: "Запись на {{event_name}} подтверждена",
			content: "Здравствуйте, {{patient_name}}!\n\nВаша запись на {{event_name}} подтверждена.\nДата: {{event_date}} в {{event_time}}\nМесто: {{event_location}}\n\nПодтвердить участие: {{confirmation_link}}\n\nС уважением, {{system_name}}",
		},
		{
			name:    "Напоминание (whatsapp)",
			tplType: "whatsapp",
			subject: "",
			content: "{{patient_name}}, напоминаем: завтра {{event_date}} в {{event_time}} вас ждут на {{event_name}}. Адрес: {{event_location}}",
		},
		{
			name:    "Короткое напоминание (sms)",
			tplType: "sms",
			subject: "",
			content: "{{event_name}}: {{event_date}} {{event_time}}, {{event_location}}",
		},
	}

	for _, tpl := range templates {
		var subject interface{}
		if tpl.subject != "" {
			subject = tpl.subject
		}

		_, err := db.Exec(`
			INSERT INTO notification_templates (id, name, type, subject, content, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), tpl.name, tpl.tplType, subject, tpl.content, true, now, now)
		if err != nil {
			log.Fatalf("Ошибка создания шаблона %q: %v", tpl.name, err)
		}
		log.Printf("Создан шаблон: %s (%s)", tpl.name, tpl.tplType)
	}
}

func buildDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		env("PG_HOST", "localhost"),
		env("PG_PORT", "5432"),
		env("PG_USER", "postgres"),
		os.Getenv("PG_PASSWORD"),
		env("PG_DATABASE", "visionchat"),
		env("PG_SSL_MODE", "disable"),
	)
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
