package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"visionchatserver/models"
)

// ─────────────────────────── шаблоны уведомлений

// ListTemplates возвращает шаблоны, опционально фильтруя по каналу
// и активности
func ListTemplates(templateType string, onlyActive bool) ([]models.NotificationTemplate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	query := `
		SELECT id, name, type, COALESCE(subject, ''), content, is_active, created_at, updated_at
		FROM notification_templates
		WHERE ($1 = '' OR type = $1) AND (NOT $2 OR is_active)
		ORDER BY name`

	rows, err := DB.QueryContext(ctx, query, templateType, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("запрос шаблонов: %w", err)
	}
	defer rows.Close()

	var out []models.NotificationTemplate
	for rows.Next() {
		var tpl models.NotificationTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Type, &tpl.Subject,
			&tpl.Content, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("чтение шаблона: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

// GetTemplate возвращает шаблон по идентификатору
func GetTemplate(id string) (*models.NotificationTemplate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	var tpl models.NotificationTemplate
	err := DB.QueryRowContext(ctx, `
		SELECT id, name, type, COALESCE(subject, ''), content, is_active, created_at, updated_at
		FROM notification_templates WHERE id = $1`,
		id,
	).Scan(&tpl.ID, &tpl.Name, &tpl.Type, &tpl.Subject,
		&tpl.Content, &tpl.IsActive, &tpl.CreatedAt, &tpl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("шаблон %s не найден", id)
	}
	if err != nil {
		return nil, fmt.Errorf("запрос шаблона: %w", err)
	}
	return &tpl, nil
}

// CreateTemplate сохраняет новый шаблон и возвращает его с
// заполненными id и метками времени
func CreateTemplate(tpl models.NotificationTemplate) (*models.NotificationTemplate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	tpl.ID = uuid.New().String()
	now := time.Now()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now

	_, err := DB.ExecContext(ctx, `
		INSERT INTO notification_templates (id, name, type, subject, content, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tpl.ID, tpl.Name, tpl.Type, tpl.Subject, tpl.Content, tpl.IsActive, tpl.CreatedAt, tpl.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("создание шаблона: %w", err)
	}

	log.Printf("[database] создан шаблон %s (%s/%s)", tpl.ID, tpl.Type, tpl.Name)
	return &tpl, nil
}

// UpdateTemplate обновляет существующий шаблон
func UpdateTemplate(tpl models.NotificationTemplate) (*models.NotificationTemplate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	tpl.UpdatedAt = time.Now()
	res, err := DB.ExecContext(ctx, `
		UPDATE notification_templates
		SET name = $2, type = $3, subject = $4, content = $5, is_active = $6, updated_at = $7
		WHERE id = $1`,
		tpl.ID, tpl.Name, tpl.Type, tpl.Subject, tpl.Content, tpl.IsActive, tpl.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("обновление шаблона: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("шаблон %s не найден", tpl.ID)
	}
	return &tpl, nil
}

// DeleteTemplate удаляет шаблон
func DeleteTemplate(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	res, err := DB.ExecContext(ctx, `DELETE FROM notification_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("удаление шаблона: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("шаблон %s не найден", id)
	}
	log.Printf("[database] удалён шаблон %s", id)
	return nil
}
