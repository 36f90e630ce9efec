package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"visionchatserver/models"
)

// GetAdmin возвращает администратора по email
func GetAdmin(email string) (*models.Admin, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbQueryTimeout)
	defer cancel()

	var admin models.Admin
	err := DB.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, role, active
		FROM admins WHERE email = $1`,
		email,
	).Scan(&admin.ID, &admin.Name, &admin.Email, &admin.PasswordHash, &admin.Role, &admin.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("администратор %s не найден", email)
	}
	if err != nil {
		return nil, fmt.Errorf("запрос администратора: %w", err)
	}

	return &admin, nil
}

// VerifyPassword сверяет пароль с bcrypt-хешем из базы
func VerifyPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
