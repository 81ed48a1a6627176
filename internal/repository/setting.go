package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/enroll/queue-server-go/internal/model"
)

type SettingRepository interface {
	Get(ctx context.Context, key string) (*model.Setting, error)
	Set(ctx context.Context, key, value string) error
}

type settingRepo struct {
	db *sqlx.DB
}

func NewSettingRepository(db *sqlx.DB) SettingRepository {
	return &settingRepo{db: db}
}

func (r *settingRepo) Get(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`
		SELECT key, value FROM settings WHERE key = ?
	`), key)
	return HandleNotFound(&s, err)
}

func (r *settingRepo) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`), key, value)
	return err
}
