package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierbot/pkg/logger"
	"courierbot/pkg/models"
	"courierbot/storage"
)

type courierRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewCourierRepo(db *pgxpool.Pool, log logger.ILogger) storage.ICourierStorage {
	return &courierRepo{db: db, log: log}
}

const courierColumns = `id, chat_id, full_name, active, created_at`

func (r *courierRepo) GetByChatID(ctx context.Context, chatID int64) (*models.Courier, error) {
	return r.get(ctx, `SELECT `+courierColumns+` FROM couriers WHERE chat_id = $1`, chatID)
}

func (r *courierRepo) GetByID(ctx context.Context, id int64) (*models.Courier, error) {
	return r.get(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = $1`, id)
}

func (r *courierRepo) get(ctx context.Context, query string, arg int64) (*models.Courier, error) {
	var c models.Courier
	err := r.db.QueryRow(ctx, query, arg).Scan(&c.ID, &c.ChatID, &c.FullName, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.log.Error("failed to get courier", logger.Error(err))
		return nil, err
	}
	return &c, nil
}
