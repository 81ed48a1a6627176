package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/enroll/queue-server-go/internal/model"
)

// QueueRepository owns the queue table. Every ordered read uses
// timestamp, then phone, so equal timestamps still give a stable order.
type QueueRepository interface {
	Create(ctx context.Context, params model.CreateQueueEntryParams) error
	FindRank(ctx context.Context, phone string) (*model.Rank, error)
	FindByType(ctx context.Context, queueType model.QueueType) ([]model.QueueEntry, error)
	FindAtOffset(ctx context.Context, queueType model.QueueType, offset int) (*model.QueueEntry, error)
	CountByType(ctx context.Context) (map[model.QueueType]int, error)
	Delete(ctx context.Context, phone string, queueType model.QueueType) (bool, error)
}

type queueRepo struct {
	db *sqlx.DB
}

func NewQueueRepository(db *sqlx.DB) QueueRepository {
	return &queueRepo{db: db}
}

func (r *queueRepo) Create(ctx context.Context, params model.CreateQueueEntryParams) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO queue (phone, timestamp, type) VALUES (?, ?, ?)
	`), params.Phone, params.Timestamp, params.Type)
	if isUniqueViolation(err) {
		return ErrDuplicatePhone
	}
	return err
}

func (r *queueRepo) FindRank(ctx context.Context, phone string) (*model.Rank, error) {
	var rank model.Rank
	err := r.db.GetContext(ctx, &rank, r.db.Rebind(`
		SELECT type, rank FROM (
			SELECT phone, type, ROW_NUMBER() OVER (
				PARTITION BY type ORDER BY timestamp ASC, phone ASC
			) AS rank
			FROM queue
		) ranked
		WHERE phone = ?
	`), phone)
	return HandleNotFound(&rank, err)
}

func (r *queueRepo) FindByType(ctx context.Context, queueType model.QueueType) ([]model.QueueEntry, error) {
	entries := []model.QueueEntry{}
	err := r.db.SelectContext(ctx, &entries, r.db.Rebind(`
		SELECT phone, timestamp, type FROM queue
		WHERE type = ?
		ORDER BY timestamp ASC, phone ASC
	`), queueType)
	return entries, err
}

func (r *queueRepo) FindAtOffset(ctx context.Context, queueType model.QueueType, offset int) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := r.db.GetContext(ctx, &entry, r.db.Rebind(`
		SELECT phone, timestamp, type FROM queue
		WHERE type = ?
		ORDER BY timestamp ASC, phone ASC
		LIMIT 1 OFFSET ?
	`), queueType, offset)
	return HandleNotFound(&entry, err)
}

func (r *queueRepo) CountByType(ctx context.Context) (map[model.QueueType]int, error) {
	var rows []struct {
		Type  model.QueueType `db:"type"`
		Count int             `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT type, COUNT(*) AS count FROM queue GROUP BY type
	`)
	if err != nil {
		return nil, err
	}

	counts := make(map[model.QueueType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}

func (r *queueRepo) Delete(ctx context.Context, phone string, queueType model.QueueType) (bool, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM queue WHERE phone = ? AND type = ?
	`), phone, queueType)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
