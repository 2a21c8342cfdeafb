package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/dbx"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.Transaction) error {
	query :=
		`INSERT INTO transactions (id, sender_id, receiver_id, amount, type, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`

	var sender sql.NullInt64
	if t.SenderID != nil {
		sender = sql.NullInt64{Int64: *t.SenderID, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		t.ID, sender, t.ReceiverID, t.Amount, t.Type, t.Status).Scan(&t.CreatedAt)
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	query :=
		`SELECT t.id, t.sender_id, t.receiver_id, t.amount, t.type, t.status, t.created_at,
		 COALESCE(s.username, ''), r.username
		 FROM transactions t
		 LEFT JOIN users s ON s.id = t.sender_id
		 JOIN users r ON r.id = t.receiver_id
		 WHERE t.sender_id = $1 OR t.receiver_id = $1
		 ORDER BY t.created_at DESC
		 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		var sender sql.NullInt64
		if err := rows.Scan(&t.ID, &sender, &t.ReceiverID, &t.Amount, &t.Type, &t.Status, &t.CreatedAt,
			&t.SenderUsername, &t.ReceiverUsername); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if sender.Valid {
			id := sender.Int64
			t.SenderID = &id
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
