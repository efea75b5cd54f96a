package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/claim-bot/internal/domain"
)

// OrderRepository reads and updates the locally cached order records. The
// commerce service owns order data; this store only mirrors what claim
// verification needs.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository instantiates the repository.
func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &orderRepository{pool: pool}
}

func (r *orderRepository) FindByID(ctx context.Context, orderID string) (*domain.Order, error) {
	const query = `
        SELECT id, email, items, total_amount, status, game,
               receiver_username, receiver_display_name, receiver_id, receiver_thumbnail,
               created_at, updated_at
        FROM orders WHERE id=$1`

	var order domain.Order
	var itemsRaw []byte
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&order.ID,
		&order.Email,
		&itemsRaw,
		&order.TotalAmount,
		&order.Status,
		&order.Game,
		&order.Receiver.Username,
		&order.Receiver.DisplayName,
		&order.Receiver.ID,
		&order.Receiver.Thumbnail,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
			return nil, err
		}
	}
	return &order, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (bool, error) {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, orderID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
