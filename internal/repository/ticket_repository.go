package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/claim-bot/internal/domain"
)

// ErrDuplicateChannel is returned when a ticket already exists for a
// channel id.
var ErrDuplicateChannel = errors.New("ticket already exists for channel")

// TicketUpdate captures a partial ticket mutation. Nil fields are left
// untouched; the write is a single UPDATE so a transition is either
// fully committed or not at all.
type TicketUpdate struct {
	Stage          *domain.TicketStage
	Language       *domain.Language
	OrderID        *string
	RobloxUsername *string
	Timezone       *string
}

// TicketRepository encapsulates ticket persistence.
//
// Lookup methods return (nil, nil) when no record matches; callers treat
// that as a not-found signal, not an error. Update follows the same
// contract so a vanished record surfaces as nil instead of a failure.
type TicketRepository interface {
	Create(ctx context.Context, channelID, userID, serverName string) (*domain.Ticket, error)
	GetByChannel(ctx context.Context, channelID string, populateOrder bool) (*domain.Ticket, error)
	GetActiveByOrder(ctx context.Context, orderID, serverName string) (*domain.Ticket, error)
	Update(ctx context.Context, channelID string, update TicketUpdate) (*domain.Ticket, error)
	Delete(ctx context.Context, channelID string) (bool, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListByServer(ctx context.Context, serverName string) ([]domain.Ticket, error)
	CountActiveByUser(ctx context.Context, userID, serverName string) (int, error)
}

type ticketRepository struct {
	pool   *pgxpool.Pool
	orders OrderRepository
}

// NewTicketRepository instantiates the repository. The order repository
// backs the optional order populate on channel lookups.
func NewTicketRepository(pool *pgxpool.Pool, orders OrderRepository) TicketRepository {
	return &ticketRepository{pool: pool, orders: orders}
}

const ticketColumns = `channel_id, user_id, server_name, stage, language, order_id, roblox_username, timezone, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, channelID, userID, serverName string) (*domain.Ticket, error) {
	const query = `
        INSERT INTO tickets (channel_id, user_id, server_name, stage)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at, updated_at`
	ticket := &domain.Ticket{
		ChannelID:  channelID,
		UserID:     userID,
		ServerName: serverName,
		Stage:      domain.StageLanguagePreference,
	}
	err := r.pool.QueryRow(ctx, query, channelID, userID, serverName, domain.StageLanguagePreference).
		Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateChannel
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string, populateOrder bool) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE channel_id=$1`, ticketColumns)
	ticket, err := r.fetchSingle(ctx, query, channelID)
	if err != nil || ticket == nil {
		return ticket, err
	}
	if populateOrder && ticket.OrderID != nil {
		order, err := r.orders.FindByID(ctx, *ticket.OrderID)
		if err != nil {
			return nil, err
		}
		ticket.Order = order
	}
	return ticket, nil
}

func (r *ticketRepository) GetActiveByOrder(ctx context.Context, orderID, serverName string) (*domain.Ticket, error) {
	stages := domain.ActiveStages()
	placeholders := make([]string, len(stages))
	args := []any{orderID, serverName}
	for i, stage := range stages {
		args = append(args, stage)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE order_id=$1 AND server_name=$2 AND stage IN (%s)`,
		ticketColumns, strings.Join(placeholders, ","))
	return r.fetchSingle(ctx, query, args...)
}

func (r *ticketRepository) Update(ctx context.Context, channelID string, update TicketUpdate) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{}

	if update.Stage != nil {
		args = append(args, *update.Stage)
		sets = append(sets, fmt.Sprintf("stage=$%d", len(args)))
	}
	if update.Language != nil {
		args = append(args, *update.Language)
		sets = append(sets, fmt.Sprintf("language=$%d", len(args)))
	}
	if update.OrderID != nil {
		args = append(args, *update.OrderID)
		sets = append(sets, fmt.Sprintf("order_id=$%d", len(args)))
	}
	if update.RobloxUsername != nil {
		args = append(args, *update.RobloxUsername)
		sets = append(sets, fmt.Sprintf("roblox_username=$%d", len(args)))
	}
	if update.Timezone != nil {
		args = append(args, *update.Timezone)
		sets = append(sets, fmt.Sprintf("timezone=$%d", len(args)))
	}
	if len(sets) == 0 {
		return r.GetByChannel(ctx, channelID, false)
	}
	sets = append(sets, "updated_at=NOW()")

	args = append(args, channelID)
	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE channel_id=$%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), ticketColumns)

	ticket, err := scanTicketRow(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Delete(ctx context.Context, channelID string) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE channel_id=$1`, channelID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY created_at`, ticketColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByServer(ctx context.Context, serverName string) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE server_name=$1 ORDER BY created_at`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, serverName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountActiveByUser(ctx context.Context, userID, serverName string) (int, error) {
	stages := domain.ActiveStages()
	placeholders := make([]string, len(stages))
	args := []any{userID, serverName}
	for i, stage := range stages {
		args = append(args, stage)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM tickets WHERE user_id=$1 AND server_name=$2 AND stage IN (%s)`,
		strings.Join(placeholders, ","))
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	ticket, err := scanTicketRow(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ticket, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicketRow(row rowScanner) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ChannelID,
		&ticket.UserID,
		&ticket.ServerName,
		&ticket.Stage,
		&ticket.Language,
		&ticket.OrderID,
		&ticket.RobloxUsername,
		&ticket.Timezone,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicketRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
