package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/api/dto"
	"github.com/spec-kit/claim-bot/internal/auth"
	"github.com/spec-kit/claim-bot/internal/config"
	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/lifecycle"
	"github.com/spec-kit/claim-bot/internal/observability"
	"github.com/spec-kit/claim-bot/internal/repository"
	apperrors "github.com/spec-kit/claim-bot/pkg/util"
)

// AdminHandler serves the operator endpoints: login, ticket inspection
// and the manual cleanup commands. Operators authenticate with the
// configured credentials rather than a chat-platform role.
type AdminHandler struct {
	authCfg   config.AuthConfig
	tokens    *auth.TokenManager
	tickets   repository.TicketRepository
	lifecycle *lifecycle.Manager
	servers   config.ServerTable
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAdminHandler returns a new handler instance.
func NewAdminHandler(authCfg config.AuthConfig, tokens *auth.TokenManager, tickets repository.TicketRepository, manager *lifecycle.Manager, servers config.ServerTable, metrics *observability.Metrics, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		authCfg:   authCfg,
		tokens:    tokens,
		tickets:   tickets,
		lifecycle: manager,
		servers:   servers,
		metrics:   metrics,
		logger:    logger,
	}
}

// Login authenticates the operator and issues a bearer token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password are required", nil)
	}

	if req.Username != h.authCfg.AdminUsername ||
		auth.ComparePassword(h.authCfg.AdminPasswordHash, req.Password) != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(req.Username)
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(dto.AdminLoginResponse{Token: token, ExpiresAt: expiresAt})
}

// ListTickets returns all tickets, optionally filtered by server.
func (h *AdminHandler) ListTickets(c *fiber.Ctx) error {
	server := c.Query("server")

	var err error
	var tickets []domain.Ticket
	if server != "" {
		if _, ok := h.servers.Get(server); !ok {
			return apperrors.NewNotFound("server", map[string]any{"server": server})
		}
		tickets, err = h.tickets.ListByServer(c.UserContext(), server)
	} else {
		tickets, err = h.tickets.ListAll(c.UserContext())
	}
	if err != nil {
		return apperrors.MapError(err)
	}

	out := make([]dto.TicketResponse, len(tickets))
	for i, ticket := range tickets {
		out[i] = dto.FromTicket(ticket)
	}
	return c.JSON(fiber.Map{"tickets": out})
}

// Cleanup runs the orphaned-channel sweep, optionally scoped to one
// server.
func (h *AdminHandler) Cleanup(c *fiber.Ctx) error {
	var req dto.CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid request body", nil)
		}
	}
	if req.Server != "" {
		if _, ok := h.servers.Get(req.Server); !ok {
			return apperrors.NewNotFound("server", map[string]any{"server": req.Server})
		}
	}

	deleted, err := h.lifecycle.CleanupOrphanedChannels(c.UserContext(), req.Server)
	if err != nil {
		return apperrors.MapError(err)
	}
	h.logger.Info("operator cleanup finished", zap.String("server", req.Server), zap.Int("deleted", deleted))
	return c.JSON(dto.CleanupResponse{Deleted: deleted})
}

// PurgeCompleted deletes every completed-ticket channel in the named
// server's guild.
func (h *AdminHandler) PurgeCompleted(c *fiber.Ctx) error {
	var req dto.PurgeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid request body", nil)
	}
	if req.Server == "" {
		return apperrors.NewValidationError("server is required", nil)
	}
	server, ok := h.servers.Get(req.Server)
	if !ok {
		return apperrors.NewNotFound("server", map[string]any{"server": req.Server})
	}

	deleted, failed, err := h.lifecycle.DeleteChannelsByPrefix(
		c.UserContext(), server.GuildID, "completed-", "Completed ticket purge")
	if err != nil {
		return apperrors.MapError(err)
	}
	h.logger.Info("operator purge finished",
		zap.String("server", req.Server), zap.Int("deleted", deleted), zap.Int("failed", failed))
	return c.JSON(dto.PurgeResponse{Deleted: deleted, Failed: failed})
}

// Metrics exposes the lifecycle counters.
func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"counters": h.metrics.Snapshot()})
}
