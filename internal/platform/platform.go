// Package platform defines the chat-platform collaborator boundary. The
// SDK binding lives outside the core; everything here is the minimal
// surface the ticket lifecycle needs, with sentinel errors standing in
// for the platform's error codes.
package platform

import (
	"context"
	"errors"
)

// Sentinel errors the core classifies platform failures into. The SDK
// binding wraps its error codes with these so callers can use errors.Is.
var (
	// ErrUnknownChannel maps the platform's "channel no longer exists"
	// failure (deleted externally, or never existed).
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrMissingPermissions maps the platform's permission denial.
	ErrMissingPermissions = errors.New("missing permissions")
)

// Channel is the live-channel view the core works with.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// CreateChannelSpec describes a ticket channel to create. Permission
// layout (owner, bot, admin role) is applied by the SDK binding.
type CreateChannelSpec struct {
	GuildID     string
	Name        string
	Topic       string
	OwnerUserID string
	AdminRoleID string
}

// Message is an opaque user-facing payload produced by the notifier.
type Message struct {
	Content    string
	Embed      any
	Components any
}

// Client is the messaging platform boundary consumed by the core.
type Client interface {
	FetchChannel(ctx context.Context, channelID string) (*Channel, error)
	CreateChannel(ctx context.Context, spec CreateChannelSpec) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	RenameChannel(ctx context.Context, channelID, name, reason string) error
	ListGuildChannels(ctx context.Context, guildID string) ([]Channel, error)
	SendMessage(ctx context.Context, channelID string, message Message) error
	SendDirectMessage(ctx context.Context, userID string, message Message) error
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
}
