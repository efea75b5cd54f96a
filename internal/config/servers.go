package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ServerConfig describes one storefront community the bot serves.
type ServerConfig struct {
	Name           string `json:"name"`
	GuildID        string `json:"guild"`
	ClaimChannelID string `json:"claim"`
	AdminRoleID    string `json:"admin-role"`
	CustomerRoleID string `json:"customer-role"`
	ReviewsChannel string `json:"reviews-channel"`
	TranscriptID   string `json:"transcript"`
}

// ServerTable maps server keys to their configuration. Injected into the
// components that need role or guild lookups rather than read as a
// package-level table.
type ServerTable map[string]ServerConfig

// LoadServers reads the server table from a JSON file.
func LoadServers(path string) (ServerTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read server table: %w", err)
	}
	var table ServerTable
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse server table: %w", err)
	}
	for key, server := range table {
		if server.GuildID == "" {
			return nil, fmt.Errorf("server %q missing guild id", key)
		}
	}
	return table, nil
}

// ByGuild resolves the server entry owning a guild id.
func (t ServerTable) ByGuild(guildID string) (ServerConfig, bool) {
	for _, server := range t {
		if server.GuildID == guildID {
			return server, true
		}
	}
	return ServerConfig{}, false
}

// Get returns the entry for a server key.
func (t ServerTable) Get(name string) (ServerConfig, bool) {
	server, ok := t[name]
	return server, ok
}
