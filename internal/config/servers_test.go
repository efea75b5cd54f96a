package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeServerFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestLoadServers(t *testing.T) {
	path := writeServerFile(t, `{
		"bloxy-market": {
			"name": "bloxy-market",
			"guild": "guild-1",
			"claim": "chan-claim",
			"admin-role": "role-admin",
			"customer-role": "role-customer",
			"reviews-channel": "chan-reviews",
			"transcript": "chan-transcript"
		}
	}`)

	table, err := LoadServers(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	server, ok := table.Get("bloxy-market")
	if !ok {
		t.Fatal("expected bloxy-market entry")
	}
	if server.GuildID != "guild-1" || server.AdminRoleID != "role-admin" {
		t.Fatalf("unexpected entry: %+v", server)
	}

	byGuild, ok := table.ByGuild("guild-1")
	if !ok || byGuild.Name != "bloxy-market" {
		t.Fatal("guild lookup failed")
	}
	if _, ok := table.ByGuild("guild-unknown"); ok {
		t.Fatal("unknown guild must not resolve")
	}
}

func TestLoadServersRejectsMissingGuild(t *testing.T) {
	path := writeServerFile(t, `{"broken": {"name": "broken"}}`)
	if _, err := LoadServers(path); err == nil {
		t.Fatal("entry without a guild id must be rejected")
	}
}

func TestLoadServersMissingFile(t *testing.T) {
	if _, err := LoadServers(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("missing file must error")
	}
}

func TestTicketTimingDurations(t *testing.T) {
	timing := TicketConfig{
		InactivitySeconds:     120,
		ReconcileArmSeconds:   60,
		CompletedDelaySeconds: 90,
		CleanupPacingMillis:   250,
	}
	if timing.InactivityTimeout().Seconds() != 120 {
		t.Error("inactivity timeout mismatch")
	}
	if timing.ReconcileArmTimeout().Seconds() != 60 {
		t.Error("reconcile arm timeout mismatch")
	}
	if timing.CancelledDeleteDelay().Seconds() != 90 {
		t.Error("cancelled delete delay mismatch")
	}
	if timing.CleanupPacing().Milliseconds() != 250 {
		t.Error("cleanup pacing mismatch")
	}
}
