package notify

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/claim-bot/internal/domain"
	"github.com/spec-kit/claim-bot/internal/platform"
)

type captureClient struct {
	platform.Client
	last platform.Message
}

func (c *captureClient) SendMessage(_ context.Context, _ string, msg platform.Message) error {
	c.last = msg
	return nil
}

func (c *captureClient) SendDirectMessage(_ context.Context, _ string, msg platform.Message) error {
	c.last = msg
	return nil
}

func TestRendererSubstitutesParams(t *testing.T) {
	client := &captureClient{}
	r := NewRenderer(client, zap.NewNop())

	err := r.Send(context.Background(), "chan-1", domain.LanguageEnglish, ScenarioOrderFound, Params{
		"orderId":        "1234",
		"robloxUsername": "builderman",
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(client.last.Content, "1234") || !strings.Contains(client.last.Content, "builderman") {
		t.Fatalf("placeholders not substituted: %q", client.last.Content)
	}
	if strings.Contains(client.last.Content, "{") {
		t.Fatalf("unresolved placeholder left in: %q", client.last.Content)
	}
}

func TestRendererSpanishTemplates(t *testing.T) {
	client := &captureClient{}
	r := NewRenderer(client, zap.NewNop())

	if err := r.Send(context.Background(), "chan-1", domain.LanguageSpanish, ScenarioOrderPrompt, nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(client.last.Content, "pedido") {
		t.Fatalf("expected Spanish template, got %q", client.last.Content)
	}
}

func TestRendererFallsBackToEnglish(t *testing.T) {
	client := &captureClient{}
	r := NewRenderer(client, zap.NewNop())

	// The transcript template is English only.
	if err := r.Send(context.Background(), "chan-1", domain.LanguageSpanish, ScenarioTranscript, Params{
		"orderId": "1234",
	}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if !strings.Contains(client.last.Content, "fulfilled") {
		t.Fatalf("expected English fallback, got %q", client.last.Content)
	}
}

func TestRendererAttachesSelectMenus(t *testing.T) {
	client := &captureClient{}
	r := NewRenderer(client, zap.NewNop())

	if err := r.Send(context.Background(), "chan-1", domain.LanguageEnglish, ScenarioWelcome, Params{"userId": "u1"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if client.last.Components == nil {
		t.Fatal("welcome should carry the language select menu")
	}

	if err := r.Send(context.Background(), "chan-1", domain.LanguageEnglish, ScenarioTimezonePrompt, nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if client.last.Components == nil {
		t.Fatal("timezone prompt should carry the timezone select menu")
	}

	if err := r.Send(context.Background(), "chan-1", domain.LanguageEnglish, ScenarioOrderPrompt, nil); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if client.last.Components != nil {
		t.Fatal("plain prompts must not carry components")
	}
}
