package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/providers"
)

// MessageTool sends an additional outbound message to the calling chat,
// beyond the turn's single direct reply. Always addressed to the owner; the
// agent cannot target other chats.
type MessageTool struct {
	router bus.MessageRouter
}

func NewMessageTool(router bus.MessageRouter) *MessageTool {
	return &MessageTool{router: router}
}

func (t *MessageTool) Name() string { return "message" }

func (t *MessageTool) Definition() providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        "message",
			Description: "Send an extra chat message to the user immediately, separate from your final reply.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "message content",
					},
				},
				"required": []string{"text"},
			},
		},
	}
}

func (t *MessageTool) Execute(ctx context.Context, owner Owner, args map[string]any) (string, error) {
	text := strings.TrimSpace(strArg(args, "text"))
	if text == "" {
		return "", fmt.Errorf("text is required")
	}

	t.router.PublishOutbound(bus.OutboundMessage{
		Channel: owner.Channel,
		ChatID:  owner.ChatID,
		Content: text,
	})
	return "sent", nil
}
