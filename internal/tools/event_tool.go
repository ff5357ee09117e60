package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/users"
)

// EventTool stores calendar events and schedules their pre-event reminders.
type EventTool struct {
	store   *users.Store
	service *cron.Service
}

func NewEventTool(store *users.Store, service *cron.Service) *EventTool {
	return &EventTool{store: store, service: service}
}

func (t *EventTool) Name() string { return "event" }

func (t *EventTool) Definition() providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        "event",
			Description: "Manage calendar events. Actions: add (store an event and schedule a heads-up reminder), list (upcoming events).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{"add", "list"},
					},
					"title": map[string]any{
						"type":        "string",
						"description": "event title (for add)",
					},
					"start_in_seconds": map[string]any{
						"type":        "integer",
						"description": "event start, seconds from now (for add)",
					},
				},
				"required": []string{"action"},
			},
		},
	}
}

func (t *EventTool) Execute(ctx context.Context, owner Owner, args map[string]any) (string, error) {
	switch strArg(args, "action") {
	case "add":
		title := strings.TrimSpace(strArg(args, "title"))
		inSeconds := intArg(args, "start_in_seconds")
		if title == "" || inSeconds <= 0 {
			return "", fmt.Errorf("add needs title and a future start")
		}
		startMS := time.Now().Add(time.Duration(inSeconds) * time.Second).UnixMilli()

		if err := t.store.AddEvent(owner.Channel, owner.ChatID, title, startMS); err != nil {
			return "", err
		}

		payload := cron.Payload{
			Kind:    cron.PayloadAgentTurn,
			Message: title,
			Deliver: true,
			Channel: owner.Channel,
			To:      owner.ChatID,
		}
		if _, err := t.service.AddWithLeads(title, startMS, payload, owner.Leads); err != nil {
			return "", err
		}
		when := cron.FormatLocalTime(startMS, owner.Timezone)
		return fmt.Sprintf("📅 %s — %s", title, when), nil

	case "list":
		events, err := t.store.ListEvents(owner.Channel, owner.ChatID, time.Now())
		if err != nil {
			return "", err
		}
		if len(events) == 0 {
			return "—", nil
		}
		var lines []string
		for _, e := range events {
			lines = append(lines, fmt.Sprintf("📅 %s — %s", e.Title, cron.FormatLocalTime(e.StartMS, owner.Timezone)))
		}
		return strings.Join(lines, "\n"), nil
	}
	return "", fmt.Errorf("unknown action %q", strArg(args, "action"))
}
