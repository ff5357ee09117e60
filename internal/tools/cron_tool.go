package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/users"
)

// CronTool lets the agent schedule, list and remove reminders.
type CronTool struct {
	service *cron.Service
	store   *users.Store
}

// NewCronTool wires the scheduler and the user store (for reminder history).
func NewCronTool(service *cron.Service, store *users.Store) *CronTool {
	return &CronTool{service: service, store: store}
}

func (t *CronTool) Name() string { return "cron" }

func (t *CronTool) Definition() providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        "cron",
			Description: "Manage reminders. Actions: add (schedule a reminder), list (show the user's reminders), remove (delete by id).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{"add", "list", "remove"},
					},
					"message": map[string]any{
						"type":        "string",
						"description": "reminder text (for add)",
					},
					"in_seconds": map[string]any{
						"type":        "integer",
						"description": "fire this many seconds from now (for add, one-shot)",
					},
					"every_minutes": map[string]any{
						"type":        "integer",
						"description": "repeat interval in minutes, minimum 30 (for add, recurring)",
					},
					"cron_expr": map[string]any{
						"type":        "string",
						"description": "5-field cron expression in the user's local time (for add, recurring)",
					},
					"job_id": map[string]any{
						"type":        "string",
						"description": "reminder id (for remove)",
					},
				},
				"required": []string{"action"},
			},
		},
	}
}

func (t *CronTool) Execute(ctx context.Context, owner Owner, args map[string]any) (string, error) {
	switch strArg(args, "action") {
	case "add":
		return t.add(owner, args)
	case "list":
		return t.list(owner), nil
	case "remove":
		return t.remove(owner, strings.ToUpper(strArg(args, "job_id")))
	}
	return "", fmt.Errorf("unknown action %q", strArg(args, "action"))
}

func (t *CronTool) add(owner Owner, args map[string]any) (string, error) {
	message := strings.TrimSpace(strArg(args, "message"))
	if message == "" {
		return i18n.T(owner.Lang, "vague_time_prompt"), nil
	}

	payload := cron.Payload{
		Kind:    cron.PayloadAgentTurn,
		Message: message,
		Deliver: true,
		Channel: owner.Channel,
		To:      owner.ChatID,
	}

	if expr := strArg(args, "cron_expr"); expr != "" {
		schedule := cron.Schedule{Kind: cron.KindCron, Expr: expr, TZ: owner.Timezone}
		id, _, err := t.service.AddJob(message, schedule, payload, false)
		if err != nil {
			return i18n.T(owner.Lang, "bad_cron_expr"), nil
		}
		t.recordScheduled(owner, message)
		return i18n.T(owner.Lang, "reminder_scheduled", message, expr) + " [" + id + "]", nil
	}

	if mins := intArg(args, "every_minutes"); mins > 0 {
		every := mins * 60_000
		schedule := cron.Schedule{Kind: cron.KindEvery, EveryMS: &every, TZ: owner.Timezone}
		id, _, err := t.service.AddJob(message, schedule, payload, false)
		if err != nil {
			return i18n.T(owner.Lang, "interval_too_short"), nil
		}
		t.recordScheduled(owner, message)
		return i18n.T(owner.Lang, "reminder_scheduled", message, fmt.Sprintf("cada %dmin", mins)) + " [" + id + "]", nil
	}

	inSeconds := intArg(args, "in_seconds")
	if inSeconds <= 0 {
		return i18n.T(owner.Lang, "vague_time_prompt"), nil
	}
	atMS := time.Now().Add(time.Duration(inSeconds) * time.Second).UnixMilli()

	id, err := t.service.AddWithLeads(message, atMS, payload, owner.Leads)
	if err != nil {
		return "", err
	}
	t.recordScheduled(owner, message)

	when := cron.FormatLocalTime(atMS, owner.Timezone)
	return i18n.T(owner.Lang, "reminder_scheduled", message, when) + " [" + id + "]", nil
}

func (t *CronTool) list(owner Owner) string {
	jobs := t.service.ListJobs(owner.Channel, owner.ChatID)

	var lines []string
	for i := range jobs {
		// Pre-event and snooze children are bookkeeping, not listings.
		if jobs[i].Payload.ParentJobID != "" {
			continue
		}
		lines = append(lines, cron.DescribeJob(jobs[i]))
	}
	if len(lines) == 0 {
		return i18n.T(owner.Lang, "reminder_list_empty")
	}
	return strings.Join(lines, "\n")
}

func (t *CronTool) remove(owner Owner, id string) (string, error) {
	err := t.service.RemoveJob(owner.Channel, owner.ChatID, id)
	switch {
	case errors.Is(err, cron.ErrNotOwner):
		return i18n.T(owner.Lang, "reminder_not_yours"), nil
	case errors.Is(err, cron.ErrNotFound):
		return i18n.T(owner.Lang, "reminder_list_empty"), nil
	case err != nil:
		return "", err
	}
	return i18n.T(owner.Lang, "reminder_removed", id), nil
}

func (t *CronTool) recordScheduled(owner Owner, message string) {
	if t.store == nil || owner.PhoneHash == "" {
		return
	}
	_ = t.store.AddHistory(owner.PhoneHash, users.HistoryScheduled, message)
}
