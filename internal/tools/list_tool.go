package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/users"
)

// ListTool manages the user's named lists.
type ListTool struct {
	store *users.Store
}

func NewListTool(store *users.Store) *ListTool {
	return &ListTool{store: store}
}

func (t *ListTool) Name() string { return "list" }

func (t *ListTool) Definition() providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name:        "list",
			Description: "Manage named lists (shopping, tasks). Actions: add (append an item), show (display a list), done (mark item by position), names (all list names).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"action": map[string]any{
						"type": "string",
						"enum": []string{"add", "show", "done", "names"},
					},
					"list": map[string]any{
						"type":        "string",
						"description": "list name, e.g. mercado",
					},
					"item": map[string]any{
						"type":        "string",
						"description": "item text (for add)",
					},
					"position": map[string]any{
						"type":        "integer",
						"description": "1-based item position (for done)",
					},
				},
				"required": []string{"action"},
			},
		},
	}
}

func (t *ListTool) Execute(ctx context.Context, owner Owner, args map[string]any) (string, error) {
	list := strings.ToLower(strings.TrimSpace(strArg(args, "list")))

	switch strArg(args, "action") {
	case "add":
		item := strings.TrimSpace(strArg(args, "item"))
		if list == "" || item == "" {
			return "", fmt.Errorf("add needs list and item")
		}
		if _, err := t.store.AddListItem(owner.Channel, owner.ChatID, list, item); err != nil {
			return "", err
		}
		return i18n.T(owner.Lang, "list_added", item, list), nil

	case "show":
		if list == "" {
			return t.names(owner)
		}
		items, err := t.store.GetList(owner.Channel, owner.ChatID, list)
		if err != nil {
			return "", err
		}
		if len(items) == 0 {
			return i18n.T(owner.Lang, "list_empty", list), nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "📋 %s:\n", list)
		for i, it := range items {
			mark := " "
			if it.Done {
				mark = "✔"
			}
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, mark, it.Content)
		}
		return strings.TrimRight(b.String(), "\n"), nil

	case "done":
		pos := int(intArg(args, "position"))
		ok, err := t.store.MarkItemDone(owner.Channel, owner.ChatID, list, pos)
		if err != nil {
			return "", err
		}
		if !ok {
			return i18n.T(owner.Lang, "list_item_not_found"), nil
		}
		return i18n.T(owner.Lang, "list_item_done", pos), nil

	case "names":
		return t.names(owner)
	}
	return "", fmt.Errorf("unknown action %q", strArg(args, "action"))
}

func (t *ListTool) names(owner Owner) (string, error) {
	names, err := t.store.ListNames(owner.Channel, owner.ChatID)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return i18n.T(owner.Lang, "no_lists"), nil
	}
	return strings.Join(names, ", "), nil
}
