package handlers

import (
	"time"

	"github.com/zapista/zapista/internal/commands"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/users"
)

// CommandHandler executes structured slash-commands and direct
// natural-language intents. It never calls the LLM.
func CommandHandler() Handler {
	return Handler{Name: "command", Fn: runCommand}
}

func runCommand(hc *Context, text string) (string, bool, error) {
	cmd := commands.Parse(text)
	lang := hc.Owner.Lang

	switch cmd.Kind {
	case commands.Reminder:
		if cmd.Message == "" {
			return i18n.T(lang, "vague_time_prompt"), true, nil
		}
		if cmd.InSeconds == 0 && cmd.At == nil && cmd.EveryMS == 0 && cmd.CronExpr == "" {
			err := hc.Users.SetPending(hc.Channel, hc.ChatID, users.PendingConfirmation{
				Action: users.ActionVagueTime,
				Args:   map[string]string{"message": cmd.Message},
			})
			if err != nil {
				return "", false, err
			}
			return i18n.T(lang, "vague_time_prompt"), true, nil
		}
		return scheduleReminder(hc, cmd.Message, cmd.InSeconds, cmd.At, cmd.EveryMS, cmd.CronExpr), true, nil

	case commands.Jobs:
		return hc.Tools.Execute(hc.Ctx, hc.Owner, "cron", map[string]any{"action": "list"}), true, nil

	case commands.Cancel:
		return hc.Tools.Execute(hc.Ctx, hc.Owner, "cron", map[string]any{
			"action": "remove",
			"job_id": cmd.JobID,
		}), true, nil

	case commands.ListAdd:
		return hc.Tools.Execute(hc.Ctx, hc.Owner, "list", map[string]any{
			"action": "add",
			"list":   cmd.ListName,
			"item":   cmd.Item,
		}), true, nil

	case commands.ListShow:
		return hc.Tools.Execute(hc.Ctx, hc.Owner, "list", map[string]any{
			"action": "show",
			"list":   cmd.ListName,
		}), true, nil

	case commands.ItemDone:
		listName := cmd.ListName
		if listName == "" {
			names, err := hc.Users.ListNames(hc.Channel, hc.ChatID)
			if err != nil {
				return "", false, err
			}
			if len(names) != 1 {
				return i18n.T(lang, "list_item_not_found"), true, nil
			}
			listName = names[0]
		}
		return hc.Tools.Execute(hc.Ctx, hc.Owner, "list", map[string]any{
			"action":   "done",
			"list":     listName,
			"position": float64(cmd.ItemNum),
		}), true, nil

	case commands.SetLanguage:
		if !i18n.Supported(cmd.Value) {
			return "pt-BR | pt-PT | es | en", true, nil
		}
		if err := hc.Users.SetLanguage(hc.Owner.PhoneHash, cmd.Value); err != nil {
			return "", false, err
		}
		return i18n.T(i18n.Lang(cmd.Value), "language_set", cmd.Value), true, nil

	case commands.SetTimezone:
		if _, err := time.LoadLocation(cmd.Value); err != nil || cmd.Value == "" {
			return i18n.T(lang, "timezone_invalid"), true, nil
		}
		if err := hc.Users.SetTimezone(hc.Owner.PhoneHash, cmd.Value); err != nil {
			return "", false, err
		}
		return i18n.T(lang, "timezone_set", cmd.Value), true, nil

	case commands.Help:
		return i18n.T(lang, "help"), true, nil

	case commands.Restart:
		err := hc.Users.SetPending(hc.Channel, hc.ChatID, users.PendingConfirmation{Action: users.ActionRestartOne})
		if err != nil {
			return "", false, err
		}
		return i18n.T(lang, "restart_confirm_1"), true, nil
	}

	return "", false, nil
}

// scheduleReminder translates a parsed schedule into a cron tool call.
func scheduleReminder(hc *Context, message string, inSeconds int64, at *commands.TimeOfDay, everyMS int64, cronExpr string) string {
	args := map[string]any{
		"action":  "add",
		"message": message,
	}

	switch {
	case cronExpr != "":
		args["cron_expr"] = cronExpr
	case everyMS > 0:
		args["every_minutes"] = float64(everyMS / 60_000)
	case at != nil:
		args["in_seconds"] = float64(secondsUntil(*at, hc.Owner.Timezone))
	default:
		args["in_seconds"] = float64(inSeconds)
	}

	return hc.Tools.Execute(hc.Ctx, hc.Owner, "cron", args)
}

// secondsUntil computes the delay to the next wall-clock occurrence of t in
// the user's timezone: today if still ahead, otherwise tomorrow.
func secondsUntil(t commands.TimeOfDay, tz string) int64 {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	now := time.Now().In(loc)
	target := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, loc)
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return int64(time.Until(target).Seconds())
}
