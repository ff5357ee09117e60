package handlers

import (
	"time"

	"github.com/zapista/zapista/internal/commands"
	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/users"
)

// pendingTTL expires confirmations nobody answered.
const pendingTTL = 10 * time.Minute

// PendingHandler resolves the chat's in-flight confirmation, if any. It runs
// first in the chain so a "sim" answers the question instead of becoming a
// new turn.
func PendingHandler() Handler {
	return Handler{Name: "pending", Fn: resolvePending}
}

func resolvePending(hc *Context, text string) (string, bool, error) {
	p, ok, err := hc.Users.GetPending(hc.Channel, hc.ChatID)
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	if time.Since(p.CreatedAt) > pendingTTL {
		_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
		return "", false, nil
	}

	lang := hc.Owner.Lang
	yes := i18n.IsAffirmative(text)
	no := i18n.IsNegative(text)

	switch p.Action {
	case users.ActionCompleteJob:
		if yes {
			_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
			jobID := p.Args["job_id"]
			if err := hc.Cron.RemoveJob(hc.Channel, hc.ChatID, jobID); err != nil && err != cron.ErrNotFound {
				return i18n.T(lang, "generic_error"), true, nil
			}
			if hc.Owner.PhoneHash != "" {
				_ = hc.Users.AddHistory(hc.Owner.PhoneHash, users.HistoryDelivered, p.Args["message"])
			}
			return i18n.T(lang, "completion_done"), true, nil
		}
		if no {
			_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
			return i18n.T(lang, "completion_cancelled"), true, nil
		}
		// Not a terminal reply; let the rest of the chain see it.
		return "", false, nil

	case users.ActionVagueTime, users.ActionRescheduleJob:
		if no {
			_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
			return i18n.T(lang, "completion_cancelled"), true, nil
		}
		_, inSeconds, at, everyMS, cronExpr := commands.ExtractSchedule(text)
		if inSeconds == 0 && at == nil && everyMS == 0 && cronExpr == "" {
			return "", false, nil
		}
		_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
		reply := scheduleReminder(hc, p.Args["message"], inSeconds, at, everyMS, cronExpr)
		return reply, true, nil

	case users.ActionRestartOne:
		if yes {
			_ = hc.Users.SetPending(hc.Channel, hc.ChatID, users.PendingConfirmation{Action: users.ActionRestartTwo})
			return i18n.T(lang, "restart_confirm_2"), true, nil
		}
		if no {
			_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
			return i18n.T(lang, "restart_cancelled"), true, nil
		}
		return "", false, nil

	case users.ActionRestartTwo:
		if yes {
			_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
			if hc.RestartFn != nil {
				hc.RestartFn()
			}
			return i18n.T(lang, "restarting"), true, nil
		}
		if no {
			_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
			return i18n.T(lang, "restart_cancelled"), true, nil
		}
		return "", false, nil
	}

	// Unknown pending kinds are stale state from an older build; drop them.
	_ = hc.Users.ClearPending(hc.Channel, hc.ChatID)
	return "", false, nil
}
