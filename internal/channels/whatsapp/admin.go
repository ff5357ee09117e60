package whatsapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/zapista/zapista/internal/admin"
	"github.com/zapista/zapista/internal/i18n"
)

// handleAdmin routes '#' input through the god-mode state machine. Wrong
// passwords and locked-out chats get no reply at all; the prefix must look
// like any other unanswered message to an outsider.
func (c *Channel) handleAdmin(chatID, input string, lang i18n.Lang) {
	outcome, command := c.god.Handle(chatID, input)

	switch outcome {
	case admin.Silent:
		return
	case admin.Activated:
		c.reply(chatID, i18n.T(lang, "godmode_menu"))
	case admin.Deactivated:
		c.reply(chatID, "God-mode desativado. 👋")
	case admin.Command:
		c.reply(chatID, c.runAdminCommand(command, lang))
	}
}

func (c *Channel) runAdminCommand(command string, lang i18n.Lang) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return i18n.T(lang, "godmode_menu")
	}
	verb := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch verb {
	case "status":
		state := "conectado"
		if !c.IsRunning() {
			state = "desconectado"
		}
		today := c.recorder.Today()
		return fmt.Sprintf("bridge: %s\njobs: %d\nallow-list: %d números\nhoje: in=%d out=%d skip=%d",
			state, c.cron.JobCount(), c.AllowedCount(),
			today.MessagesIn, today.MessagesOut, today.SendsSkipped)

	case "mute":
		digits := phoneDigits(arg)
		if digits == "" {
			return "uso: #mute <número>"
		}
		level, until := c.mutes.Mute(digits)
		if until.IsZero() {
			return fmt.Sprintf("%s mutado permanentemente (nível %d).", digits, level)
		}
		return fmt.Sprintf("%s mutado até %s (nível %d).", digits, until.Format(time.RFC3339), level)

	case "unmute":
		digits := phoneDigits(arg)
		if digits == "" {
			return "uso: #unmute <número>"
		}
		c.mutes.Unmute(digits)
		return fmt.Sprintf("%s desmutado.", digits)

	case "allow":
		digits := phoneDigits(arg)
		if digits == "" {
			return "uso: #allow <número>"
		}
		c.Allow(digits)
		return fmt.Sprintf("%s liberado.", digits)

	case "metrics":
		return c.recorder.Report()
	}

	return i18n.T(lang, "godmode_menu")
}
