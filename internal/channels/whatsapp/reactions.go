package whatsapp

import (
	"context"
	"strings"
	"time"

	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/users"
)

// Emoji classes for reactions on delivered reminders.
var (
	positiveEmojis = []string{"👍", "✅", "❤️", "❤", "🙏", "👌", "💪", "🎉"}
	snoozeEmojis   = []string{"⏰", "😴", "💤", "🕐"}
	negativeEmojis = []string{"👎", "❌", "🚫", "✋"}
)

// sentRef maps a delivered bridge message back to the job that produced it.
type sentRef struct {
	jobID   string
	content string
	created time.Time
}

// trackSend records an outgoing request so the bridge's sent ack can be
// correlated. Unacked entries expire after sentTimeout.
func (c *Channel) trackSend(requestID, chatID, jobID, content string) {
	c.sentMu.Lock()
	c.pending[requestID] = pendingSend{chatID: chatID, jobID: jobID, content: content, created: time.Now()}
	for id, p := range c.pending {
		if time.Since(p.created) > sentTimeout {
			delete(c.pending, id)
		}
	}
	c.sentMu.Unlock()
}

// handleSent resolves a request to the bridge-assigned message id. Only
// job-originated sends are retained; reactions on chit-chat mean nothing.
func (c *Channel) handleSent(f bridgeFrame) {
	c.sentMu.Lock()
	defer c.sentMu.Unlock()

	p, ok := c.pending[f.RequestID]
	if !ok {
		return
	}
	delete(c.pending, f.RequestID)

	if p.jobID == "" || f.ID == "" {
		return
	}
	c.sentRefs[p.chatID+"|"+f.ID] = sentRef{jobID: p.jobID, content: p.content, created: time.Now()}
	for key, ref := range c.sentRefs {
		if time.Since(ref.created) > 24*time.Hour {
			delete(c.sentRefs, key)
		}
	}
}

// handleReaction maps an emoji on a delivered reminder to complete, snooze
// or cancel. The mapping is consume-once: a second reaction on the same
// message does nothing.
func (c *Channel) handleReaction(ctx context.Context, f bridgeFrame) {
	// The bridge also relays our own reactions; only the user's count.
	if f.FromMe {
		return
	}

	key := f.ChatID + "|" + f.MessageID

	c.sentMu.Lock()
	ref, ok := c.sentRefs[key]
	if ok {
		delete(c.sentRefs, key)
	}
	c.sentMu.Unlock()
	if !ok {
		return
	}

	lang := c.langFor(f.ChatID)

	// The fired job may already be gone (one-shot delivery removes it);
	// fall back to what we know from the delivery itself.
	job, jobExists := c.cron.GetJob(ref.jobID)
	if jobExists && job.Payload.ParentJobID != "" {
		if parent, ok := c.cron.GetJob(job.Payload.ParentJobID); ok {
			job = parent
		}
	}
	message := ref.content
	if jobExists && job.Payload.Message != "" {
		message = job.Payload.Message
	}

	switch {
	case hasEmoji(f.Emoji, positiveEmojis):
		err := c.users.SetPending(ChannelName, f.ChatID, users.PendingConfirmation{
			Action: users.ActionCompleteJob,
			Args:   map[string]string{"job_id": job.ID, "message": message},
		})
		if err != nil {
			c.logger.Error("pending confirmation not stored", "chat_id", f.ChatID, "error", err)
			return
		}
		c.reply(f.ChatID, i18n.T(lang, "confirm_completion", message))

	case hasEmoji(f.Emoji, snoozeEmojis):
		payload := cron.Payload{
			Kind:    cron.PayloadSystemEvent,
			Message: message,
			Deliver: true,
			Channel: ChannelName,
			To:      f.ChatID,
		}
		if jobExists {
			payload = job.Payload
		}
		if _, err := c.cron.Snooze(ref.jobID, payload); err != nil {
			if err == cron.ErrSnoozeMax {
				c.reply(f.ChatID, i18n.T(lang, "snooze_max"))
			} else {
				c.logger.Error("snooze failed", "job_id", ref.jobID, "error", err)
			}
			return
		}
		c.reply(f.ChatID, i18n.T(lang, "snoozed"))

	case hasEmoji(f.Emoji, negativeEmojis):
		if jobExists {
			owner, chatID := job.Owner()
			if err := c.cron.RemoveJob(owner, chatID, job.ID); err != nil {
				c.logger.Warn("reaction removal failed", "job_id", job.ID, "error", err)
			}
		}
		c.reply(f.ChatID, i18n.T(lang, "reaction_removed_ask_new"))
	}
}

func hasEmoji(emoji string, set []string) bool {
	emoji = strings.TrimSpace(emoji)
	for _, e := range set {
		if emoji == e {
			return true
		}
	}
	return false
}
