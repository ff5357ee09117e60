package whatsapp

import (
	"context"
	"strings"

	"github.com/zapista/zapista/internal/agent"
	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/users"
)

// voiceMarker is the body the bridge substitutes for voice notes; the audio
// itself rides in mediaBase64.
const voiceMarker = "[Voice Message]"

// handleMessage runs the inbound pipeline. Order matters: dedup first so
// replays cost nothing, groups and admin input before the allow list, mute
// checked last so a muted sender still cannot reach the agent via voice or
// attachments.
func (c *Channel) handleMessage(ctx context.Context, f bridgeFrame) {
	// Private chats only, so the sender JID is the chat. The pn field
	// carries the plain number when the JID masks it.
	chat := f.Sender
	number := f.Sender
	if f.PN != "" {
		number = f.PN
	}

	msg := bus.InboundMessage{
		Channel:   ChannelName,
		SenderID:  f.Sender,
		ChatID:    chat,
		Content:   f.Content,
		Timestamp: f.Timestamp,
		Metadata:  map[string]string{},
	}
	if f.ID != "" {
		msg.Metadata[bus.MetaMessageID] = f.ID
	}

	if key := bus.InboundDedupKey(msg); key != "" && !c.dedup.FirstSeen(key) {
		return
	}

	// Group chats are out of scope entirely; no reply, no processing.
	if f.IsGroup || strings.HasSuffix(f.Sender, "@g.us") {
		return
	}

	lang := c.langFor(chat)

	if f.AudioTooLarge {
		c.reply(chat, i18n.T(lang, "voice_error"))
		return
	}
	if f.Content == voiceMarker && f.MediaBase64 != "" {
		if c.stt == nil {
			c.reply(chat, i18n.T(lang, "voice_error"))
			return
		}
		text, err := c.stt.Transcribe(ctx, f.MediaBase64)
		if err != nil || text == "" {
			c.logger.Warn("voice transcription failed", "chat_id", chat, "error", err)
			c.reply(chat, i18n.T(lang, "voice_error"))
			return
		}
		msg.Content = text
	}

	if f.Ics != "" {
		c.importICS(chat, f.Ics, lang)
		return
	}

	trimmed := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(trimmed, "#") {
		c.handleAdmin(chat, strings.TrimPrefix(trimmed, "#"), lang)
		return
	}

	digits := phoneDigits(number)
	if !c.IsAllowed(number) {
		c.notifyBlockedOnce(chat, digits, lang)
		return
	}
	if c.mutes.IsMuted(digits) {
		return
	}

	msg.Metadata[bus.MetaTraceID] = agent.NewTraceID()
	c.recorder.IncMessagesIn()
	c.router.PublishInbound(msg)
}

// notifyBlockedOnce tells an unlisted sender they have no access, once per
// process lifetime, then goes silent.
func (c *Channel) notifyBlockedOnce(chatID, digits string, lang i18n.Lang) {
	c.blockedMu.Lock()
	_, seen := c.blockedNotified[digits]
	if !seen {
		c.blockedNotified[digits] = struct{}{}
	}
	c.blockedMu.Unlock()

	if !seen {
		c.reply(chatID, i18n.T(lang, "blocked_info"))
	}
}

// langFor resolves the reply language for a chat from the stored
// preference, falling back to the phone country prefix.
func (c *Channel) langFor(chatID string) i18n.Lang {
	digits := phoneDigits(chatID)
	stored := ""
	if u, err := c.users.GetUser(users.HashPhone(digits)); err == nil {
		stored = u.Language
	}
	return i18n.Resolve(stored, digits)
}

// phoneDigits strips a compound id like "5511999990000@c.us" to digits.
func phoneDigits(id string) string {
	head, _, _ := strings.Cut(id, "@")
	var sb strings.Builder
	for _, r := range head {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
