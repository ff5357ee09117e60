package whatsapp

import (
	"strings"
	"time"

	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
)

// icsLeadSeconds is the heads-up lead for imported calendar events.
const icsLeadSeconds = 900

// icsEvent is one parsed VEVENT.
type icsEvent struct {
	Summary string
	Start   time.Time
}

// importICS turns a forwarded calendar attachment into events with a
// 15-minute heads-up each. Past events are skipped silently.
func (c *Channel) importICS(chatID, raw string, lang i18n.Lang) {
	events := parseICS(raw)

	imported := 0
	for _, ev := range events {
		if !ev.Start.After(time.Now()) {
			continue
		}
		atMS := ev.Start.UnixMilli()
		if err := c.users.AddEvent(ChannelName, chatID, ev.Summary, atMS); err != nil {
			c.logger.Warn("event not stored", "chat_id", chatID, "error", err)
		}
		_, err := c.cron.AddWithLeads(ev.Summary, atMS, cron.Payload{
			Kind:    cron.PayloadAgentTurn,
			Message: ev.Summary,
			Deliver: true,
			Channel: ChannelName,
			To:      chatID,
		}, []int{icsLeadSeconds})
		if err != nil {
			c.logger.Warn("event reminder not scheduled", "chat_id", chatID, "error", err)
			continue
		}
		imported++
	}

	if imported > 0 {
		c.reply(chatID, i18n.T(lang, "ics_imported", imported))
	}
}

// parseICS extracts VEVENT summaries and start times. This covers the
// subset calendar apps attach to invites: folded lines, DTSTART in UTC,
// with TZID, floating local time or all-day dates.
func parseICS(raw string) []icsEvent {
	lines := unfoldICS(raw)

	var events []icsEvent
	var cur *icsEvent
	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			cur = &icsEvent{}
		case line == "END:VEVENT":
			if cur != nil && cur.Summary != "" && !cur.Start.IsZero() {
				events = append(events, *cur)
			}
			cur = nil
		case cur == nil:
			continue
		case strings.HasPrefix(line, "SUMMARY"):
			if _, value, ok := strings.Cut(line, ":"); ok {
				cur.Summary = strings.TrimSpace(value)
			}
		case strings.HasPrefix(line, "DTSTART"):
			if t, ok := parseICSTime(line); ok {
				cur.Start = t
			}
		}
	}
	return events
}

// unfoldICS joins folded continuation lines (RFC 5545: a line starting
// with space or tab continues the previous one).
func unfoldICS(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += strings.TrimLeft(line, " \t")
			continue
		}
		lines = append(lines, strings.TrimRight(line, "\r"))
	}
	return lines
}

// parseICSTime handles "DTSTART:20260825T120000Z",
// "DTSTART;TZID=America/Sao_Paulo:20260825T120000" and
// "DTSTART;VALUE=DATE:20260825".
func parseICSTime(line string) (time.Time, bool) {
	prop, value, ok := strings.Cut(line, ":")
	if !ok {
		return time.Time{}, false
	}
	value = strings.TrimSpace(value)

	loc := time.UTC
	for _, param := range strings.Split(prop, ";") {
		if tzid, found := strings.CutPrefix(param, "TZID="); found {
			if l, err := time.LoadLocation(tzid); err == nil {
				loc = l
			}
		}
	}

	if t, err := time.Parse("20060102T150405Z", value); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102T150405", value, loc); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("20060102", value, loc); err == nil {
		// All-day events get a 9 AM local reminder anchor.
		return t.Add(9 * time.Hour), true
	}
	return time.Time{}, false
}
