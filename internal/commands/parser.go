// Package commands parses slash-commands and a small set of direct
// natural-language intents. Recognized intents short-circuit the agent loop
// so the common paths never need the LLM.
package commands

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind tags a parsed command.
type Kind int

const (
	None Kind = iota
	Reminder          // schedule a reminder (time may still be missing)
	Jobs              // list scheduled reminders
	Cancel            // remove a reminder by id
	ListAdd           // add an item to a named list
	ListShow          // show a named list
	ItemDone          // mark a list item as done
	SetLanguage       // /idioma
	SetTimezone       // /fuso
	Help              // /help, /start, /ajuda
	Restart           // /restart
)

// TimeOfDay is a wall-clock time in the user's timezone.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// Command is the parsed form of a structured input.
type Command struct {
	Kind    Kind
	Message string

	// Schedule, at most one of these is set. A Reminder with none of them
	// needs a follow-up prompt for the time.
	InSeconds int64      // relative ("em 10 min")
	At        *TimeOfDay // absolute ("às 18:30")
	EveryMS   int64      // interval ("a cada 45 min")
	CronExpr  string     // recurring daily ("todo dia às 9:00")

	ListName string
	Item     string
	ItemNum  int
	JobID    string
	Value    string // language tag or timezone name
}

var (
	reInMinutes  = regexp.MustCompile(`(?i)\b(?:em|in|en)\s+(\d+)\s*(min|minutos?|minutes?|m)\b`)
	reInHours    = regexp.MustCompile(`(?i)\b(?:em|in|en)\s+(\d+)\s*(h|horas?|hours?)\b`)
	reAtTime     = regexp.MustCompile(`(?i)(?:às|as|at|a las?)\s+(\d{1,2})(?::(\d{2}))?\s*(h|hs)?\b`)
	reEvery      = regexp.MustCompile(`(?i)\b(?:a cada|cada|every)\s+(\d+)\s*(min|minutos?|minutes?|h|horas?|hours?)\b`)
	reDaily      = regexp.MustCompile(`(?i)\b(?:todo dia|todos os dias|diariamente|todos los días|todos los dias|every day|daily)\b`)
	reNaturalRem = regexp.MustCompile(`(?i)^(?:me\s+)?lembr[ae](?:\s+a)?(?:\s+m[ei])?\s+(?:de\s+|que\s+)?(.+)$`)
	reRecuerda   = regexp.MustCompile(`(?i)^recu[ée]rda(?:me)?\s+(?:de\s+|que\s+)?(.+)$`)
	reRemindMe   = regexp.MustCompile(`(?i)^remind\s+me\s+(?:to\s+|about\s+)?(.+)$`)
)

// Parse attempts to interpret text as a structured command. Kind None means
// the input falls through to the handler chain and the LLM.
func Parse(text string) Command {
	text = strings.TrimSpace(text)
	if text == "" {
		return Command{}
	}

	if strings.HasPrefix(text, "/") {
		return parseSlash(text)
	}
	return parseNatural(text)
}

func parseSlash(text string) Command {
	fields := strings.Fields(text)
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	rest := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))

	switch cmd {
	case "lembrete", "lembrar", "reminder", "recordatorio":
		c := Command{Kind: Reminder}
		c.Message, c.InSeconds, c.At, c.EveryMS, c.CronExpr = extractSchedule(rest)
		return c

	case "jobs", "lembretes", "agenda":
		return Command{Kind: Jobs}

	case "cancelar", "cancel", "remover":
		return Command{Kind: Cancel, JobID: strings.ToUpper(rest)}

	case "list", "lista":
		return parseList(rest)

	// Shorthand for the movies watchlist.
	case "filme", "filmes", "movie":
		if rest == "" {
			return Command{Kind: ListShow, ListName: "filmes"}
		}
		return Command{Kind: ListAdd, ListName: "filmes", Item: rest}

	case "feito", "done", "hecho":
		c := Command{Kind: ItemDone}
		parts := strings.Fields(rest)
		if len(parts) >= 1 {
			c.ItemNum, _ = strconv.Atoi(parts[len(parts)-1])
			if len(parts) > 1 {
				c.ListName = strings.ToLower(strings.Join(parts[:len(parts)-1], " "))
			}
		}
		return c

	case "idioma", "language", "lang":
		return Command{Kind: SetLanguage, Value: rest}

	case "fuso", "timezone", "tz":
		return Command{Kind: SetTimezone, Value: rest}

	case "help", "ajuda", "start", "ayuda":
		return Command{Kind: Help}

	case "restart":
		return Command{Kind: Restart}
	}

	return Command{}
}

// parseList handles "/list <name> add <item>" and "/list <name>".
func parseList(rest string) Command {
	if rest == "" {
		return Command{Kind: ListShow}
	}

	lower := strings.ToLower(rest)
	for _, sep := range []string{" add ", " adicionar ", " añadir ", " agregar "} {
		if idx := strings.Index(lower, sep); idx > 0 {
			return Command{
				Kind:     ListAdd,
				ListName: strings.ToLower(strings.TrimSpace(rest[:idx])),
				Item:     strings.TrimSpace(rest[idx+len(sep):]),
			}
		}
	}
	return Command{Kind: ListShow, ListName: strings.ToLower(strings.TrimSpace(rest))}
}

func parseNatural(text string) Command {
	for _, re := range []*regexp.Regexp{reNaturalRem, reRecuerda, reRemindMe} {
		if m := re.FindStringSubmatch(text); m != nil {
			c := Command{Kind: Reminder}
			c.Message, c.InSeconds, c.At, c.EveryMS, c.CronExpr = extractSchedule(m[1])
			return c
		}
	}
	return Command{}
}

// ExtractSchedule pulls the time specification out of a phrase and returns
// the cleaned remainder plus whichever schedule form matched. Used both by
// the parser and by follow-up prompts that ask only for a time.
func ExtractSchedule(text string) (message string, inSeconds int64, at *TimeOfDay, everyMS int64, cronExpr string) {
	return extractSchedule(text)
}

func extractSchedule(text string) (message string, inSeconds int64, at *TimeOfDay, everyMS int64, cronExpr string) {
	message = text

	daily := reDaily.MatchString(message)
	if daily {
		message = reDaily.ReplaceAllString(message, "")
	}

	if m := reEvery.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		unit := strings.ToLower(m[2])
		everyMS = int64(n) * 60_000
		if strings.HasPrefix(unit, "h") {
			everyMS = int64(n) * 3_600_000
		}
		message = strings.Replace(message, m[0], "", 1)
		return clean(message), 0, nil, everyMS, ""
	}

	if m := reInMinutes.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		inSeconds = int64(n) * 60
		message = strings.Replace(message, m[0], "", 1)
		return clean(message), inSeconds, nil, 0, ""
	}

	if m := reInHours.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		inSeconds = int64(n) * 3600
		message = strings.Replace(message, m[0], "", 1)
		return clean(message), inSeconds, nil, 0, ""
	}

	if m := reAtTime.FindStringSubmatch(message); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour <= 23 && minute <= 59 {
			message = strings.Replace(message, m[0], "", 1)
			if daily {
				return clean(message), 0, nil, 0, fmt.Sprintf("%d %d * * *", minute, hour)
			}
			return clean(message), 0, &TimeOfDay{Hour: hour, Minute: minute}, 0, ""
		}
	}

	return clean(message), 0, nil, 0, ""
}

func clean(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), " ,.")
}
