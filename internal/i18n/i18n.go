// Package i18n holds the localized user-facing message catalog for the four
// supported locales. Every reply the pipeline produces goes through T so
// wording stays consistent per language.
package i18n

import (
	"fmt"
	"strings"
)

// Lang is a supported locale tag.
type Lang string

const (
	PtBR Lang = "pt-BR"
	PtPT Lang = "pt-PT"
	ES   Lang = "es"
	EN   Lang = "en"
)

// Supported reports whether the tag is one of the four locales.
func Supported(tag string) bool {
	switch Lang(tag) {
	case PtBR, PtPT, ES, EN:
		return true
	}
	return false
}

// phonePrefixDefaults maps international dialing prefixes to a default
// locale. Longest prefix wins.
var phonePrefixDefaults = map[string]Lang{
	"55":  PtBR, // Brazil
	"351": PtPT, // Portugal
	"34":  ES,   // Spain
	"52":  ES,   // Mexico
	"54":  ES,   // Argentina
	"56":  ES,   // Chile
	"57":  ES,   // Colombia
	"58":  ES,   // Venezuela
	"244": PtPT, // Angola
	"258": PtPT, // Mozambique
}

// Resolve picks the language for a user: explicit override first, then the
// phone-prefix default, then English. Deterministic for any input.
func Resolve(userLang, phoneDigits string) Lang {
	if Supported(userLang) {
		return Lang(userLang)
	}

	digits := strings.TrimLeft(phoneDigits, "+")
	for l := 3; l >= 1; l-- {
		if len(digits) >= l {
			if lang, ok := phonePrefixDefaults[digits[:l]]; ok {
				return lang
			}
		}
	}
	return EN
}

// T returns the message for key in the given language, formatted with args.
// Unknown keys return the key itself so a missing entry is visible in logs
// rather than silent.
func T(lang Lang, key string, args ...any) string {
	entry, ok := catalog[key]
	if !ok {
		return key
	}
	msg, ok := entry[lang]
	if !ok {
		msg = entry[EN]
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

var catalog = map[string]map[Lang]string{
	"rate_limited": {
		PtBR: "Calma! Muitas mensagens em pouco tempo. Espera um minutinho e tenta de novo.",
		PtPT: "Calma! Demasiadas mensagens em pouco tempo. Espera um minuto e tenta outra vez.",
		ES:   "¡Calma! Demasiados mensajes en poco tiempo. Espera un minuto e inténtalo de nuevo.",
		EN:   "Easy there! Too many messages at once. Wait a minute and try again.",
	},
	"scope_reminder": {
		PtBR: "Eu sou seu organizador pessoal: lembretes, listas e eventos. Tenta algo como \"/lembrete beber água em 30 min\".",
		PtPT: "Sou o teu organizador pessoal: lembretes, listas e eventos. Tenta algo como \"/lembrete beber água em 30 min\".",
		ES:   "Soy tu organizador personal: recordatorios, listas y eventos. Prueba algo como \"/lembrete beber agua en 30 min\".",
		EN:   "I'm your personal organizer: reminders, lists and events. Try something like \"/lembrete drink water in 30 min\".",
	},
	"degraded_mode": {
		PtBR: "Estou com dificuldade para entender agora. Usa um comando direto, por exemplo: /lembrete <mensagem> em 10 min",
		PtPT: "Estou com dificuldade em perceber agora. Usa um comando direto, por exemplo: /lembrete <mensagem> em 10 min",
		ES:   "Ahora mismo me cuesta entender. Usa un comando directo, por ejemplo: /lembrete <mensaje> en 10 min",
		EN:   "I'm having trouble understanding right now. Use a direct command, e.g.: /lembrete <message> in 10 min",
	},
	"generic_error": {
		PtBR: "Opa, algo deu errado aqui. Tenta de novo em instantes.",
		PtPT: "Ups, algo correu mal. Tenta novamente daqui a pouco.",
		ES:   "Vaya, algo salió mal. Inténtalo de nuevo en un momento.",
		EN:   "Oops, something went wrong. Please try again shortly.",
	},
	"voice_error": {
		PtBR: "Não consegui entender o áudio. Pode mandar por texto?",
		PtPT: "Não consegui perceber o áudio. Podes enviar por texto?",
		ES:   "No pude entender el audio. ¿Puedes enviarlo por texto?",
		EN:   "I couldn't understand the voice message. Can you send it as text?",
	},
	"blocked_info": {
		PtBR: "Este número ainda não tem acesso ao serviço.",
		PtPT: "Este número ainda não tem acesso ao serviço.",
		ES:   "Este número todavía no tiene acceso al servicio.",
		EN:   "This number does not have access to the service yet.",
	},
	"reminder_scheduled": {
		PtBR: "Lembrete agendado: %s às %s ✅",
		PtPT: "Lembrete agendado: %s às %s ✅",
		ES:   "Recordatorio programado: %s a las %s ✅",
		EN:   "Reminder scheduled: %s at %s ✅",
	},
	"reminder_fire": {
		PtBR: "🔔 Lembrete: %s",
		PtPT: "🔔 Lembrete: %s",
		ES:   "🔔 Recordatorio: %s",
		EN:   "🔔 Reminder: %s",
	},
	"reminder_pre_lead": {
		PtBR: "⏳ Daqui a pouco (%s): %s",
		PtPT: "⏳ Daqui a pouco (%s): %s",
		ES:   "⏳ Dentro de poco (%s): %s",
		EN:   "⏳ Coming up (%s): %s",
	},
	"reminder_list_empty": {
		PtBR: "Você não tem lembretes agendados.",
		PtPT: "Não tens lembretes agendados.",
		ES:   "No tienes recordatorios programados.",
		EN:   "You have no scheduled reminders.",
	},
	"reminder_removed": {
		PtBR: "Lembrete %s removido.",
		PtPT: "Lembrete %s removido.",
		ES:   "Recordatorio %s eliminado.",
		EN:   "Reminder %s removed.",
	},
	"reminder_not_yours": {
		PtBR: "Esse lembrete não é seu.",
		PtPT: "Esse lembrete não é teu.",
		ES:   "Ese recordatorio no es tuyo.",
		EN:   "That reminder is not yours.",
	},
	"interval_too_short": {
		PtBR: "Intervalo mínimo para repetição é 30 minutos.",
		PtPT: "O intervalo mínimo de repetição é 30 minutos.",
		ES:   "El intervalo mínimo de repetición es de 30 minutos.",
		EN:   "The minimum repeat interval is 30 minutes.",
	},
	"bad_cron_expr": {
		PtBR: "Não entendi esse horário recorrente. Exemplo: \"0 9 * * *\" para todo dia às 9h.",
		PtPT: "Não percebi esse horário recorrente. Exemplo: \"0 9 * * *\" para todos os dias às 9h.",
		ES:   "No entendí ese horario recurrente. Ejemplo: \"0 9 * * *\" para todos los días a las 9.",
		EN:   "I didn't understand that recurring schedule. Example: \"0 9 * * *\" for every day at 9 AM.",
	},
	"confirm_completion": {
		PtBR: "Confirmas que concluiu \"%s\"? Responde sim ou não.",
		PtPT: "Confirmas que concluíste \"%s\"? Responde sim ou não.",
		ES:   "¿Confirmas que completaste \"%s\"? Responde sí o no.",
		EN:   "Confirm you completed \"%s\"? Reply yes or no.",
	},
	"completion_done": {
		PtBR: "Boa! Lembrete concluído e removido. 🎉",
		PtPT: "Boa! Lembrete concluído e removido. 🎉",
		ES:   "¡Bien! Recordatorio completado y eliminado. 🎉",
		EN:   "Nice! Reminder completed and removed. 🎉",
	},
	"completion_cancelled": {
		PtBR: "Ok, o lembrete continua ativo.",
		PtPT: "Ok, o lembrete continua ativo.",
		ES:   "Ok, el recordatorio sigue activo.",
		EN:   "Ok, the reminder stays active.",
	},
	"snoozed": {
		PtBR: "Soneca de 5 minutos ativada. ⏰",
		PtPT: "Adiado 5 minutos. ⏰",
		ES:   "Pospuesto 5 minutos. ⏰",
		EN:   "Snoozed for 5 minutes. ⏰",
	},
	"snooze_max": {
		PtBR: "Já adiei esse lembrete 3 vezes — é o máximo. Ele continua valendo!",
		PtPT: "Já adiei esse lembrete 3 vezes — é o máximo. Continua válido!",
		ES:   "Ya pospuse ese recordatorio 3 veces — es el máximo. ¡Sigue en pie!",
		EN:   "That reminder has already been snoozed 3 times — the max. It still stands!",
	},
	"reaction_removed_ask_new": {
		PtBR: "Lembrete cancelado. Quer remarcar para outro horário?",
		PtPT: "Lembrete cancelado. Queres remarcar para outra hora?",
		ES:   "Recordatorio cancelado. ¿Quieres reprogramarlo para otra hora?",
		EN:   "Reminder cancelled. Want to reschedule it for another time?",
	},
	"list_added": {
		PtBR: "\"%s\" adicionado à lista %s.",
		PtPT: "\"%s\" adicionado à lista %s.",
		ES:   "\"%s\" añadido a la lista %s.",
		EN:   "\"%s\" added to list %s.",
	},
	"list_empty": {
		PtBR: "A lista %s está vazia.",
		PtPT: "A lista %s está vazia.",
		ES:   "La lista %s está vacía.",
		EN:   "List %s is empty.",
	},
	"list_item_done": {
		PtBR: "Item %d marcado como feito. ✔️",
		PtPT: "Item %d marcado como feito. ✔️",
		ES:   "Elemento %d marcado como hecho. ✔️",
		EN:   "Item %d marked as done. ✔️",
	},
	"list_item_not_found": {
		PtBR: "Não achei esse item.",
		PtPT: "Não encontrei esse item.",
		ES:   "No encontré ese elemento.",
		EN:   "I couldn't find that item.",
	},
	"no_lists": {
		PtBR: "Você ainda não tem listas. Cria uma com /list <nome> add <item>.",
		PtPT: "Ainda não tens listas. Cria uma com /list <nome> add <item>.",
		ES:   "Todavía no tienes listas. Crea una con /list <nombre> add <elemento>.",
		EN:   "You have no lists yet. Create one with /list <name> add <item>.",
	},
	"restart_confirm_1": {
		PtBR: "Isso vai reiniciar o serviço. Tem certeza? (sim/não)",
		PtPT: "Isto vai reiniciar o serviço. Tens a certeza? (sim/não)",
		ES:   "Esto reiniciará el servicio. ¿Seguro? (sí/no)",
		EN:   "This will restart the service. Are you sure? (yes/no)",
	},
	"restart_confirm_2": {
		PtBR: "Última confirmação: reiniciar agora? (sim/não)",
		PtPT: "Última confirmação: reiniciar agora? (sim/não)",
		ES:   "Última confirmación: ¿reiniciar ahora? (sí/no)",
		EN:   "Final confirmation: restart now? (yes/no)",
	},
	"restart_cancelled": {
		PtBR: "Reinício cancelado.",
		PtPT: "Reinício cancelado.",
		ES:   "Reinicio cancelado.",
		EN:   "Restart cancelled.",
	},
	"restarting": {
		PtBR: "Reiniciando... volto já!",
		PtPT: "A reiniciar... volto já!",
		ES:   "Reiniciando... ¡vuelvo enseguida!",
		EN:   "Restarting... back in a moment!",
	},
	"ics_imported": {
		PtBR: "Calendário importado: %d evento(s) com lembrete 15 min antes.",
		PtPT: "Calendário importado: %d evento(s) com lembrete 15 min antes.",
		ES:   "Calendario importado: %d evento(s) con recordatorio 15 min antes.",
		EN:   "Calendar imported: %d event(s) with a 15-minute heads-up.",
	},
	"vague_time_prompt": {
		PtBR: "Para quando? Me diz um horário, tipo \"em 20 min\" ou \"às 18:30\".",
		PtPT: "Para quando? Diz-me uma hora, por exemplo \"em 20 min\" ou \"às 18:30\".",
		ES:   "¿Para cuándo? Dime una hora, por ejemplo \"en 20 min\" o \"a las 18:30\".",
		EN:   "For when? Give me a time, like \"in 20 min\" or \"at 6:30 PM\".",
	},
	"language_set": {
		PtBR: "Idioma alterado para %s.",
		PtPT: "Idioma alterado para %s.",
		ES:   "Idioma cambiado a %s.",
		EN:   "Language set to %s.",
	},
	"timezone_set": {
		PtBR: "Fuso horário alterado para %s.",
		PtPT: "Fuso horário alterado para %s.",
		ES:   "Zona horaria cambiada a %s.",
		EN:   "Timezone set to %s.",
	},
	"timezone_invalid": {
		PtBR: "Fuso inválido. Usa um nome IANA, tipo America/Sao_Paulo.",
		PtPT: "Fuso inválido. Usa um nome IANA, por exemplo Europe/Lisbon.",
		ES:   "Zona inválida. Usa un nombre IANA, por ejemplo Europe/Madrid.",
		EN:   "Invalid timezone. Use an IANA name, e.g. America/Sao_Paulo.",
	},
	"help": {
		PtBR: "Comandos:\n/lembrete <msg> em <N> min — agenda lembrete\n/lembrete <msg> às HH:MM — agenda para um horário\n/jobs — lista lembretes\n/cancelar <id> — remove lembrete\n/list <nome> add <item> — adiciona à lista\n/list <nome> — mostra a lista\n/feito <n> — marca item como feito\n/idioma <pt-BR|pt-PT|es|en> — muda idioma\n/fuso <IANA> — muda fuso horário",
		PtPT: "Comandos:\n/lembrete <msg> em <N> min — agenda lembrete\n/lembrete <msg> às HH:MM — agenda para uma hora\n/jobs — lista lembretes\n/cancelar <id> — remove lembrete\n/list <nome> add <item> — adiciona à lista\n/list <nome> — mostra a lista\n/feito <n> — marca item como feito\n/idioma <pt-BR|pt-PT|es|en> — muda idioma\n/fuso <IANA> — muda fuso horário",
		ES:   "Comandos:\n/lembrete <msg> en <N> min — programa recordatorio\n/lembrete <msg> a las HH:MM — programa a una hora\n/jobs — lista recordatorios\n/cancelar <id> — elimina recordatorio\n/list <nombre> add <elemento> — añade a la lista\n/list <nombre> — muestra la lista\n/feito <n> — marca como hecho\n/idioma <pt-BR|pt-PT|es|en> — cambia idioma\n/fuso <IANA> — cambia zona horaria",
		EN:   "Commands:\n/lembrete <msg> in <N> min — schedule a reminder\n/lembrete <msg> at HH:MM — schedule for a time\n/jobs — list reminders\n/cancelar <id> — remove a reminder\n/list <name> add <item> — add to a list\n/list <name> — show a list\n/feito <n> — mark item done\n/idioma <pt-BR|pt-PT|es|en> — change language\n/fuso <IANA> — change timezone",
	},
	"godmode_menu": {
		EN:   "God-mode ativo. Comandos: #status #mute <num> #unmute <num> #allow <num> #metrics #quit",
		PtBR: "God-mode ativo. Comandos: #status #mute <num> #unmute <num> #allow <num> #metrics #quit",
		PtPT: "God-mode ativo. Comandos: #status #mute <num> #unmute <num> #allow <num> #metrics #quit",
		ES:   "God-mode ativo. Comandos: #status #mute <num> #unmute <num> #allow <num> #metrics #quit",
	},
}

// IsAffirmative reports whether a short reply is a positive confirmation in
// any supported locale.
func IsAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Trim(text, "!."))) {
	case "sim", "s", "si", "sí", "yes", "y", "claro", "ok", "pode", "confirmo":
		return true
	}
	return false
}

// IsNegative reports whether a short reply is a negative confirmation.
func IsNegative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Trim(text, "!."))) {
	case "não", "nao", "n", "no", "cancela", "cancelar", "deixa", "esquece":
		return true
	}
	return false
}
