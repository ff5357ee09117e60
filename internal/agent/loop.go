// Package agent runs the message processing loop: rate limiting, the
// deterministic handler chain, scope filtering and the tool-calling LLM
// fallback. One inbound message becomes at most one reply.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/handlers"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/metrics"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/sessions"
	"github.com/zapista/zapista/internal/tools"
	"github.com/zapista/zapista/internal/users"
)

// maxToolIterations bounds the tool-call loop for a single turn so a
// misbehaving model cannot spin forever.
const maxToolIterations = 20

// Options configures a Loop.
type Options struct {
	Router    bus.MessageRouter
	Users     *users.Store
	Sessions  *sessions.Manager
	Cron      *cron.Service
	Tools     *tools.Registry
	Provider  providers.Provider
	Recorder  *metrics.Recorder
	Model     string
	Burst     int
	Window    time.Duration
	Strict    bool
	Logger    *slog.Logger
	RestartFn func()
}

// Loop consumes inbound messages and produces replies.
type Loop struct {
	router    bus.MessageRouter
	users     *users.Store
	sessions  *sessions.Manager
	cron      *cron.Service
	tools     *tools.Registry
	chain     *handlers.Registry
	provider  providers.Provider
	recorder  *metrics.Recorder
	scope     *ScopeFilter
	breaker   *CircuitBreaker
	limiter   *RateLimiter
	model     string
	logger    *slog.Logger
	restartFn func()
}

// NewLoop wires the turn pipeline. The handler chain order is fixed:
// pending confirmations first, then structured commands, then the LLM.
func NewLoop(opts Options) *Loop {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breaker := NewCircuitBreaker(3, 60*time.Second)

	chain := handlers.NewRegistry(opts.Strict, logger)
	chain.Register(handlers.PendingHandler())
	chain.Register(handlers.CommandHandler())

	return &Loop{
		router:    opts.Router,
		users:     opts.Users,
		sessions:  opts.Sessions,
		cron:      opts.Cron,
		tools:     opts.Tools,
		chain:     chain,
		provider:  opts.Provider,
		recorder:  opts.Recorder,
		scope:     NewScopeFilter(opts.Provider, breaker, opts.Recorder, opts.Model),
		breaker:   breaker,
		limiter:   NewRateLimiter(opts.Burst, opts.Window),
		model:     opts.Model,
		logger:    logger,
		restartFn: opts.RestartFn,
	}
}

// Breaker exposes the provider circuit for status reporting.
func (l *Loop) Breaker() *CircuitBreaker { return l.breaker }

// Run consumes inbound messages until the context is cancelled. Turns run
// sequentially; ordering within a chat matters more than throughput at
// personal-organizer volume.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("agent loop started")
	for {
		msg, ok := l.router.ConsumeInbound(ctx)
		if !ok {
			l.logger.Info("agent loop stopped")
			return
		}
		l.HandleTurn(ctx, msg)
	}
}

// HandleTurn processes one inbound message end to end and publishes the
// reply, if any. Panics are contained to the turn.
func (l *Loop) HandleTurn(ctx context.Context, msg bus.InboundMessage) {
	traceID := msg.TraceID()
	if traceID == "" {
		traceID = NewTraceID()
	}

	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("turn panicked", "trace_id", traceID, "panic", fmt.Sprint(rec))
			digits := phoneDigits(msg.ChatID)
			l.reply(msg, traceID, i18n.T(i18n.Resolve("", digits), "generic_error"))
		}
	}()

	reply := l.processTurn(ctx, msg, traceID)
	if reply != "" {
		l.reply(msg, traceID, reply)
	}
}

func (l *Loop) processTurn(ctx context.Context, msg bus.InboundMessage, traceID string) string {
	digits := phoneDigits(msg.ChatID)
	phoneHash := users.HashPhone(digits)

	user, err := l.users.GetUser(phoneHash)
	if err != nil {
		l.logger.Error("user lookup failed", "trace_id", traceID, "error", err)
		user = users.User{PhoneHash: phoneHash, LeadSeconds: 900}
	}
	lang := i18n.Resolve(user.Language, digits)

	allowed, notify := l.limiter.Allow(msg.Channel + ":" + msg.ChatID)
	if !allowed {
		if notify {
			return i18n.T(lang, "rate_limited")
		}
		l.logger.Debug("turn dropped by rate limit", "trace_id", traceID, "chat_id", msg.ChatID)
		return ""
	}

	owner := tools.Owner{
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		PhoneHash: phoneHash,
		Timezone:  user.Timezone,
		Lang:      lang,
		Leads:     append([]int{user.LeadSeconds}, user.ExtraLeads...),
	}
	hc := &handlers.Context{
		Ctx:       ctx,
		Channel:   msg.Channel,
		ChatID:    msg.ChatID,
		TraceID:   traceID,
		Owner:     owner,
		User:      user,
		Users:     l.users,
		Cron:      l.cron,
		Tools:     l.tools,
		Sessions:  l.sessions,
		Logger:    l.logger,
		RestartFn: l.restartFn,
	}

	reply, handled, err := l.chain.Run(hc, msg.Content)
	if err != nil {
		l.logger.Error("handler chain failed", "trace_id", traceID, "error", err)
		return i18n.T(lang, "generic_error")
	}
	if handled {
		return reply
	}

	if !l.scope.InScope(ctx, msg.Content) {
		return i18n.T(lang, "scope_reminder")
	}

	return l.llmTurn(ctx, owner, traceID, msg.Content)
}

// llmTurn runs the tool-calling conversation for one free-text turn. The
// session history persists across turns; tool results go back into the
// conversation until the model produces plain text or the iteration cap
// is hit.
func (l *Loop) llmTurn(ctx context.Context, owner tools.Owner, traceID, text string) string {
	lang := owner.Lang
	if l.provider == nil || l.breaker.IsOpen() {
		return i18n.T(lang, "degraded_mode")
	}

	key := sessions.Key(owner.Channel, owner.ChatID)
	l.sessions.AddMessage(key, providers.Message{Role: "user", Content: text})

	messages := []providers.Message{{Role: "system", Content: l.systemPrompt(owner)}}
	messages = append(messages, l.sessions.GetHistory(key)...)

	defs := l.tools.Definitions()
	var lastContent string

	for i := 0; i < maxToolIterations; i++ {
		resp, err := l.provider.Chat(ctx, providers.ChatRequest{
			Model:    l.model,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			l.breaker.RecordFailure()
			if l.recorder != nil {
				l.recorder.IncLLMFailures()
			}
			l.logger.Error("provider call failed", "trace_id", traceID, "iteration", i, "error", err)
			return i18n.T(lang, "degraded_mode")
		}
		l.breaker.RecordSuccess()

		assistant := providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		}
		messages = append(messages, assistant)
		l.sessions.AddMessage(key, assistant)
		lastContent = resp.Content

		if len(resp.ToolCalls) == 0 {
			break
		}
		for _, call := range resp.ToolCalls {
			result := l.tools.Execute(ctx, owner, call.Name, call.Arguments)
			l.logger.Debug("tool executed",
				"trace_id", traceID, "tool", call.Name, "result_len", len(result))
			toolMsg := providers.Message{Role: "tool", Content: result, ToolCallID: call.ID}
			messages = append(messages, toolMsg)
			l.sessions.AddMessage(key, toolMsg)
		}
	}

	if err := l.sessions.Save(key); err != nil {
		l.logger.Warn("session save failed", "trace_id", traceID, "error", err)
	}
	if lastContent == "" {
		return i18n.T(lang, "generic_error")
	}
	return lastContent
}

// systemPrompt gives the model the user's locale context and the scope
// rules. Kept in Portuguese; the model answers in the user's language.
func (l *Loop) systemPrompt(owner tools.Owner) string {
	tz := owner.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)

	return fmt.Sprintf(`Você é um assistente pessoal de organização no WhatsApp.
Você ajuda com lembretes, agenda, listas e rotina pessoal. Nada além disso.
Use as ferramentas disponíveis para agendar, listar e remover lembretes e
para gerenciar listas. Responda sempre no idioma do usuário (%s), de forma
curta e direta, como uma mensagem de WhatsApp.
Agora são %s no fuso %s.`, string(owner.Lang), now.Format("2006-01-02 15:04"), tz)
}

// reply publishes the single outbound message for this turn.
func (l *Loop) reply(msg bus.InboundMessage, traceID, content string) {
	l.router.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
		ReplyTo: msg.Metadata[bus.MetaMessageID],
		Metadata: map[string]string{
			bus.MetaTraceID:  traceID,
			bus.MetaPriority: bus.PriorityNormal,
		},
	})
}

// phoneDigits extracts the numeric phone portion of a chat ID such as
// "5511999990000@c.us".
func phoneDigits(chatID string) string {
	head, _, _ := strings.Cut(chatID, "@")
	var b strings.Builder
	for _, r := range head {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
