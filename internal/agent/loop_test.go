package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/metrics"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/sessions"
	"github.com/zapista/zapista/internal/tools"
	"github.com/zapista/zapista/internal/users"
)

// scriptedProvider returns canned responses in order. The scope filter
// consumes the first response of a free-text turn.
type scriptedProvider struct {
	responses []*providers.ChatResponse
	errs      []error
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return &providers.ChatResponse{Content: "ok"}, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "scripted" }

func text(s string) *providers.ChatResponse {
	return &providers.ChatResponse{Content: s, FinishReason: "stop"}
}

func newTestLoop(t *testing.T, provider providers.Provider, burst int) (*Loop, bus.MessageRouter) {
	t.Helper()
	dir := t.TempDir()

	router := bus.New()
	store, err := users.Open(filepath.Join(dir, "users.db"))
	if err != nil {
		t.Fatalf("users.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := cron.NewService(filepath.Join(dir, "jobs.json"), func(job *cron.Job) (string, error) {
		return "", nil
	}, nil)

	reg := tools.NewRegistry()
	reg.Register(tools.NewCronTool(svc, store))
	reg.Register(tools.NewListTool(store))

	loop := NewLoop(Options{
		Router:   router,
		Users:    store,
		Sessions: sessions.NewManager(filepath.Join(dir, "sessions")),
		Cron:     svc,
		Tools:    reg,
		Provider: provider,
		Recorder: metrics.NewRecorder(filepath.Join(dir, "metrics.json"), prometheus.NewRegistry(), nil),
		Model:    "test-model",
		Burst:    burst,
		Window:   time.Minute,
		Strict:   true,
	})
	return loop, router
}

func inbound(content string) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:  "whatsapp",
		SenderID: "5511999990000@c.us",
		ChatID:   "5511999990000@c.us",
		Content:  content,
		Metadata: map[string]string{bus.MetaTraceID: "trace-test-01"},
	}
}

func takeReply(t *testing.T, router bus.MessageRouter) (bus.OutboundMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return router.ConsumeOutbound(ctx)
}

func TestCommandTurnSkipsProvider(t *testing.T) {
	provider := &scriptedProvider{}
	loop, router := newTestLoop(t, provider, 15)

	loop.HandleTurn(context.Background(), inbound("/lembrete beber água em 5 min"))

	out, ok := takeReply(t, router)
	if !ok {
		t.Fatal("expected a reply")
	}
	if !strings.Contains(out.Content, "Lembrete agendado") {
		t.Errorf("reply = %q", out.Content)
	}
	if out.Metadata[bus.MetaTraceID] != "trace-test-01" {
		t.Errorf("trace_id = %q", out.Metadata[bus.MetaTraceID])
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times for a structured command", provider.calls)
	}
}

func TestRateLimitNotifiesOnce(t *testing.T) {
	loop, router := newTestLoop(t, &scriptedProvider{}, 1)

	loop.HandleTurn(context.Background(), inbound("/jobs"))
	takeReply(t, router)

	loop.HandleTurn(context.Background(), inbound("/jobs"))
	out, ok := takeReply(t, router)
	if !ok {
		t.Fatal("saturation should produce one notice")
	}
	if out.Content != i18n.T(i18n.PtBR, "rate_limited") {
		t.Errorf("notice = %q", out.Content)
	}

	loop.HandleTurn(context.Background(), inbound("/jobs"))
	if _, ok := takeReply(t, router); ok {
		t.Error("further drops must be silent")
	}
}

func TestOutOfScopeReply(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{text("NAO")}}
	loop, router := newTestLoop(t, provider, 15)

	loop.HandleTurn(context.Background(), inbound("qual o sentido da vida?"))

	out, ok := takeReply(t, router)
	if !ok {
		t.Fatal("expected a reply")
	}
	if out.Content != i18n.T(i18n.PtBR, "scope_reminder") {
		t.Errorf("reply = %q", out.Content)
	}
	if provider.calls != 1 {
		t.Errorf("provider calls = %d, want only the scope check", provider.calls)
	}
}

func TestToolCallingTurn(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{
		text("SIM"),
		{
			FinishReason: "tool_calls",
			ToolCalls: []providers.ToolCall{{
				ID:   "call_1",
				Name: "cron",
				Arguments: map[string]any{
					"action":     "add",
					"message":    "tomar remédio",
					"in_seconds": float64(300),
				},
			}},
		},
		text("Anotado! Te lembro em 5 minutos."),
	}}
	loop, router := newTestLoop(t, provider, 15)

	loop.HandleTurn(context.Background(), inbound("preciso tomar meu remédio daqui a pouco, me ajuda?"))

	out, ok := takeReply(t, router)
	if !ok {
		t.Fatal("expected a reply")
	}
	if out.Content != "Anotado! Te lembro em 5 minutos." {
		t.Errorf("reply = %q", out.Content)
	}
	if loop.cron.JobCount() != 1 {
		t.Errorf("jobs = %d, want 1 from the tool call", loop.cron.JobCount())
	}
}

func TestProviderFailureDegrades(t *testing.T) {
	boom := errors.New("upstream down")
	provider := &scriptedProvider{errs: []error{boom, boom}}
	loop, router := newTestLoop(t, provider, 15)

	// Scope check fails and falls back to keywords; "lembrete" matches, the
	// conversation call fails too and the turn degrades.
	loop.HandleTurn(context.Background(), inbound("cria um lembrete pra mim"))

	out, ok := takeReply(t, router)
	if !ok {
		t.Fatal("expected a reply")
	}
	if out.Content != i18n.T(i18n.PtBR, "degraded_mode") {
		t.Errorf("reply = %q", out.Content)
	}

	// Both the scope check and the conversation call failed.
	if got := loop.recorder.Today().LLMFailures; got != 2 {
		t.Errorf("llm failures = %d, want 2", got)
	}
}

func TestBreakerOpenSkipsProvider(t *testing.T) {
	provider := &scriptedProvider{}
	loop, router := newTestLoop(t, provider, 15)

	for i := 0; i < 3; i++ {
		loop.breaker.RecordFailure()
	}

	loop.HandleTurn(context.Background(), inbound("o que tenho na agenda de amanhã?"))

	out, ok := takeReply(t, router)
	if !ok {
		t.Fatal("expected a reply")
	}
	if out.Content != i18n.T(i18n.PtBR, "degraded_mode") {
		t.Errorf("reply = %q", out.Content)
	}
	if provider.calls != 0 {
		t.Errorf("open breaker must skip the provider, calls = %d", provider.calls)
	}
}
