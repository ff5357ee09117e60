package agent

import (
	"context"
	"regexp"
	"strings"

	"github.com/zapista/zapista/internal/metrics"
	"github.com/zapista/zapista/internal/providers"
)

// scopePrompt asks for a one-token verdict so a cheap low-temperature call
// suffices and the answer parses without structure.
const scopePrompt = `Você é um filtro de escopo para um assistente pessoal de organização.
O assistente só trata de: lembretes, agenda, compromissos, listas (compras,
tarefas), horários, rotina pessoal e configurações do próprio assistente.
Responda exatamente SIM se a mensagem abaixo está dentro desse escopo, ou
NAO se está fora. Não responda mais nada.`

// scopeTerms catches organizer vocabulary in the three supported language
// families. Used when the classifier is unavailable; recall matters more
// than precision here, so a false positive just means the LLM sees the turn.
var scopeTerms = regexp.MustCompile(`(?i)\b(lembr\w*|remind\w*|recorda\w*|recu[ée]rd\w*|agenda\w*|agend\w*|compromisso\w*|evento\w*|event\w*|reuni[ãa]o|meeting|cita|lista\w*|list\w*|compra\w*|shopping|tarefa\w*|task\w*|todo|hor[áa]rio\w*|schedule|alarm\w*|avis\w*|cancel\w*|remov\w*|adiar|snooze|rotina|di[áa]ri\w*|daily|semana\w*|week\w*|amanh[ãa]|tomorrow|mañana|hoje|today|hoy|m[ée]dic\w*|dentista|rem[ée]dio\w*|medicin\w*|pagar|pagamento|bill|conta\w*|anivers[áa]rio|birthday|cumpleaños)\b`)

// ScopeFilter decides whether a free-text turn belongs to the organizer
// domain before the LLM spends a full tool-calling conversation on it.
type ScopeFilter struct {
	provider providers.Provider
	breaker  *CircuitBreaker
	recorder *metrics.Recorder
	model    string
}

// NewScopeFilter builds a filter backed by a cheap classifier call, with a
// keyword fallback when the provider circuit is open.
func NewScopeFilter(provider providers.Provider, breaker *CircuitBreaker, recorder *metrics.Recorder, model string) *ScopeFilter {
	return &ScopeFilter{provider: provider, breaker: breaker, recorder: recorder, model: model}
}

// InScope reports whether the message should reach the LLM conversation.
// Provider failures feed the circuit breaker and degrade to the keyword
// check rather than blocking the turn.
func (s *ScopeFilter) InScope(ctx context.Context, text string) bool {
	if s.provider == nil || s.breaker.IsOpen() {
		return keywordInScope(text)
	}

	temp := 0.0
	resp, err := s.provider.Chat(ctx, providers.ChatRequest{
		Model: s.model,
		Messages: []providers.Message{
			{Role: "system", Content: scopePrompt},
			{Role: "user", Content: text},
		},
		MaxTokens:   5,
		Temperature: &temp,
	})
	if err != nil {
		s.breaker.RecordFailure()
		if s.recorder != nil {
			s.recorder.IncLLMFailures()
		}
		return keywordInScope(text)
	}
	s.breaker.RecordSuccess()

	verdict := strings.ToUpper(strings.TrimSpace(resp.Content))
	return strings.HasPrefix(verdict, "SIM") || strings.HasPrefix(verdict, "YES")
}

func keywordInScope(text string) bool {
	return scopeTerms.MatchString(text)
}
