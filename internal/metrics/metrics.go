// Package metrics tracks server counters two ways: Prometheus for scraping
// and a rolling 14-day JSON file the admin pipeline can read back without a
// metrics stack.
package metrics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// retentionDays bounds the JSON snapshot history.
const retentionDays = 14

// DayCounters is one day of activity.
type DayCounters struct {
	MessagesIn       int64 `json:"messages_in"`
	MessagesOut      int64 `json:"messages_out"`
	JobsFired        int64 `json:"jobs_fired"`
	LLMFailures      int64 `json:"llm_failures"`
	SendsSkipped     int64 `json:"sends_skipped"`
	BridgeReconnects int64 `json:"bridge_reconnects"`
}

// Recorder bumps Prometheus counters and mirrors them into the daily file.
type Recorder struct {
	mu   sync.Mutex
	path string
	days map[string]*DayCounters // "2006-01-02" → counters

	messagesIn       prometheus.Counter
	messagesOut      prometheus.Counter
	jobsFired        prometheus.Counter
	llmFailures      prometheus.Counter
	sendsSkipped     prometheus.Counter
	bridgeReconnects prometheus.Counter

	logger *slog.Logger
}

// NewRecorder loads the existing snapshot file, if any, and registers the
// Prometheus counters. A nil registerer means the default registry; tests
// pass their own to avoid duplicate registration.
func NewRecorder(path string, reg prometheus.Registerer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	r := &Recorder{
		path:   path,
		days:   make(map[string]*DayCounters),
		logger: logger,

		messagesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapista_messages_in_total",
			Help: "Inbound messages accepted from channels.",
		}),
		messagesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapista_messages_out_total",
			Help: "Outbound messages delivered to channels.",
		}),
		jobsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapista_jobs_fired_total",
			Help: "Scheduled jobs executed.",
		}),
		llmFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapista_llm_failures_total",
			Help: "Provider calls that returned an error.",
		}),
		sendsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapista_sends_skipped_total",
			Help: "Outbound sends skipped because the transport was down.",
		}),
		bridgeReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "zapista_bridge_reconnects_total",
			Help: "WhatsApp bridge reconnection attempts.",
		}),
	}
	r.load()
	return r
}

func (r *Recorder) IncMessagesIn()      { r.messagesIn.Inc(); r.bump(func(d *DayCounters) { d.MessagesIn++ }) }
func (r *Recorder) IncMessagesOut()     { r.messagesOut.Inc(); r.bump(func(d *DayCounters) { d.MessagesOut++ }) }
func (r *Recorder) IncJobsFired()       { r.jobsFired.Inc(); r.bump(func(d *DayCounters) { d.JobsFired++ }) }
func (r *Recorder) IncLLMFailures()     { r.llmFailures.Inc(); r.bump(func(d *DayCounters) { d.LLMFailures++ }) }
func (r *Recorder) IncSendsSkipped()    { r.sendsSkipped.Inc(); r.bump(func(d *DayCounters) { d.SendsSkipped++ }) }
func (r *Recorder) IncBridgeReconnect() { r.bridgeReconnects.Inc(); r.bump(func(d *DayCounters) { d.BridgeReconnects++ }) }

func (r *Recorder) bump(apply func(*DayCounters)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := time.Now().UTC().Format("2006-01-02")
	d, ok := r.days[today]
	if !ok {
		d = &DayCounters{}
		r.days[today] = d
		r.pruneLocked()
	}
	apply(d)
	r.persistLocked()
}

// Today returns a copy of today's counters.
func (r *Recorder) Today() DayCounters {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.days[time.Now().UTC().Format("2006-01-02")]; ok {
		return *d
	}
	return DayCounters{}
}

// Report renders the retained days newest-first for the admin pipeline.
func (r *Recorder) Report() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	dates := make([]string, 0, len(r.days))
	for date := range r.days {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	out := "📊 últimos dias:\n"
	for _, date := range dates {
		d := r.days[date]
		out += fmt.Sprintf("%s: in=%d out=%d jobs=%d llm_err=%d skip=%d reconn=%d\n",
			date, d.MessagesIn, d.MessagesOut, d.JobsFired,
			d.LLMFailures, d.SendsSkipped, d.BridgeReconnects)
	}
	return out
}

// pruneLocked drops days older than the retention window.
func (r *Recorder) pruneLocked() {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format("2006-01-02")
	for date := range r.days {
		if date < cutoff {
			delete(r.days, date)
		}
	}
}

func (r *Recorder) load() {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &r.days); err != nil {
		r.logger.Warn("metrics snapshot unreadable, starting fresh", "path", r.path, "error", err)
		r.days = make(map[string]*DayCounters)
	}
}

func (r *Recorder) persistLocked() {
	data, err := json.MarshalIndent(r.days, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), "metrics-*.tmp")
	if err != nil {
		r.logger.Warn("metrics persist failed", "error", err)
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		os.Remove(tmp.Name())
	}
}

// Serve exposes /metrics and /healthz on addr. Blocks until the listener
// fails; run it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return http.ListenAndServe(addr, mux)
}
