package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/zapista/zapista/internal/admin"
	"github.com/zapista/zapista/internal/agent"
	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/channels"
	"github.com/zapista/zapista/internal/channels/whatsapp"
	"github.com/zapista/zapista/internal/config"
	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/metrics"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/sessions"
	"github.com/zapista/zapista/internal/tools"
	"github.com/zapista/zapista/internal/users"
)

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDataDirs(); err != nil {
		logger.Error("data directory setup failed", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bus, optionally backed by Redis lanes. Inbound dedup belongs to the
	// channel adapter: Redis with a 24h window when configured, otherwise
	// a short in-memory map. The bus publishes whatever it is handed.
	var busOpts []bus.Option
	var lanes *bus.RedisLanes
	var inboundDedup bus.InboundDeduper = bus.NewMemoryDeduper(2 * time.Minute)
	if cfg.RedisURL != "" {
		lanes, err = bus.NewRedisLanes(cfg.RedisURL, cfg.RedisNamespace)
		if err != nil {
			logger.Error("redis unavailable", "url", cfg.RedisURL, "error", err)
			os.Exit(1)
		}
		defer lanes.Close()
		busOpts = append(busOpts, bus.WithRedisLanes(lanes))
		inboundDedup = bus.NewRedisDeduper(lanes)
		logger.Info("redis lanes enabled", "namespace", cfg.RedisNamespace)
	}
	router := bus.New(busOpts...)
	router.StartRedisFeeder(ctx)

	store, err := users.Open(filepath.Join(cfg.DataDir, "users.db"))
	if err != nil {
		logger.Error("user store unavailable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	sessionMgr := sessions.NewManager(filepath.Join(cfg.DataDir, "sessions"))
	recorder := metrics.NewRecorder(filepath.Join(cfg.DataDir, "server_metrics.json"), nil, logger)

	// The handler needs the service back for quiet-hours deferral; the
	// closure captures the variable assigned right after.
	var cronSvc *cron.Service
	cronSvc = cron.NewService(
		filepath.Join(cfg.DataDir, "cron", "jobs.json"),
		makeJobHandler(router, store, recorder, logger, func() *cron.Service { return cronSvc }),
		logger,
	)

	var provider providers.Provider
	if cfg.LLMAPIKey != "" {
		provider = providers.NewOpenAIProvider("openai", cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	} else {
		logger.Warn("no LLM API key, free-text turns run in degraded mode")
	}

	toolsReg := tools.NewRegistry()
	toolsReg.Register(tools.NewCronTool(cronSvc, store))
	toolsReg.Register(tools.NewListTool(store))
	toolsReg.Register(tools.NewEventTool(store, cronSvc))
	toolsReg.Register(tools.NewMessageTool(router))

	// A confirmed /restart exits cleanly after the goodbye message drains;
	// the supervisor brings the process back up.
	restartCh := make(chan struct{}, 1)
	restartFn := func() {
		select {
		case restartCh <- struct{}{}:
		default:
		}
	}

	loop := agent.NewLoop(agent.Options{
		Router:    router,
		Users:     store,
		Sessions:  sessionMgr,
		Cron:      cronSvc,
		Tools:     toolsReg,
		Provider:  provider,
		Recorder:  recorder,
		Model:     cfg.LLMModel,
		Burst:     cfg.RateLimitBurst,
		Window:    cfg.RateLimitWindow,
		Strict:    cfg.StrictHandlers,
		Logger:    logger,
		RestartFn: restartFn,
	})

	godMode := admin.NewGodMode(admin.GodModeConfig{
		PasswordHash: cfg.GodModePasswordHash,
		MaxAttempts:  cfg.GodModeMaxAttempts,
		Lockout:      cfg.GodModeLockout,
	}, filepath.Join(cfg.DataDir, "security", "god_mode_lockout.json"), logger)
	mutes := admin.NewMuteLedger(filepath.Join(cfg.DataDir, "muted.json"), logger)

	var stt providers.Transcriber
	if cfg.STTEnabled && cfg.LLMAPIKey != "" {
		stt = providers.NewWhisperTranscriber(cfg.LLMAPIKey, cfg.LLMBaseURL)
	}

	waChannel := whatsapp.New(whatsapp.Options{
		BridgeURL: cfg.BridgeURL,
		Allowed:   cfg.AllowedNumbers,
		Router:    router,
		Dedup:     inboundDedup,
		GodMode:   godMode,
		Mutes:     mutes,
		Recorder:  recorder,
		STT:       stt,
		Cron:      cronSvc,
		Users:     store,
		Logger:    logger,
	})

	chanMgr := channels.NewManager(router, logger)
	chanMgr.Register(waChannel)
	if err := chanMgr.StartAll(ctx); err != nil {
		logger.Error("channel startup failed", "error", err)
		os.Exit(1)
	}

	go cronSvc.Run(ctx)
	go loop.Run(ctx)

	if cfg.MetricsAddr != "" {
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	logger.Info("zapista up", "version", Version, "data_dir", cfg.DataDir, "bridge", cfg.BridgeURL)

	restarting := false
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-restartCh:
		restarting = true
		logger.Info("restart confirmed, going down for supervisor respawn")
		drainOutbound(router, 5*time.Second)
	}

	stop()
	chanMgr.StopAll()
	logger.Info("zapista stopped")
	if restarting {
		os.Exit(0)
	}
}

// drainOutbound waits for the local outbound queues to empty, so the
// farewell reply reaches the bridge before the process exits. The short
// tail sleep covers the dispatcher's in-flight write.
func drainOutbound(router *bus.MessageBus, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for router.PendingOutbound() > 0 && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	time.Sleep(500 * time.Millisecond)
}

// makeJobHandler builds the scheduler callback: format the reminder in the
// recipient's language and publish it on the high-priority lane. Deliveries
// inside the user's quiet window are deferred to its end; pre-event leads
// are dropped instead, a heads-up after the fact helps nobody.
func makeJobHandler(router bus.MessageRouter, store *users.Store, recorder *metrics.Recorder, logger *slog.Logger, svc func() *cron.Service) cron.JobHandler {
	return func(job *cron.Job) (string, error) {
		p := job.Payload
		if !p.Deliver || p.Channel == "" || p.To == "" {
			return "", nil
		}

		digits := digitsOf(p.To)
		u, err := store.GetUser(users.HashPhone(digits))
		if err != nil {
			u = users.User{}
		}
		lang := i18n.Resolve(u.Language, digits)

		if quiet, resumeMS := inQuietWindow(u, time.Now()); quiet {
			if p.ParentJobID != "" {
				return "", nil
			}
			at := resumeMS
			if _, _, err := svc().AddJob(job.Name, cron.Schedule{Kind: cron.KindAt, AtMS: &at}, p, true); err != nil {
				logger.Warn("quiet-hours deferral failed, delivering now", "job_id", job.ID, "error", err)
			} else {
				logger.Info("delivery deferred by quiet hours", "job_id", job.ID, "resume_ms", resumeMS)
				return "", nil
			}
		}

		content := i18n.T(lang, "reminder_fire", p.Message)
		if p.ParentJobID != "" && p.LeadSeconds > 0 {
			content = i18n.T(lang, "reminder_pre_lead", describeLead(p.LeadSeconds), p.Message)
		}

		router.PublishOutbound(bus.OutboundMessage{
			Channel: p.Channel,
			ChatID:  p.To,
			Content: content,
			Metadata: map[string]string{
				bus.MetaPriority: bus.PriorityHigh,
				bus.MetaJobID:    job.ID,
				bus.MetaTraceID:  agent.NewTraceID(),
			},
		})
		recorder.IncJobsFired()

		// History only for final deliveries, not heads-up leads.
		if p.ParentJobID == "" {
			if err := store.AddHistory(users.HashPhone(digits), users.HistoryDelivered, p.Message); err != nil {
				logger.Warn("reminder history not recorded", "job_id", job.ID, "error", err)
			}
		}
		return content, nil
	}
}

// inQuietWindow reports whether now falls inside the user's quiet window
// (in their timezone) and when delivery may resume. Windows may wrap
// midnight ("22:00"–"07:00").
func inQuietWindow(u users.User, now time.Time) (bool, int64) {
	startH, startM, ok1 := parseClock(u.QuietStart)
	endH, endM, ok2 := parseClock(u.QuietEnd)
	if !ok1 || !ok2 {
		return false, 0
	}

	loc := time.UTC
	if u.Timezone != "" {
		if l, err := time.LoadLocation(u.Timezone); err == nil {
			loc = l
		}
	}
	local := now.In(loc)

	cur := local.Hour()*60 + local.Minute()
	start := startH*60 + startM
	end := endH*60 + endM
	if start == end {
		return false, 0
	}

	inside := false
	if start < end {
		inside = cur >= start && cur < end
	} else {
		inside = cur >= start || cur < end
	}
	if !inside {
		return false, 0
	}

	resume := time.Date(local.Year(), local.Month(), local.Day(), endH, endM, 0, 0, loc)
	if !resume.After(local) {
		resume = resume.AddDate(0, 0, 1)
	}
	return true, resume.UnixMilli()
}

func parseClock(s string) (hour, minute int, ok bool) {
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// describeLead renders a lead in whole minutes or hours.
func describeLead(seconds int) string {
	if seconds >= 3600 && seconds%3600 == 0 {
		return fmt.Sprintf("%dh", seconds/3600)
	}
	return fmt.Sprintf("%d min", seconds/60)
}

// digitsOf strips a chat id like "5511999990000@c.us" to phone digits.
func digitsOf(chatID string) string {
	out := make([]rune, 0, len(chatID))
	for _, r := range chatID {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		} else if r == '@' {
			break
		}
	}
	return string(out)
}
