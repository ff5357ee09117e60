package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound means no job with that id exists.
	ErrNotFound = errors.New("job not found")
	// ErrNotOwner means the job belongs to another chat.
	ErrNotOwner = errors.New("job belongs to another chat")
	// ErrSnoozeMax means the snooze cap was reached.
	ErrSnoozeMax = errors.New("snooze limit reached")
)

// idleWake bounds the timer sleep so newly loaded clock skew or a missed
// signal never stalls the scheduler for long.
const idleWake = 1 * time.Minute

// Service owns the job store and the firing timer. All mutations are
// serialized through its mutex; every mutation persists the store.
type Service struct {
	mu      sync.Mutex
	store   Store
	path    string
	handler JobHandler
	logger  *slog.Logger

	snoozes map[string]int // parent job id → count
	wake    chan struct{}
}

// NewService loads the store at path and prepares the scheduler. handler is
// invoked for each due job.
func NewService(path string, handler JobHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:   loadStore(path),
		path:    path,
		handler: handler,
		logger:  logger,
		snoozes: make(map[string]int),
		wake:    make(chan struct{}, 1),
	}
	s.rearmAll()
	return s
}

// rearmAll recomputes next runs for enabled jobs, e.g. after a restart.
func (s *Service) rearmAll() {
	now := time.Now()
	changed := false
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if !job.Enabled {
			continue
		}
		next, err := NextRun(job.Schedule, now)
		if err != nil {
			s.logger.Warn("cron job has invalid schedule", "job_id", job.ID, "error", err)
			job.Enabled = false
			job.State.NextRunAtMS = nil
			changed = true
			continue
		}
		if job.Schedule.Kind == KindAt && next == nil {
			// Missed while the process was down; fire on the next tick.
			v := now.UnixMilli()
			next = &v
		}
		job.State.NextRunAtMS = next
		changed = true
	}
	if changed {
		s.persist()
	}
}

// Run drives the timer until ctx is cancelled. It sleeps until the earliest
// next_run_at, executes every due job, then re-arms.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("cron scheduler started", "jobs", s.JobCount())
	for {
		sleep := s.untilNextRun()
		select {
		case <-ctx.Done():
			s.logger.Info("cron scheduler stopped")
			return
		case <-s.wake:
		case <-time.After(sleep):
			s.fireDue()
		}
	}
}

func (s *Service) untilNextRun() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	earliest := int64(0)
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if !job.Enabled || job.State.NextRunAtMS == nil {
			continue
		}
		if earliest == 0 || *job.State.NextRunAtMS < earliest {
			earliest = *job.State.NextRunAtMS
		}
	}
	if earliest == 0 {
		return idleWake
	}
	d := time.Until(time.UnixMilli(earliest))
	if d < 0 {
		return 0
	}
	if d > idleWake {
		return idleWake
	}
	return d
}

// fireDue executes all jobs whose next run has arrived.
func (s *Service) fireDue() {
	now := nowMS()

	s.mu.Lock()
	var due []Job
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if job.Enabled && job.State.NextRunAtMS != nil && *job.State.NextRunAtMS <= now {
			due = append(due, *job)
		}
	}
	s.mu.Unlock()

	for i := range due {
		s.executeJob(&due[i])
	}
}

func (s *Service) executeJob(job *Job) {
	_, err := s.handler(job)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(job.ID)
	if idx < 0 {
		return
	}
	stored := &s.store.Jobs[idx]

	ran := nowMS()
	stored.State.LastRunAtMS = &ran
	stored.UpdatedAtMS = ran
	if err != nil {
		stored.State.LastStatus = "error"
		stored.State.LastError = err.Error()
		s.logger.Warn("cron job failed", "job_id", stored.ID, "error", err)
	} else {
		stored.State.LastStatus = "ok"
		stored.State.LastError = ""
	}

	switch stored.Schedule.Kind {
	case KindAt:
		if err == nil || stored.DeleteAfterRun {
			s.store.Jobs = append(s.store.Jobs[:idx], s.store.Jobs[idx+1:]...)
		} else {
			// Retained disabled so the failure stays inspectable.
			stored.Enabled = false
			stored.State.NextRunAtMS = nil
		}
	default:
		next, nerr := NextRun(stored.Schedule, time.Now())
		if nerr != nil {
			s.logger.Warn("cron job re-arm failed", "job_id", stored.ID, "error", nerr)
			stored.Enabled = false
			stored.State.NextRunAtMS = nil
		} else {
			stored.State.NextRunAtMS = next
		}
	}

	s.persist()
}

// AddJob creates a job with a mnemonic id. A job whose owner, normalized
// message and schedule match an existing one is merged; the existing id is
// returned with created=false.
func (s *Service) AddJob(name string, schedule Schedule, payload Payload, deleteAfterRun bool) (string, bool, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return "", false, err
	}
	next, err := NextRun(schedule, time.Now())
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	norm := normalizeMessage(payload.Message)
	for i := range s.store.Jobs {
		existing := &s.store.Jobs[i]
		if existing.OwnedBy(payload.Channel, payload.To) &&
			normalizeMessage(existing.Payload.Message) == norm &&
			sameSchedule(existing.Schedule, schedule) {
			return existing.ID, false, nil
		}
	}

	id := GenerateID(payload.Message, func(candidate string) bool {
		return s.indexOf(candidate) >= 0
	})

	now := nowMS()
	job := Job{
		ID:             id,
		Name:           name,
		Enabled:        true,
		Schedule:       schedule,
		Payload:        payload,
		State:          JobState{NextRunAtMS: next},
		CreatedAtMS:    now,
		UpdatedAtMS:    now,
		DeleteAfterRun: deleteAfterRun,
	}
	s.store.Jobs = append(s.store.Jobs, job)
	s.persist()
	s.signalWake()

	s.logger.Info("cron job added", "job_id", id, "kind", schedule.Kind, "chat", payload.To)
	return id, true, nil
}

// AddWithLeads creates an "at" job plus one pre-event sibling per lead that
// fits before the fire time. Siblings link back via parent_job_id.
func (s *Service) AddWithLeads(name string, atMS int64, payload Payload, leads []int) (string, error) {
	at := atMS
	schedule := Schedule{Kind: KindAt, AtMS: &at}
	id, created, err := s.AddJob(name, schedule, payload, false)
	if err != nil || !created {
		return id, err
	}

	inSeconds := (atMS - nowMS()) / 1000
	for _, lead := range leads {
		if lead <= 0 || int64(lead) >= inSeconds {
			continue
		}
		leadAt := atMS - int64(lead)*1000
		leadPayload := payload
		leadPayload.ParentJobID = id
		leadPayload.LeadSeconds = lead
		leadSchedule := Schedule{Kind: KindAt, AtMS: &leadAt}
		if _, _, err := s.AddJob(name, leadSchedule, leadPayload, true); err != nil {
			s.logger.Warn("pre-event lead not created", "parent", id, "lead_seconds", lead, "error", err)
		}
	}
	return id, nil
}

// Snooze re-schedules a fired job 5 minutes out, capped at 3 per parent.
// The delayed copy links back via parent_job_id.
func (s *Service) Snooze(parentID string, payload Payload) (string, error) {
	s.mu.Lock()
	if s.snoozes[parentID] >= MaxSnoozes {
		s.mu.Unlock()
		return "", ErrSnoozeMax
	}
	s.snoozes[parentID]++
	count := s.snoozes[parentID]
	s.mu.Unlock()

	at := time.Now().Add(SnoozeDelay).UnixMilli()
	payload.ParentJobID = parentID
	schedule := Schedule{Kind: KindAt, AtMS: &at}

	id, _, err := s.AddJob("snooze "+parentID, schedule, payload, true)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if idx := s.indexOf(id); idx >= 0 {
		s.store.Jobs[idx].State.SnoozeCount = count
		s.persist()
	}
	s.mu.Unlock()
	return id, nil
}

// ListJobs returns the chat's jobs, never another owner's.
func (s *Service) ListJobs(channel, chatID string) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var jobs []Job
	for i := range s.store.Jobs {
		if s.store.Jobs[i].OwnedBy(channel, chatID) {
			jobs = append(jobs, s.store.Jobs[i])
		}
	}
	return jobs
}

// GetJob looks a job up by id regardless of owner. Callers enforce
// ownership where it matters.
func (s *Service) GetJob(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(id); idx >= 0 {
		return s.store.Jobs[idx], true
	}
	return Job{}, false
}

// RemoveJob deletes the chat's job along with any pre-event or snooze
// children. Foreign ids are rejected.
func (s *Service) RemoveJob(channel, chatID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return ErrNotFound
	}
	if !s.store.Jobs[idx].OwnedBy(channel, chatID) {
		return ErrNotOwner
	}

	kept := s.store.Jobs[:0]
	for i := range s.store.Jobs {
		job := &s.store.Jobs[i]
		if job.ID == id || job.Payload.ParentJobID == id {
			continue
		}
		kept = append(kept, *job)
	}
	s.store.Jobs = kept
	s.persist()
	s.signalWake()

	s.logger.Info("cron job removed", "job_id", id, "chat", chatID)
	return nil
}

// JobCount returns the number of stored jobs.
func (s *Service) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store.Jobs)
}

func (s *Service) indexOf(id string) int {
	for i := range s.store.Jobs {
		if s.store.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) persist() {
	if err := saveStore(s.path, s.store); err != nil {
		s.logger.Error("cron store save failed", "path", s.path, "error", err)
	}
}

func (s *Service) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func normalizeMessage(msg string) string {
	return strings.Join(strings.Fields(strings.ToLower(msg)), " ")
}

func sameSchedule(a, b Schedule) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindAt:
		return int64Eq(a.AtMS, b.AtMS)
	case KindEvery:
		return int64Eq(a.EveryMS, b.EveryMS) && int64Eq(a.NotBeforeMS, b.NotBeforeMS)
	case KindCron:
		return a.Expr == b.Expr && a.TZ == b.TZ && int64Eq(a.NotBeforeMS, b.NotBeforeMS)
	}
	return false
}

func int64Eq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// FormatLocalTime renders an epoch-ms timestamp as HH:MM in the given IANA
// zone, falling back to UTC.
func FormatLocalTime(ms int64, tz string) string {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return time.UnixMilli(ms).In(loc).Format("15:04")
}

// DescribeJob is the one-line listing form shown by /jobs.
func DescribeJob(j Job) string {
	var when string
	switch j.Schedule.Kind {
	case KindAt:
		if j.State.NextRunAtMS != nil {
			when = FormatLocalTime(*j.State.NextRunAtMS, j.Schedule.TZ)
		} else {
			when = "-"
		}
	case KindEvery:
		when = fmt.Sprintf("cada %dmin", *j.Schedule.EveryMS/60000)
	case KindCron:
		when = j.Schedule.Expr
	}
	return fmt.Sprintf("[%s] %s (%s)", j.ID, j.Payload.Message, when)
}
