package cron

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestService(t *testing.T, handler JobHandler) *Service {
	t.Helper()
	if handler == nil {
		handler = func(job *Job) (string, error) { return "", nil }
	}
	return NewService(filepath.Join(t.TempDir(), "jobs.json"), handler, nil)
}

func atPayload(chatID, message string) Payload {
	return Payload{
		Kind:    PayloadAgentTurn,
		Message: message,
		Deliver: true,
		Channel: "whatsapp",
		To:      chatID,
	}
}

func TestAddJobAndDuplicateMerge(t *testing.T) {
	s := newTestService(t, nil)
	at := time.Now().Add(time.Hour).UnixMilli()
	schedule := Schedule{Kind: KindAt, AtMS: &at}

	id1, created, err := s.AddJob("beber água", schedule, atPayload("111@c.us", "beber água"), false)
	if err != nil || !created {
		t.Fatalf("AddJob: id=%q created=%v err=%v", id1, created, err)
	}

	// Same owner, message and schedule merges into the existing job.
	id2, created, err := s.AddJob("beber água", schedule, atPayload("111@c.us", "Beber   Água"), false)
	if err != nil {
		t.Fatalf("AddJob dup: %v", err)
	}
	if created || id2 != id1 {
		t.Errorf("duplicate add: id=%q created=%v, want merge into %q", id2, created, id1)
	}

	// A different owner gets a separate job.
	id3, created, err := s.AddJob("beber água", schedule, atPayload("222@c.us", "beber água"), false)
	if err != nil || !created {
		t.Fatalf("AddJob other owner: %v", err)
	}
	if id3 == id1 {
		t.Error("different owners must not share a job")
	}
}

func TestOwnerIsolation(t *testing.T) {
	s := newTestService(t, nil)
	at := time.Now().Add(time.Hour).UnixMilli()

	id, _, err := s.AddJob("x", Schedule{Kind: KindAt, AtMS: &at}, atPayload("111@c.us", "segredo"), false)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if jobs := s.ListJobs("whatsapp", "222@c.us"); len(jobs) != 0 {
		t.Errorf("foreign owner sees %d jobs", len(jobs))
	}
	if err := s.RemoveJob("whatsapp", "222@c.us", id); !errors.Is(err, ErrNotOwner) {
		t.Errorf("foreign remove error = %v, want ErrNotOwner", err)
	}
	if err := s.RemoveJob("whatsapp", "111@c.us", id); err != nil {
		t.Errorf("owner remove: %v", err)
	}
	if err := s.RemoveJob("whatsapp", "111@c.us", id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove error = %v, want ErrNotFound", err)
	}
}

func TestOneShotLifecycle(t *testing.T) {
	fail := false
	s := newTestService(t, func(job *Job) (string, error) {
		if fail {
			return "", errors.New("delivery exploded")
		}
		return "ok", nil
	})

	at := time.Now().Add(time.Hour).UnixMilli()
	id, _, _ := s.AddJob("x", Schedule{Kind: KindAt, AtMS: &at}, atPayload("111@c.us", "ok job"), false)
	job, _ := s.GetJob(id)
	s.executeJob(&job)

	// Success removes the one-shot entirely.
	if _, ok := s.GetJob(id); ok {
		t.Error("successful one-shot should be removed")
	}

	fail = true
	id2, _, _ := s.AddJob("y", Schedule{Kind: KindAt, AtMS: &at}, atPayload("111@c.us", "erro job"), false)
	job2, _ := s.GetJob(id2)
	s.executeJob(&job2)

	// Failure keeps the job, disabled, with the error recorded.
	got, ok := s.GetJob(id2)
	if !ok {
		t.Fatal("failed one-shot should be retained")
	}
	if got.Enabled || got.State.NextRunAtMS != nil {
		t.Errorf("failed one-shot should be disabled: %+v", got.State)
	}
	if got.State.LastStatus != "error" || got.State.LastError == "" {
		t.Errorf("state = %+v", got.State)
	}
}

func TestRecurringReArms(t *testing.T) {
	s := newTestService(t, nil)
	every := MinEveryMS

	id, _, err := s.AddJob("x", Schedule{Kind: KindEvery, EveryMS: &every}, atPayload("111@c.us", "alongar"), false)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}
	job, _ := s.GetJob(id)
	before := *job.State.NextRunAtMS

	s.executeJob(&job)

	after, ok := s.GetJob(id)
	if !ok {
		t.Fatal("recurring job should survive execution")
	}
	if after.State.NextRunAtMS == nil || *after.State.NextRunAtMS < before {
		t.Errorf("next run not re-armed: %v", after.State.NextRunAtMS)
	}
	if after.State.LastStatus != "ok" {
		t.Errorf("last status = %q", after.State.LastStatus)
	}
}

func TestPreEventLeads(t *testing.T) {
	s := newTestService(t, nil)
	at := time.Now().Add(time.Hour).UnixMilli()

	id, err := s.AddWithLeads("consulta", at, atPayload("111@c.us", "consulta médica"), []int{900, 7200})
	if err != nil {
		t.Fatalf("AddWithLeads: %v", err)
	}

	jobs := s.ListJobs("whatsapp", "111@c.us")
	// The 2-hour lead does not fit inside a 1-hour horizon; only the
	// 15-minute sibling is created.
	if len(jobs) != 2 {
		t.Fatalf("jobs = %d, want parent + one lead", len(jobs))
	}

	var lead *Job
	for i := range jobs {
		if jobs[i].Payload.ParentJobID == id {
			lead = &jobs[i]
		}
	}
	if lead == nil {
		t.Fatal("no lead job linked to parent")
	}
	if !lead.DeleteAfterRun {
		t.Error("lead jobs should be delete_after_run")
	}
	if want := at - 900*1000; *lead.Schedule.AtMS != want {
		t.Errorf("lead at = %d, want %d", *lead.Schedule.AtMS, want)
	}

	// Removing the parent sweeps the lead too.
	if err := s.RemoveJob("whatsapp", "111@c.us", id); err != nil {
		t.Fatalf("RemoveJob: %v", err)
	}
	if jobs := s.ListJobs("whatsapp", "111@c.us"); len(jobs) != 0 {
		t.Errorf("children should be removed with the parent, %d left", len(jobs))
	}
}

func TestSnoozeCap(t *testing.T) {
	s := newTestService(t, nil)
	payload := atPayload("111@c.us", "tomar remédio")

	for i := 0; i < MaxSnoozes; i++ {
		if _, err := s.Snooze("REM01", payload); err != nil {
			t.Fatalf("snooze %d: %v", i+1, err)
		}
	}
	if _, err := s.Snooze("REM01", payload); !errors.Is(err, ErrSnoozeMax) {
		t.Errorf("4th snooze error = %v, want ErrSnoozeMax", err)
	}
}

func TestStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jobs.json")
	handler := func(job *Job) (string, error) { return "", nil }

	s := NewService(path, handler, nil)
	at := time.Now().Add(time.Hour).UnixMilli()
	id, _, err := s.AddJob("x", Schedule{Kind: KindAt, AtMS: &at}, atPayload("111@c.us", "persistente"), false)
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	s2 := NewService(path, handler, nil)
	if _, ok := s2.GetJob(id); !ok {
		t.Error("job lost across restart")
	}
}
