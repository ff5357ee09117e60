// Package cron provides the durable reminder scheduler. Jobs are persisted
// to JSON and executed via callback to the agent runtime.
//
// Three schedule kinds are supported:
//   - "at":    one-time execution at a specific timestamp
//   - "every": recurring interval (in milliseconds)
//   - "cron":  standard 5-field expression (parsed by gronx) interpreted in
//     the owner's IANA timezone
package cron

import "time"

// Schedule kinds.
const (
	KindAt    = "at"
	KindEvery = "every"
	KindCron  = "cron"
)

// Payload kinds.
const (
	PayloadAgentTurn   = "agent_turn"
	PayloadSystemEvent = "system_event"
)

// Interval bounds for "every" schedules.
const (
	MinEveryMS = int64(30 * time.Minute / time.Millisecond)
	MaxEveryMS = int64(30 * 24 * time.Hour / time.Millisecond)
)

// Snooze behavior: 5-minute delay, at most 3 per parent job.
const (
	SnoozeDelay = 5 * time.Minute
	MaxSnoozes  = 3
)

// Schedule defines when a job should run.
type Schedule struct {
	Kind        string `json:"kind"`
	AtMS        *int64 `json:"atMs,omitempty"`        // absolute timestamp (for "at")
	EveryMS     *int64 `json:"everyMs,omitempty"`     // interval in milliseconds (for "every")
	Expr        string `json:"expr,omitempty"`        // cron expression (for "cron")
	TZ          string `json:"tz,omitempty"`          // owner's IANA timezone
	NotBeforeMS *int64 `json:"notBeforeMs,omitempty"` // "starting from" floor
}

// Payload describes what a job does when triggered.
type Payload struct {
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	Deliver      bool   `json:"deliver"`                // true = direct chat delivery
	Channel      string `json:"channel,omitempty"`      // target channel
	To           string `json:"to,omitempty"`           // target chat ID
	ParentJobID  string `json:"parentJobId,omitempty"`  // pre-event/snooze derivatives link back here
	LeadSeconds  int    `json:"leadSeconds,omitempty"`  // pre-event jobs: how far ahead of the parent
}

// JobState tracks runtime state for a job.
type JobState struct {
	NextRunAtMS *int64 `json:"nextRunAtMs,omitempty"`
	LastRunAtMS *int64 `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"` // "ok" or "error"
	LastError   string `json:"lastError,omitempty"`
	SnoozeCount int    `json:"snoozeCount,omitempty"`
}

// Job represents a scheduled job. A job belongs to exactly one
// (channel, chat_id) owner; listing and removal filter by owner.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMS    int64    `json:"createdAtMs"`
	UpdatedAtMS    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
}

// Owner returns the (channel, chat_id) identity of the job.
func (j *Job) Owner() (channel, chatID string) {
	return j.Payload.Channel, j.Payload.To
}

// OwnedBy reports whether the job belongs to the given chat.
func (j *Job) OwnedBy(channel, chatID string) bool {
	return j.Payload.Channel == channel && j.Payload.To == chatID
}

// Store is the serialized form of the job store.
type Store struct {
	Version int   `json:"version"`
	Jobs    []Job `json:"jobs"`
}

// JobHandler is invoked when a job fires. It returns the delivery text (may
// be empty) and any error; errors mark the job's last_status.
type JobHandler func(job *Job) (string, error)

func nowMS() int64 {
	return time.Now().UnixMilli()
}
