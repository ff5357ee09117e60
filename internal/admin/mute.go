package admin

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// muteDurations are the ladder levels 1-6. Level 6 is permanent.
var muteDurations = []time.Duration{
	15 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	0, // permanent
}

// muteEntry is the persisted per-number record.
type muteEntry struct {
	Count      int   `json:"count"`
	MutedUntil int64 `json:"mutedUntil"` // epoch ms; 0 when permanent
}

// MuteLedger escalates mutes per phone number. Each Mute call climbs one
// level of the ladder; level 6 never expires.
type MuteLedger struct {
	mu      sync.Mutex
	entries map[string]*muteEntry
	path    string
	logger  *slog.Logger
}

// NewMuteLedger loads the ledger from path (muted.json).
func NewMuteLedger(path string, logger *slog.Logger) *MuteLedger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &MuteLedger{
		entries: make(map[string]*muteEntry),
		path:    path,
		logger:  logger,
	}
	l.load()
	return l
}

// Mute escalates the number one level and returns the level applied (1-6)
// and the expiry; a zero expiry means permanent.
func (l *MuteLedger) Mute(digits string) (int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[digits]
	if !ok {
		e = &muteEntry{}
		l.entries[digits] = e
	}
	if e.Count < len(muteDurations) {
		e.Count++
	}

	var until time.Time
	if d := muteDurations[e.Count-1]; d > 0 {
		until = time.Now().Add(d)
		e.MutedUntil = until.UnixMilli()
	} else {
		e.MutedUntil = 0
	}
	l.persist()
	l.logger.Info("number muted", "digits", digits, "level", e.Count)
	return e.Count, until
}

// Unmute lifts the mute but keeps the ladder position, so the next offense
// escalates from where it left off.
func (l *MuteLedger) Unmute(digits string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[digits]; ok {
		e.MutedUntil = time.Now().UnixMilli() - 1
		if e.Count >= len(muteDurations) {
			e.Count = len(muteDurations) - 1
		}
		l.persist()
	}
}

// IsMuted reports whether the number is currently muted.
func (l *MuteLedger) IsMuted(digits string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[digits]
	if !ok || e.Count == 0 {
		return false
	}
	if e.Count >= len(muteDurations) && e.MutedUntil == 0 {
		return true
	}
	return e.MutedUntil == 0 || e.MutedUntil > time.Now().UnixMilli()
}

func (l *MuteLedger) load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		l.logger.Warn("mute ledger corrupt, starting empty", "path", l.path, "error", err)
		l.entries = make(map[string]*muteEntry)
	}
}

func (l *MuteLedger) persist() {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		l.logger.Error("mute ledger save failed", "error", err)
		return
	}
	if err := os.Rename(tmp, l.path); err != nil {
		l.logger.Error("mute ledger rename failed", "error", err)
	}
}
