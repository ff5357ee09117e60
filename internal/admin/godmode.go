// Package admin implements the god-mode state machine and the mute ladder.
// Both persist across restarts.
package admin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// GodModeConfig sets the password hash and lockout policy.
type GodModeConfig struct {
	PasswordHash string // SHA-256 hex; empty disables god mode entirely
	MaxAttempts  int
	Lockout      time.Duration
}

// chatState is the persisted per-chat record.
type chatState struct {
	Activated    bool    `json:"activated,omitempty"`
	Attempts     []int64 `json:"attempts,omitempty"` // epoch ms of failed attempts
	LockedUntil  int64   `json:"lockedUntil,omitempty"`
}

// Outcome classifies what a '#' input did.
type Outcome int

const (
	// Silent means no reply at all (wrong password, locked out, disabled).
	Silent Outcome = iota
	// Activated means the password matched and the menu should be shown.
	Activated
	// Command means the chat is in god mode and args carry a command.
	Command
	// Deactivated means #quit ended the session.
	Deactivated
)

// GodMode is the password-gated admin state machine. All state is guarded by
// one mutex and persisted on every change.
type GodMode struct {
	mu     sync.Mutex
	cfg    GodModeConfig
	chats  map[string]*chatState
	path   string
	logger *slog.Logger
}

// NewGodMode loads persisted state from path (security/god_mode_lockout.json).
func NewGodMode(cfg GodModeConfig, path string, logger *slog.Logger) *GodMode {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 15 * time.Minute
	}

	g := &GodMode{
		cfg:    cfg,
		chats:  make(map[string]*chatState),
		path:   path,
		logger: logger,
	}
	g.load()
	return g
}

// Handle processes a '#'-prefixed input for a chat. The input arrives with
// the '#' stripped. The returned command is non-empty only for Outcome
// Command.
func (g *GodMode) Handle(chatID, input string) (Outcome, string) {
	if g.cfg.PasswordHash == "" {
		return Silent, ""
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	st := g.chat(chatID)

	if st.LockedUntil > now.UnixMilli() {
		return Silent, ""
	}

	if st.Activated {
		if input == "quit" {
			st.Activated = false
			g.persist()
			g.logger.Info("god mode deactivated", "chat", chatID)
			return Deactivated, ""
		}
		return Command, input
	}

	sum := sha256.Sum256([]byte(input))
	if hex.EncodeToString(sum[:]) == g.cfg.PasswordHash {
		st.Activated = true
		st.Attempts = nil
		st.LockedUntil = 0
		g.persist()
		g.logger.Info("god mode activated", "chat", chatID)
		return Activated, ""
	}

	// Wrong password: count it within the sliding window, stay silent.
	windowStart := now.Add(-g.cfg.Lockout).UnixMilli()
	kept := st.Attempts[:0]
	for _, ts := range st.Attempts {
		if ts >= windowStart {
			kept = append(kept, ts)
		}
	}
	st.Attempts = append(kept, now.UnixMilli())

	if len(st.Attempts) >= g.cfg.MaxAttempts {
		st.LockedUntil = now.Add(g.cfg.Lockout).UnixMilli()
		st.Attempts = nil
		g.logger.Warn("god mode lockout", "chat", chatID)
	}
	g.persist()
	return Silent, ""
}

// IsActivated reports whether the chat currently has god mode.
func (g *GodMode) IsActivated(chatID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.chats[chatID]
	return ok && st.Activated
}

func (g *GodMode) chat(chatID string) *chatState {
	st, ok := g.chats[chatID]
	if !ok {
		st = &chatState{}
		g.chats[chatID] = st
	}
	return st
}

func (g *GodMode) load() {
	data, err := os.ReadFile(g.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &g.chats); err != nil {
		g.logger.Warn("god mode state corrupt, starting empty", "path", g.path, "error", err)
		g.chats = make(map[string]*chatState)
	}
}

func (g *GodMode) persist() {
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		g.logger.Error("god mode state dir", "error", err)
		return
	}
	data, err := json.MarshalIndent(g.chats, "", "  ")
	if err != nil {
		return
	}
	tmp := g.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		g.logger.Error("god mode state save failed", "error", err)
		return
	}
	if err := os.Rename(tmp, g.path); err != nil {
		g.logger.Error("god mode state rename failed", "error", err)
	}
}
