package admin

import (
	"path/filepath"
	"testing"
	"time"
)

func TestMuteLadderEscalation(t *testing.T) {
	l := NewMuteLedger(filepath.Join(t.TempDir(), "muted.json"), nil)

	wantDurations := []time.Duration{
		15 * time.Minute,
		30 * time.Minute,
		2 * time.Hour,
		24 * time.Hour,
		7 * 24 * time.Hour,
	}

	for i, want := range wantDurations {
		level, until := l.Mute("5511999990000")
		if level != i+1 {
			t.Fatalf("level = %d, want %d", level, i+1)
		}
		got := time.Until(until)
		if got < want-time.Minute || got > want+time.Minute {
			t.Errorf("level %d duration ≈ %v, want %v", level, got, want)
		}
	}

	// Level 6 is permanent.
	level, until := l.Mute("5511999990000")
	if level != 6 || !until.IsZero() {
		t.Errorf("level = %d until = %v, want 6 and zero time", level, until)
	}
	if !l.IsMuted("5511999990000") {
		t.Error("permanently muted number should stay muted")
	}

	// Further mutes stay at 6.
	if level, _ := l.Mute("5511999990000"); level != 6 {
		t.Errorf("level after cap = %d", level)
	}
}

func TestUnmuteKeepsLadderPosition(t *testing.T) {
	l := NewMuteLedger(filepath.Join(t.TempDir(), "muted.json"), nil)

	l.Mute("111")
	l.Mute("111")
	l.Unmute("111")
	if l.IsMuted("111") {
		t.Fatal("should be unmuted")
	}

	// Next offense escalates to level 3, not back to 1.
	if level, _ := l.Mute("111"); level != 3 {
		t.Errorf("level = %d, want 3", level)
	}
}

func TestLedgerPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muted.json")

	l := NewMuteLedger(path, nil)
	l.Mute("111")

	l2 := NewMuteLedger(path, nil)
	if !l2.IsMuted("111") {
		t.Error("mute lost across restart")
	}
}

func TestUnknownNumberNotMuted(t *testing.T) {
	l := NewMuteLedger(filepath.Join(t.TempDir(), "muted.json"), nil)
	if l.IsMuted("999") {
		t.Error("unknown number should not be muted")
	}
}
