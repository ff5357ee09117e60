package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/users"
)

func TestInQuietWindow(t *testing.T) {
	// 02:30 UTC on a fixed date.
	now := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)

	cases := []struct {
		name       string
		start, end string
		tz         string
		want       bool
	}{
		{"no window", "", "", "", false},
		{"inside wrapped window", "22:00", "07:00", "UTC", true},
		{"outside plain window", "12:00", "14:00", "UTC", false},
		{"inside plain window", "02:00", "04:00", "UTC", true},
		{"tz shifts out of window", "22:00", "23:00", "America/Sao_Paulo", false}, // 23:30 local
		{"degenerate window", "08:00", "08:00", "UTC", false},
		{"unparseable", "sleep", "late", "UTC", false},
	}
	for _, tc := range cases {
		u := users.User{QuietStart: tc.start, QuietEnd: tc.end, Timezone: tc.tz}
		got, resume := inQuietWindow(u, now)
		if got != tc.want {
			t.Errorf("%s: quiet = %v, want %v", tc.name, got, tc.want)
		}
		if got && resume <= now.UnixMilli() {
			t.Errorf("%s: resume %d not after now", tc.name, resume)
		}
	}
}

func TestDrainOutbound(t *testing.T) {
	b := bus.New()
	b.PublishOutbound(bus.OutboundMessage{Channel: "whatsapp", ChatID: "x@c.us", Content: "até já"})

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		b.ConsumeOutbound(ctx)
		close(done)
	}()

	drainOutbound(b, 3*time.Second)

	select {
	case <-done:
	default:
		t.Error("drain returned with the queue still loaded")
	}
	if b.PendingOutbound() != 0 {
		t.Errorf("pending = %d, want 0", b.PendingOutbound())
	}
}

func TestDescribeLead(t *testing.T) {
	if got := describeLead(900); got != "15 min" {
		t.Errorf("900s = %q", got)
	}
	if got := describeLead(7200); got != "2h" {
		t.Errorf("7200s = %q", got)
	}
	if got := describeLead(5400); got != "90 min" {
		t.Errorf("5400s = %q", got)
	}
}
