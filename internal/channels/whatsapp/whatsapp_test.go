package whatsapp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zapista/zapista/internal/admin"
	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/i18n"
	"github.com/zapista/zapista/internal/metrics"
	"github.com/zapista/zapista/internal/users"
)

const testChat = "5511999990000@c.us"

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTestChannel(t *testing.T, allowed []string, passwordHash string) (*Channel, *bus.MessageBus) {
	t.Helper()
	dir := t.TempDir()

	router := bus.New()
	store, err := users.Open(filepath.Join(dir, "users.db"))
	if err != nil {
		t.Fatalf("users.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := cron.NewService(filepath.Join(dir, "jobs.json"), func(job *cron.Job) (string, error) {
		return "", nil
	}, nil)

	ch := New(Options{
		BridgeURL: "ws://unused",
		Allowed:   allowed,
		Router:    router,
		Dedup:     bus.NewMemoryDeduper(2 * time.Minute),
		GodMode:   admin.NewGodMode(admin.GodModeConfig{PasswordHash: passwordHash}, filepath.Join(dir, "god.json"), nil),
		Mutes:     admin.NewMuteLedger(filepath.Join(dir, "muted.json"), nil),
		Recorder:  metrics.NewRecorder(filepath.Join(dir, "metrics.json"), prometheus.NewRegistry(), nil),
		Cron:      svc,
		Users:     store,
	})
	return ch, router
}

func takeInbound(t *testing.T, router *bus.MessageBus) (bus.InboundMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return router.ConsumeInbound(ctx)
}

func takeOutbound(t *testing.T, router *bus.MessageBus) (bus.OutboundMessage, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	return router.ConsumeOutbound(ctx)
}

func TestInboundPublishesWithTrace(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "m1", Sender: testChat, Content: "oi",
	})

	msg, ok := takeInbound(t, router)
	if !ok {
		t.Fatal("message should be published")
	}
	if msg.Content != "oi" || msg.TraceID() == "" {
		t.Errorf("msg = %+v", msg)
	}
}

func TestWireMessageFrameDecodes(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	raw := `{"type":"message","id":"MSG1","sender":"` + testChat + `","pn":"+5511999990000","content":"oi","timestamp":1756100000,"isGroup":false}`
	var frame bridgeFrame
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		t.Fatal(err)
	}
	ch.handleFrame(context.Background(), frame)

	msg, ok := takeInbound(t, router)
	if !ok {
		t.Fatal("wire message should be published")
	}
	if msg.SenderID != testChat || msg.ChatID != testChat || msg.Content != "oi" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.Metadata[bus.MetaMessageID] != "MSG1" {
		t.Errorf("message id = %q", msg.Metadata[bus.MetaMessageID])
	}
}

func TestWireSentAckCorrelates(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	id, err := ch.cron.AddWithLeads("pagar conta", time.Now().Add(time.Hour).UnixMilli(), cron.Payload{
		Kind: cron.PayloadAgentTurn, Message: "pagar conta", Deliver: true,
		Channel: ChannelName, To: testChat,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch.trackSend("r1", testChat, id, "🔔 Lembrete: pagar conta")

	var ack bridgeFrame
	raw := `{"type":"sent","request_id":"r1","id":"wamid.X","job_id":"` + id + `"}`
	if err := json.Unmarshal([]byte(raw), &ack); err != nil {
		t.Fatal(err)
	}
	ch.handleFrame(context.Background(), ack)

	ch.handleReaction(context.Background(), bridgeFrame{
		Type: "reaction", ChatID: testChat, MessageID: "wamid.X", Emoji: "👍",
	})
	out, ok := takeOutbound(t, router)
	if !ok || !strings.Contains(out.Content, "pagar conta") {
		t.Fatalf("reply = %q ok=%v", out.Content, ok)
	}
}

func TestAllowListUsesPN(t *testing.T) {
	ch, router := newTestChannel(t, []string{"5511999990000"}, "")

	// Masked JID, real number only in pn.
	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "p1", Sender: "132430989@lid", PN: "+5511999990000", Content: "oi",
	})
	if _, ok := takeInbound(t, router); !ok {
		t.Error("pn number on the allow list should pass")
	}
}

func TestVoiceTooLargeRejected(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "v1", Sender: testChat, Content: voiceMarker, AudioTooLarge: true,
	})
	out, ok := takeOutbound(t, router)
	if !ok || out.Content != i18n.T(i18n.PtBR, "voice_error") {
		t.Fatalf("reply = %q ok=%v", out.Content, ok)
	}
	if _, ok := takeInbound(t, router); ok {
		t.Error("oversized audio never reaches the agent")
	}
}

func TestInboundDedup(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	frame := bridgeFrame{Type: "message", ID: "dup1", Sender: testChat, Content: "oi"}
	ch.handleMessage(context.Background(), frame)
	ch.handleMessage(context.Background(), frame)

	takeInbound(t, router)
	if _, ok := takeInbound(t, router); ok {
		t.Error("replayed message id must be dropped")
	}
}

func TestGroupMessagesIgnored(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "g1", Sender: "123@g.us", Content: "oi grupo", IsGroup: true,
	})
	if _, ok := takeInbound(t, router); ok {
		t.Error("group messages never reach the agent")
	}
	if _, ok := takeOutbound(t, router); ok {
		t.Error("group messages get no reply")
	}
}

func TestBlockedSenderNotifiedOnce(t *testing.T) {
	ch, router := newTestChannel(t, []string{"5521888880000"}, "")

	frame := bridgeFrame{Type: "message", ID: "b1", Sender: testChat, Content: "oi"}
	ch.handleMessage(context.Background(), frame)

	out, ok := takeOutbound(t, router)
	if !ok {
		t.Fatal("first contact gets the access notice")
	}
	if out.Content != i18n.T(i18n.PtBR, "blocked_info") {
		t.Errorf("notice = %q", out.Content)
	}

	frame.ID = "b2"
	ch.handleMessage(context.Background(), frame)
	if _, ok := takeOutbound(t, router); ok {
		t.Error("repeat contact is silent")
	}
	if _, ok := takeInbound(t, router); ok {
		t.Error("blocked sender never reaches the agent")
	}
}

func TestMutedSenderSilent(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")
	ch.mutes.Mute("5511999990000")

	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "m1", Sender: testChat, Content: "oi",
	})
	if _, ok := takeInbound(t, router); ok {
		t.Error("muted sender must be dropped")
	}
	if _, ok := takeOutbound(t, router); ok {
		t.Error("muted sender gets no reply")
	}
}

func TestAdminPipeline(t *testing.T) {
	ch, router := newTestChannel(t, nil, sha("hunter2"))

	// Wrong password: silence, nothing forwarded.
	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "a1", Sender: testChat, Content: "#errada",
	})
	if _, ok := takeOutbound(t, router); ok {
		t.Fatal("wrong password must be silent")
	}

	// Correct password activates and shows the menu.
	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "a2", Sender: testChat, Content: "#hunter2",
	})
	out, ok := takeOutbound(t, router)
	if !ok || out.Content != i18n.T(i18n.PtBR, "godmode_menu") {
		t.Fatalf("activation reply = %q ok=%v", out.Content, ok)
	}

	// Admin commands run while activated.
	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "a3", Sender: testChat, Content: "#mute 5521888880000",
	})
	out, ok = takeOutbound(t, router)
	if !ok || !strings.Contains(out.Content, "5521888880000") {
		t.Fatalf("mute reply = %q", out.Content)
	}
	if !ch.mutes.IsMuted("5521888880000") {
		t.Error("mute command should take effect")
	}

	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "a4", Sender: testChat, Content: "#quit",
	})
	out, _ = takeOutbound(t, router)
	if !strings.Contains(out.Content, "desativado") {
		t.Errorf("quit reply = %q", out.Content)
	}
}

func TestReactionCompleteFlow(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	id, err := ch.cron.AddWithLeads("tomar remédio", time.Now().Add(time.Hour).UnixMilli(), cron.Payload{
		Kind: cron.PayloadAgentTurn, Message: "tomar remédio", Deliver: true,
		Channel: ChannelName, To: testChat,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ch.trackSend("req1", testChat, id, "🔔 Lembrete: tomar remédio")
	ch.handleSent(bridgeFrame{Type: "sent", RequestID: "req1", ID: "wamid.1"})

	ch.handleReaction(context.Background(), bridgeFrame{
		Type: "reaction", ChatID: testChat, MessageID: "wamid.1", Emoji: "👍",
	})

	out, ok := takeOutbound(t, router)
	if !ok {
		t.Fatal("positive reaction asks for confirmation")
	}
	if !strings.Contains(out.Content, "tomar remédio") {
		t.Errorf("confirmation = %q", out.Content)
	}
	if _, ok, _ := ch.users.GetPending(ChannelName, testChat); !ok {
		t.Error("pending completion should be stored")
	}

	// Consume-once: a second reaction on the same message does nothing.
	ch.handleReaction(context.Background(), bridgeFrame{
		Type: "reaction", ChatID: testChat, MessageID: "wamid.1", Emoji: "👍",
	})
	if _, ok := takeOutbound(t, router); ok {
		t.Error("reaction mapping must be consume-once")
	}
}

func TestReactionFromMeIgnored(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	id, err := ch.cron.AddWithLeads("beber água", time.Now().Add(time.Hour).UnixMilli(), cron.Payload{
		Kind: cron.PayloadAgentTurn, Message: "beber água", Deliver: true,
		Channel: ChannelName, To: testChat,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ch.trackSend("req1", testChat, id, "🔔 Lembrete: beber água")
	ch.handleSent(bridgeFrame{Type: "sent", RequestID: "req1", ID: "wamid.5"})

	// The bot's own relayed reaction must not consume the mapping.
	ch.handleReaction(context.Background(), bridgeFrame{
		Type: "reaction", ChatID: testChat, MessageID: "wamid.5", Emoji: "👍", FromMe: true,
	})
	if _, ok := takeOutbound(t, router); ok {
		t.Fatal("own reactions are ignored")
	}

	ch.handleReaction(context.Background(), bridgeFrame{
		Type: "reaction", ChatID: testChat, MessageID: "wamid.5", Emoji: "👍",
	})
	if _, ok := takeOutbound(t, router); !ok {
		t.Error("user reaction should still resolve after the bot's own")
	}
}

func TestReactionSnoozeCap(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	id, err := ch.cron.AddWithLeads("alongar", time.Now().Add(time.Hour).UnixMilli(), cron.Payload{
		Kind: cron.PayloadAgentTurn, Message: "alongar", Deliver: true,
		Channel: ChannelName, To: testChat,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		reqID := "req" + string(rune('a'+i))
		msgID := "wamid." + string(rune('a'+i))
		ch.trackSend(reqID, testChat, id, "🔔 Lembrete: alongar")
		ch.handleSent(bridgeFrame{Type: "sent", RequestID: reqID, ID: msgID})
		ch.handleReaction(context.Background(), bridgeFrame{
			Type: "reaction", ChatID: testChat, MessageID: msgID, Emoji: "⏰",
		})
	}

	var replies []string
	for {
		out, ok := takeOutbound(t, router)
		if !ok {
			break
		}
		replies = append(replies, out.Content)
	}
	if len(replies) != 4 {
		t.Fatalf("replies = %d, want 4", len(replies))
	}
	snoozed := i18n.T(i18n.PtBR, "snoozed")
	for i := 0; i < 3; i++ {
		if replies[i] != snoozed {
			t.Errorf("reply %d = %q", i, replies[i])
		}
	}
	if replies[3] != i18n.T(i18n.PtBR, "snooze_max") {
		t.Errorf("fourth snooze = %q, want cap message", replies[3])
	}
}

func TestReactionNegativeRemoves(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	id, err := ch.cron.AddWithLeads("pagar boleto", time.Now().Add(time.Hour).UnixMilli(), cron.Payload{
		Kind: cron.PayloadAgentTurn, Message: "pagar boleto", Deliver: true,
		Channel: ChannelName, To: testChat,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ch.trackSend("req1", testChat, id, "🔔 Lembrete: pagar boleto")
	ch.handleSent(bridgeFrame{Type: "sent", RequestID: "req1", ID: "wamid.9"})
	ch.handleReaction(context.Background(), bridgeFrame{
		Type: "reaction", ChatID: testChat, MessageID: "wamid.9", Emoji: "👎",
	})

	out, ok := takeOutbound(t, router)
	if !ok || out.Content != i18n.T(i18n.PtBR, "reaction_removed_ask_new") {
		t.Fatalf("reply = %q ok=%v", out.Content, ok)
	}
	if ch.cron.JobCount() != 0 {
		t.Errorf("jobs = %d, want 0", ch.cron.JobCount())
	}
}

func TestICSImport(t *testing.T) {
	ch, router := newTestChannel(t, nil, "")

	start := time.Now().Add(48 * time.Hour).UTC().Format("20060102T150405Z")
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nSUMMARY:Consulta\r\n dentista\r\nDTSTART:" + start + "\r\nEND:VEVENT\r\nBEGIN:VEVENT\r\nSUMMARY:Já passou\r\nDTSTART:20200101T100000Z\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	ch.handleMessage(context.Background(), bridgeFrame{
		Type: "message", ID: "i1", Sender: testChat, Content: "", Ics: ics,
	})

	out, ok := takeOutbound(t, router)
	if !ok {
		t.Fatal("import should confirm")
	}
	if out.Content != i18n.T(i18n.PtBR, "ics_imported", 1) {
		t.Errorf("reply = %q", out.Content)
	}
	// Parent plus the 15-minute heads-up.
	if ch.cron.JobCount() != 2 {
		t.Errorf("jobs = %d, want 2", ch.cron.JobCount())
	}
	events, err := ch.users.ListEvents(ChannelName, testChat, time.Now())
	if err != nil || len(events) != 1 {
		t.Fatalf("events = %d err=%v", len(events), err)
	}
	if events[0].Title != "Consulta dentista" {
		t.Errorf("title = %q (folded line should join)", events[0].Title)
	}
}

func TestParseICSTimeForms(t *testing.T) {
	cases := []struct {
		line string
		ok   bool
	}{
		{"DTSTART:20260825T120000Z", true},
		{"DTSTART;TZID=America/Sao_Paulo:20260825T090000", true},
		{"DTSTART;VALUE=DATE:20260825", true},
		{"DTSTART:not-a-date", false},
	}
	for _, tc := range cases {
		if _, ok := parseICSTime(tc.line); ok != tc.ok {
			t.Errorf("parseICSTime(%q) ok = %v, want %v", tc.line, ok, tc.ok)
		}
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frames := make(chan bridgeFrame, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Push one inbound message, then echo acks for sends.
		conn.WriteJSON(bridgeFrame{
			Type: "message", ID: "m1", Sender: testChat, Content: "/jobs",
		})
		for {
			var f bridgeFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
			conn.WriteJSON(bridgeFrame{Type: "sent", RequestID: f.RequestID, ID: "wamid.rt"})
		}
	}))
	defer srv.Close()

	ch, router := newTestChannel(t, nil, "")
	ch.url = "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ch.Stop()

	msg, ok := router.ConsumeInbound(ctx)
	if !ok || msg.Content != "/jobs" {
		t.Fatalf("inbound = %+v ok=%v", msg, ok)
	}

	if err := ch.Send(ctx, bus.OutboundMessage{
		Channel: ChannelName, ChatID: testChat, Content: "resposta",
		Metadata: map[string]string{bus.MetaJobID: "LM01"},
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case f := <-frames:
		if f.Type != "send" || f.To != testChat || f.Text != "resposta" || f.JobID != "LM01" {
			t.Errorf("frame = %+v", f)
		}
		if f.RequestID == "" {
			t.Error("send frame needs a request id for ack correlation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge never received the send")
	}
}
