// Package whatsapp adapts the WhatsApp Web bridge to the channel
// interface. The bridge is a separate process speaking JSON frames over a
// WebSocket; this side owns reconnection, deduplication, the admin
// pipeline and reaction semantics.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zapista/zapista/internal/admin"
	"github.com/zapista/zapista/internal/bus"
	"github.com/zapista/zapista/internal/channels"
	"github.com/zapista/zapista/internal/cron"
	"github.com/zapista/zapista/internal/metrics"
	"github.com/zapista/zapista/internal/providers"
	"github.com/zapista/zapista/internal/users"
)

const (
	// ChannelName routes bus messages to this adapter.
	ChannelName = "whatsapp"

	// reconnectDelay between bridge connection attempts.
	reconnectDelay = 5 * time.Second

	// sentTimeout abandons request→message correlation when the bridge
	// never acknowledges a send.
	sentTimeout = 10 * time.Second
)

// bridgeFrame is one JSON message on the bridge socket, both directions.
// Unused fields stay empty per frame type.
type bridgeFrame struct {
	Type string `json:"type"`

	// inbound: message. ID doubles as the bridge-assigned message id on
	// "sent" acks. Sender is the chat JID (private chats only); PN carries
	// the plain phone number when the JID hides it.
	ID             string `json:"id,omitempty"`
	Sender         string `json:"sender,omitempty"`
	PN             string `json:"pn,omitempty"`
	Content        string `json:"content,omitempty"`
	Timestamp      int64  `json:"timestamp,omitempty"`
	IsGroup        bool   `json:"isGroup,omitempty"`
	MediaBase64    string `json:"mediaBase64,omitempty"`
	AudioTooLarge  bool   `json:"audioTooLarge,omitempty"`
	AudioForwarded bool   `json:"audioForwarded,omitempty"`
	Ics            string `json:"attachmentIcs,omitempty"`

	// inbound: reaction
	ChatID    string `json:"chatId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
	FromMe    bool   `json:"fromMe,omitempty"`

	// inbound: sent acknowledgement; outbound: send
	RequestID string `json:"request_id,omitempty"`
	To        string `json:"to,omitempty"`
	Text      string `json:"text,omitempty"`
	JobID     string `json:"job_id,omitempty"`

	// inbound: status, error
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// pendingSend tracks an unacknowledged bridge send.
type pendingSend struct {
	chatID  string
	jobID   string
	content string
	created time.Time
}

// Options wires the adapter's collaborators.
type Options struct {
	BridgeURL string
	Allowed   []string
	Router    bus.MessageRouter
	Dedup     bus.InboundDeduper
	GodMode   *admin.GodMode
	Mutes     *admin.MuteLedger
	Recorder  *metrics.Recorder
	STT       providers.Transcriber
	Cron      *cron.Service
	Users     *users.Store
	Logger    *slog.Logger
}

// Channel is the WhatsApp bridge adapter.
type Channel struct {
	*channels.BaseChannel

	url      string
	router   bus.MessageRouter
	dedup    bus.InboundDeduper
	god      *admin.GodMode
	mutes    *admin.MuteLedger
	recorder *metrics.Recorder
	stt      providers.Transcriber
	cron     *cron.Service
	users    *users.Store
	logger   *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	cancel context.CancelFunc
	done   chan struct{}

	sentMu   sync.Mutex
	pending  map[string]pendingSend // request_id → unacked send
	sentRefs map[string]sentRef     // chatID|messageID → delivered job

	blockedMu       sync.Mutex
	blockedNotified map[string]struct{}
}

// New creates the adapter. Start connects it.
func New(opts Options) *Channel {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		BaseChannel:     channels.NewBaseChannel(ChannelName, opts.Allowed),
		url:             opts.BridgeURL,
		router:          opts.Router,
		dedup:           opts.Dedup,
		god:             opts.GodMode,
		mutes:           opts.Mutes,
		recorder:        opts.Recorder,
		stt:             opts.STT,
		cron:            opts.Cron,
		users:           opts.Users,
		logger:          logger,
		pending:         make(map[string]pendingSend),
		sentRefs:        make(map[string]sentRef),
		blockedNotified: make(map[string]struct{}),
	}
}

// Start launches the connection loop. It returns immediately; the adapter
// keeps retrying the bridge every few seconds until the context ends.
func (c *Channel) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx)
	return nil
}

// Stop closes the bridge connection and ends the loop.
func (c *Channel) Stop() error {
	if c.cancel != nil {
		c.cancel()
		c.closeConn()
		<-c.done
	}
	return nil
}

// run dials the bridge, reads until the connection drops, and reconnects.
func (c *Channel) run(ctx context.Context) {
	defer close(c.done)
	first := true

	for {
		if ctx.Err() != nil {
			return
		}
		if !first {
			c.recorder.IncBridgeReconnect()
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
		first = false

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("bridge connect failed", "url", c.url, "error", err)
			continue
		}

		c.setConn(conn)
		c.SetRunning(true)
		c.logger.Info("bridge connected", "url", c.url)

		c.readLoop(ctx, conn)

		c.SetRunning(false)
		c.setConn(nil)
		conn.Close()
		c.logger.Warn("bridge disconnected")
	}
}

// readLoop consumes frames until the connection fails.
func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("bridge read failed", "error", err)
			}
			return
		}

		var frame bridgeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("bridge frame unreadable", "error", err)
			continue
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Channel) handleFrame(ctx context.Context, frame bridgeFrame) {
	switch frame.Type {
	case "message":
		c.handleMessage(ctx, frame)
	case "reaction":
		c.handleReaction(ctx, frame)
	case "sent":
		c.handleSent(frame)
	case "qr":
		c.logger.Info("bridge needs QR pairing, scan on the bridge console")
	case "status":
		c.logger.Info("bridge status", "status", frame.Status)
	case "error":
		c.logger.Error("bridge error", "error", frame.Error)
	default:
		c.logger.Debug("bridge frame ignored", "type", frame.Type)
	}
}

// Send delivers one outbound message through the bridge. A disconnected
// bridge skips the send; the cron retry path owns redelivery semantics.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		c.recorder.IncSendsSkipped()
		c.logger.Warn("bridge down, send skipped",
			"chat_id", msg.ChatID,
			"trace_id", msg.Metadata[bus.MetaTraceID])
		return nil
	}

	requestID := uuid.NewString()
	c.trackSend(requestID, msg.ChatID, msg.JobID(), msg.Content)

	frame := bridgeFrame{
		Type:      "send",
		To:        msg.ChatID,
		Text:      msg.Content,
		RequestID: requestID,
		JobID:     msg.JobID(),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		c.recorder.IncSendsSkipped()
		return nil
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("bridge write: %w", err)
	}
	c.recorder.IncMessagesOut()
	return nil
}

func (c *Channel) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.conn = conn
}

func (c *Channel) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

// reply publishes a message back to the chat without going through the
// agent loop. Used for adapter-level notices (voice errors, admin output).
func (c *Channel) reply(chatID, content string) {
	c.router.PublishOutbound(bus.OutboundMessage{
		Channel: ChannelName,
		ChatID:  chatID,
		Content: content,
		Metadata: map[string]string{
			bus.MetaPriority: bus.PriorityNormal,
		},
	})
}
