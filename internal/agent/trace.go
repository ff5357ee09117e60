package agent

import (
	"strings"

	"github.com/google/uuid"
)

// traceIDLen keeps trace IDs short enough to grep in chat-volume logs while
// staying unique within a retention window.
const traceIDLen = 12

// NewTraceID returns a short random identifier that follows one inbound
// message through the whole turn.
func NewTraceID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return id[:traceIDLen]
}
