package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/brightpath/iep-backend/internal/platform/logger"
)

// SSEClient is one open event stream. Actor is the opaque caller label the
// gateway forwarded; it only exists for log lines.
type SSEClient struct {
	ID       uuid.UUID
	Actor    string
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
	Logger   *logger.Logger

	closeOnce sync.Once
}
