package realtime

import "github.com/google/uuid"

type SSEEvent string

const (
	SSEEventIEPVersionCreated          SSEEvent = "IEPVersionCreated"
	SSEEventIEPSubmitted               SSEEvent = "IEPSubmitted"
	SSEEventApprovalDecided            SSEEvent = "ApprovalDecided"
	SSEEventApprovalSuperseded         SSEEvent = "ApprovalSuperseded"
	SSEEventPresentLevelVersionCreated SSEEvent = "PresentLevelVersionCreated"
	SSEEventDocumentAdded              SSEEvent = "DocumentAdded"
)

// ChannelApprovals carries review-queue changes to every subscribed
// coordinator. Everything scoped to one student goes out on that
// student's channel instead.
const ChannelApprovals = "approvals"

func StudentChannel(studentID uuid.UUID) string {
	return "student:" + studentID.String()
}

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}
