package domain

// Realtime event types pushed to connected clients. Delivery is best-effort
// with no acknowledgment.
const (
	EventNewEmail         = "new_email"
	EventEmailClassified  = "email_classified"
	EventDraftGenerated   = "draft_generated"
	EventAutoReplyTrigger = "auto_reply_triggered"
	EventForwardToAgent   = "forward_to_agent"
)

// RealtimeEvent is a fire-and-forget notification for one user.
type RealtimeEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}
