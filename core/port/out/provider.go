package out

import "context"

// ProviderHeader is one raw message header.
type ProviderHeader struct {
	Name  string
	Value string
}

// ProviderBody carries base64url-encoded part content.
type ProviderBody struct {
	Data string
}

// ProviderPart is a (possibly nested multipart) body part.
type ProviderPart struct {
	MimeType string
	Headers  []ProviderHeader
	Body     *ProviderBody
	Parts    []*ProviderPart
}

// ProviderMessage is an opaque provider message as fetched, before
// normalization.
type ProviderMessage struct {
	ID           string
	ThreadID     string
	Snippet      string
	InternalDate string // millisecond epoch as string
	Payload      *ProviderPart
}

// MailProvider is the mailbox provider client. Token refresh, paging and
// wire formats are the adapter's concern; the pipeline sees ids and raw
// payloads only.
type MailProvider interface {
	// ListNewMessageIDs returns message ids added since the checkpoint,
	// plus the new checkpoint to persist.
	ListNewMessageIDs(ctx context.Context, refreshToken, historyID string) (ids []string, nextHistoryID string, err error)
	// ListRecentMessageIDs backs the initial sync of a fresh account.
	ListRecentMessageIDs(ctx context.Context, refreshToken string, max int64) (ids []string, historyID string, err error)
	FetchMessage(ctx context.Context, refreshToken, messageID string) (*ProviderMessage, error)
	SendRawMessage(ctx context.Context, refreshToken, threadID string, raw []byte) error
}

// CompletionClient is the external completion service.
type CompletionClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RealtimePort pushes fire-and-forget notifications to connected clients.
type RealtimePort interface {
	Notify(ctx context.Context, userID string, eventType string, data map[string]any)
}
