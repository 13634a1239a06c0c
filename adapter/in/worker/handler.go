package worker

import (
	"context"

	"github.com/goccy/go-json"

	"mailgate_server/pkg/logger"
)

// Handler routes stage jobs to their processors.
type Handler struct {
	ingestProcessor   *IngestProcessor
	filterProcessor   *FilterProcessor
	classifyProcessor *ClassifyProcessor
	draftProcessor    *DraftProcessor
}

func NewHandler(
	ingestProcessor *IngestProcessor,
	filterProcessor *FilterProcessor,
	classifyProcessor *ClassifyProcessor,
	draftProcessor *DraftProcessor,
) *Handler {
	return &Handler{
		ingestProcessor:   ingestProcessor,
		filterProcessor:   filterProcessor,
		classifyProcessor: classifyProcessor,
		draftProcessor:    draftProcessor,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobMailIngest:
		return h.ingestProcessor.Process(ctx, msg)
	case JobMailFilter:
		return h.filterProcessor.Process(ctx, msg)
	case JobAIClassify:
		return h.classifyProcessor.Process(ctx, msg)
	case JobDraftGenerate:
		return h.draftProcessor.Process(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

// ParsePayload decodes a message payload into a typed struct.
func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
