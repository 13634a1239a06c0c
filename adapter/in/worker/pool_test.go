package worker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type recordingAcker struct {
	acked []string
}

func (a *recordingAcker) Ack(ctx context.Context, stream, id string) error {
	a.acked = append(a.acked, stream+"/"+id)
	return nil
}

func queuedMessage(jobType string, payload map[string]any) *Message {
	msg := NewMessage(jobType, payload)
	msg.Stream = "mail:filter"
	msg.EntryID = "1-0"
	return msg
}

// A job type the handler does not know is logged and treated as settled.
func TestPoolAcksEntryAfterSuccess(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil)
	acker := &recordingAcker{}

	p := NewPool(handler, DefaultPoolConfig(), zerolog.Nop())
	p.SetAcker(acker)

	msg := queuedMessage("noop", nil)
	if err := p.processJob(context.Background(), msg); err != nil {
		t.Fatalf("processJob() = %v, want nil", err)
	}

	if len(acker.acked) != 1 {
		t.Fatalf("acked %d entries, want 1", len(acker.acked))
	}
	if acker.acked[0] != "mail:filter/1-0" {
		t.Errorf("acked %q, want mail:filter/1-0", acker.acked[0])
	}
}

func TestPoolKeepsEntryPendingWhileRetrying(t *testing.T) {
	// email_id as a number fails payload decoding, so the job errors
	// before touching any dependency.
	filterProc := NewFilterProcessor(nil, nil, nil, nil, nil, nil, nil, nil)
	handler := NewHandler(nil, filterProc, nil, nil)
	acker := &recordingAcker{}

	p := NewPool(handler, DefaultPoolConfig(), zerolog.Nop())
	p.SetAcker(acker)

	msg := queuedMessage(JobMailFilter, map[string]any{"email_id": 42})
	if err := p.processJob(context.Background(), msg); err == nil {
		t.Fatal("processJob() = nil, want error")
	}

	if len(acker.acked) != 0 {
		t.Fatalf("acked %d entries, want 0 while retries remain", len(acker.acked))
	}
	if msg.Retries != 1 {
		t.Errorf("retries = %d, want 1", msg.Retries)
	}
}

func TestPoolAcksEntryOnTerminalFailure(t *testing.T) {
	filterProc := NewFilterProcessor(nil, nil, nil, nil, nil, nil, nil, nil)
	handler := NewHandler(nil, filterProc, nil, nil)
	acker := &recordingAcker{}

	cfg := DefaultPoolConfig()
	cfg.MaxRetries = 0
	p := NewPool(handler, cfg, zerolog.Nop())
	p.SetAcker(acker)

	msg := queuedMessage(JobMailFilter, map[string]any{"email_id": 42})
	if err := p.processJob(context.Background(), msg); err == nil {
		t.Fatal("processJob() = nil, want error")
	}

	if len(acker.acked) != 1 {
		t.Fatalf("acked %d entries, want 1 after DLQ handoff", len(acker.acked))
	}
	if got := p.GetMetrics().JobsFailed; got != 1 {
		t.Errorf("JobsFailed = %d, want 1", got)
	}
}

func TestPoolAckWithoutQueueEntryIsNoop(t *testing.T) {
	handler := NewHandler(nil, nil, nil, nil)
	acker := &recordingAcker{}

	p := NewPool(handler, DefaultPoolConfig(), zerolog.Nop())
	p.SetAcker(acker)

	// Retried jobs are resubmitted in-process and carry their entry id;
	// jobs built without one must never reach the acker.
	msg := NewMessage("noop", nil)
	if err := p.processJob(context.Background(), msg); err != nil {
		t.Fatalf("processJob() = %v, want nil", err)
	}

	if len(acker.acked) != 0 {
		t.Errorf("acked %d entries, want 0 for a job with no queue entry", len(acker.acked))
	}
}
