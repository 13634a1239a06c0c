package worker

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"

	"mailgate_server/pkg/ratelimit"
)

// StageConfig tunes one pipeline stage.
type StageConfig struct {
	Workers    int
	PerMinute  int // 0 means unlimited
	JobTimeout time.Duration
}

// PoolConfig holds per-stage worker pool configuration.
type PoolConfig struct {
	Stages         map[JobType]StageConfig
	BatchSize      int
	WorkerChanSize int
	MaxRetries     int
}

// DefaultPoolConfig returns the stage defaults. Classification and draft
// generation are throttled to stay inside the completion API's rate limit.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		BatchSize:      10,
		WorkerChanSize: 100,
		MaxRetries:     3,
		Stages: map[JobType]StageConfig{
			JobMailIngest:    {Workers: 5, JobTimeout: 3 * time.Minute},
			JobMailFilter:    {Workers: 5, JobTimeout: 30 * time.Second},
			JobAIClassify:    {Workers: 10, PerMinute: 30, JobTimeout: 60 * time.Second},
			JobDraftGenerate: {Workers: 5, PerMinute: 10, JobTimeout: 45 * time.Second},
		},
	}
}

// PoolMetrics holds pool counters.
type PoolMetrics struct {
	JobsProcessed  int64
	JobsFailed     int64
	JobsRetried    int64
	AvgProcessTime int64 // milliseconds
	QueueSize      int32
}

// Acker acknowledges a queue entry once its job is settled. Entries stay
// pending until then, so a crash before a job completes leads to
// redelivery instead of loss.
type Acker interface {
	Ack(ctx context.Context, stream, id string) error
}

// Pool runs one go-pkgz worker group per stage, each with its own
// concurrency, rate limit, and timeout. Failed jobs retry with backoff and
// land in the DLQ after MaxRetries.
type Pool struct {
	handler *Handler
	config  *PoolConfig
	acker   Acker

	groups   map[JobType]*pool.WorkerGroup[*Message]
	limiters map[JobType]*ratelimit.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	metrics *PoolMetrics
	log     zerolog.Logger

	dlq   chan *Message
	dlqWg sync.WaitGroup

	started bool
	mu      sync.Mutex
}

// stageWorker implements pool.Worker for Message processing.
type stageWorker struct {
	pool *Pool
}

func (w *stageWorker) Do(ctx context.Context, msg *Message) error {
	return w.pool.processJob(ctx, msg)
}

// NewPool creates the stage pools.
func NewPool(handler *Handler, config *PoolConfig, log zerolog.Logger) *Pool {
	if config == nil {
		config = DefaultPoolConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		handler:  handler,
		config:   config,
		groups:   make(map[JobType]*pool.WorkerGroup[*Message]),
		limiters: make(map[JobType]*ratelimit.Limiter),
		ctx:      ctx,
		cancel:   cancel,
		metrics:  &PoolMetrics{},
		log:      log.With().Str("component", "worker_pool").Logger(),
		dlq:      make(chan *Message, 100),
	}
}

// SetAcker wires queue acknowledgment. Must be called before Start.
func (p *Pool) SetAcker(a Acker) {
	p.acker = a
}

// Start launches every stage's worker group.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	for jobType, cfg := range p.config.Stages {
		group := pool.New[*Message](cfg.Workers, &stageWorker{pool: p}).
			WithBatchSize(p.config.BatchSize).
			WithWorkerChanSize(p.config.WorkerChanSize).
			WithContinueOnError()

		if err := group.Go(p.ctx); err != nil {
			p.log.Error().Err(err).Str("stage", jobType).Msg("failed to start stage pool")
			continue
		}
		p.groups[jobType] = group

		if cfg.PerMinute > 0 {
			p.limiters[jobType] = ratelimit.New(cfg.PerMinute, time.Minute)
		}

		p.log.Info().
			Str("stage", jobType).
			Int("workers", cfg.Workers).
			Int("per_minute", cfg.PerMinute).
			Msg("stage pool started")
	}

	p.started = true

	p.dlqWg.Add(1)
	go p.dlqProcessor()
	go p.metricsReporter()
}

// Stop drains and closes every stage pool.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool...")

	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()

	for jobType, group := range p.groups {
		if err := group.Close(closeCtx); err != nil {
			p.log.Warn().Err(err).Str("stage", jobType).Msg("error closing stage pool")
		}
	}

	p.cancel()
	close(p.dlq)
	p.dlqWg.Wait()

	p.log.Info().
		Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
		Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
		Msg("worker pool stopped")
}

// Submit hands a job to its stage pool.
func (p *Pool) Submit(msg *Message) bool {
	p.mu.Lock()
	started := p.started
	group := p.groups[msg.Type]
	p.mu.Unlock()

	if !started || group == nil {
		return false
	}

	group.Submit(msg)
	atomic.AddInt32(&p.metrics.QueueSize, 1)
	return true
}

// processJob runs one job with its stage's rate limit and timeout.
func (p *Pool) processJob(ctx context.Context, msg *Message) error {
	start := time.Now()
	defer func() {
		atomic.AddInt32(&p.metrics.QueueSize, -1)
	}()

	if limiter := p.limiters[msg.Type]; limiter != nil {
		if !limiter.Wait(2 * time.Minute) {
			p.log.Warn().Str("job_id", msg.ID).Str("stage", msg.Type).Msg("rate limit wait expired, retrying job")
			return p.retryOrDrop(msg, context.DeadlineExceeded)
		}
	}

	timeout := p.config.Stages[msg.Type].JobTimeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.handler.Process(jobCtx, msg)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-jobCtx.Done():
		err = jobCtx.Err()
		if err == context.DeadlineExceeded {
			p.log.Warn().
				Str("job_id", msg.ID).
				Str("stage", msg.Type).
				Dur("timeout", timeout).
				Msg("job timed out")
		}
	}

	p.updateAvgProcessTime(time.Since(start).Milliseconds())

	if err != nil {
		p.log.Error().
			Err(err).
			Str("job_id", msg.ID).
			Str("stage", msg.Type).
			Int("retries", msg.Retries).
			Msg("job processing failed")
		return p.retryOrDrop(msg, err)
	}

	atomic.AddInt64(&p.metrics.JobsProcessed, 1)
	p.ack(msg)
	return nil
}

// ack acknowledges the job's stream entry. Called only once a job is
// settled: processed successfully or terminally failed into the DLQ.
func (p *Pool) ack(msg *Message) {
	if p.acker == nil || msg.EntryID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.acker.Ack(ctx, msg.Stream, msg.EntryID); err != nil {
		p.log.Warn().
			Err(err).
			Str("stream", msg.Stream).
			Str("entry_id", msg.EntryID).
			Msg("failed to ack stream entry")
	}
}

// retryOrDrop resubmits with exponential backoff plus jitter, moving the
// job to the DLQ once retries are exhausted.
func (p *Pool) retryOrDrop(msg *Message, err error) error {
	if msg.Retries < p.config.MaxRetries {
		msg.Retries++
		atomic.AddInt64(&p.metrics.JobsRetried, 1)

		base := time.Duration(1<<msg.Retries) * time.Second
		jitter := time.Duration(rand.Intn(500)) * time.Millisecond

		time.AfterFunc(base+jitter, func() {
			p.Submit(msg)
		})
		return err
	}

	atomic.AddInt64(&p.metrics.JobsFailed, 1)
	select {
	case p.dlq <- msg:
		p.log.Warn().
			Str("job_id", msg.ID).
			Str("stage", msg.Type).
			Msg("job moved to DLQ after max retries")
	default:
		p.log.Error().Str("job_id", msg.ID).Msg("DLQ full, job lost")
	}

	// The job is terminal; ack so the group does not redeliver a job that
	// already exhausted its retries.
	p.ack(msg)
	return err
}

func (p *Pool) updateAvgProcessTime(elapsed int64) {
	current := atomic.LoadInt64(&p.metrics.AvgProcessTime)
	if current == 0 {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, elapsed)
	} else {
		atomic.StoreInt64(&p.metrics.AvgProcessTime, (current*9+elapsed)/10)
	}
}

func (p *Pool) dlqProcessor() {
	defer p.dlqWg.Done()

	for {
		select {
		case <-p.ctx.Done():
			for msg := range p.dlq {
				p.log.Error().
					Str("job_id", msg.ID).
					Str("stage", msg.Type).
					Msg("DLQ: job lost during shutdown")
			}
			return
		case msg, ok := <-p.dlq:
			if !ok {
				return
			}
			p.log.Error().
				Str("job_id", msg.ID).
				Str("stage", msg.Type).
				Int("retries", msg.Retries).
				Interface("payload", msg.Payload).
				Msg("DLQ: job permanently failed")
		}
	}
}

func (p *Pool) metricsReporter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.log.Info().
				Int64("processed", atomic.LoadInt64(&p.metrics.JobsProcessed)).
				Int64("failed", atomic.LoadInt64(&p.metrics.JobsFailed)).
				Int64("retried", atomic.LoadInt64(&p.metrics.JobsRetried)).
				Int64("avg_process_ms", atomic.LoadInt64(&p.metrics.AvgProcessTime)).
				Int32("queue_size", atomic.LoadInt32(&p.metrics.QueueSize)).
				Msg("worker pool metrics")
		}
	}
}

// GetMetrics returns a snapshot of the pool counters.
func (p *Pool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		JobsProcessed:  atomic.LoadInt64(&p.metrics.JobsProcessed),
		JobsFailed:     atomic.LoadInt64(&p.metrics.JobsFailed),
		JobsRetried:    atomic.LoadInt64(&p.metrics.JobsRetried),
		AvgProcessTime: atomic.LoadInt64(&p.metrics.AvgProcessTime),
		QueueSize:      atomic.LoadInt32(&p.metrics.QueueSize),
	}
}
