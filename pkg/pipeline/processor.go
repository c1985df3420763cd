package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feedscope/feedscope/pkg/config"
	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/repository"
	"github.com/feedscope/feedscope/pkg/vector"
)

//go:generate moq -out mocks/classifier.go -pkg mocks -skip-ensure -fmt goimports . Classifier
//go:generate moq -out mocks/embedder.go -pkg mocks -skip-ensure -fmt goimports . Embedder
//go:generate moq -out mocks/index.go -pkg mocks -skip-ensure -fmt goimports . Index

// FeedbackStore is the record-store surface the pipeline needs
type FeedbackStore interface {
	Get(ctx context.Context, id int64) (*domain.Feedback, error)
	GetUnclassified(ctx context.Context, limit int) ([]*domain.Feedback, error)
	UpdateClassification(ctx context.Context, id int64, v domain.Verdict) error
}

// JobStore persists pipeline job state between stages
type JobStore interface {
	Create(ctx context.Context, id string, feedbackID int64) error
	Get(ctx context.Context, id string) (*domain.Job, error)
	Update(ctx context.Context, job *domain.Job) error
	GetIncomplete(ctx context.Context, limit int) ([]*domain.Job, error)
	GetActiveForFeedback(ctx context.Context, feedbackID int64) (*domain.Job, error)
}

// Classifier produces a verdict for one feedback item. Implementations never
// fail: a broken model call yields the default verdict.
type Classifier interface {
	Classify(ctx context.Context, title, content string) domain.Verdict
}

// Embedder converts text to an embedding vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index is the vector index surface the pipeline writes to
type Index interface {
	Upsert(ctx context.Context, entry vector.Entry) error
}

// Processor runs feedback items through the classification pipeline. Each
// enqueued item becomes a durable job advancing through fetch, analyze,
// store, embed and index; job state is persisted after every stage so a
// restart resumes where it stopped instead of repeating model calls.
type Processor struct {
	feedback   FeedbackStore
	jobs       JobStore
	classifier Classifier
	embedder   Embedder
	index      Index
	cfg        config.PipelineConfig

	queue    chan string
	inFlight map[string]struct{}
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewProcessor creates a pipeline processor
func NewProcessor(feedback FeedbackStore, jobs JobStore, classifier Classifier, embedder Embedder, index Index, cfg config.PipelineConfig) *Processor {
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 5
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 100
	}
	if cfg.EmbedAttempts == 0 {
		cfg.EmbedAttempts = 3
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryInitialDelay == 0 {
		cfg.RetryInitialDelay = 100 * time.Millisecond
	}
	if cfg.RetryMaxDelay == 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if cfg.BackfillInterval == 0 {
		cfg.BackfillInterval = 10 * time.Minute
	}
	if cfg.BackfillBatch == 0 {
		cfg.BackfillBatch = 50
	}

	return &Processor{
		feedback:   feedback,
		jobs:       jobs,
		classifier: classifier,
		embedder:   embedder,
		index:      index,
		cfg:        cfg,
		queue:      make(chan string, cfg.QueueSize),
		inFlight:   make(map[string]struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the worker pool, resumes interrupted jobs and begins the
// periodic backfill sweep
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		defer close(p.done)

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			p.workerLoop(gctx, g)
			return nil
		})
		g.Go(func() error {
			p.backfillLoop(gctx)
			return nil
		})

		if n, err := p.Resume(ctx); err != nil {
			lgr.Printf("[WARN] resume interrupted jobs: %v", err)
		} else if n > 0 {
			lgr.Printf("[INFO] resumed %d interrupted jobs", n)
		}

		if err := g.Wait(); err != nil {
			lgr.Printf("[WARN] pipeline workers stopped: %v", err)
		}
	}()

	lgr.Printf("[INFO] pipeline started with %d workers, backfill every %v", p.cfg.MaxWorkers, p.cfg.BackfillInterval)
}

// Stop cancels workers and waits for in-flight jobs to persist their state
func (p *Processor) Stop() {
	lgr.Printf("[INFO] stopping pipeline...")
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
	lgr.Printf("[INFO] pipeline stopped")
}

// workerLoop consumes the queue, limiting concurrent jobs to MaxWorkers
func (p *Processor) workerLoop(ctx context.Context, g *errgroup.Group) {
	sem := make(chan struct{}, p.cfg.MaxWorkers)
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-p.queue:
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			g.Go(func() error {
				defer func() { <-sem }()
				p.runJob(ctx, jobID)
				return nil
			})
		}
	}
}

// backfillLoop periodically picks up unclassified items that never got a job,
// covering items created while the pipeline was down
func (p *Processor) backfillLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.BackfillInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := p.Backfill(ctx); err != nil {
				lgr.Printf("[WARN] backfill sweep failed: %v", err)
			} else if n > 0 {
				lgr.Printf("[INFO] backfill enqueued %d items", n)
			}
			// jobs deferred on a full queue get re-scheduled here too
			if n, err := p.Resume(ctx); err != nil {
				lgr.Printf("[WARN] resume sweep failed: %v", err)
			} else if n > 0 {
				lgr.Printf("[INFO] resume re-scheduled %d jobs", n)
			}
		}
	}
}

// Enqueue creates a durable job for the feedback item and schedules it. When
// a non-terminal job already exists for the item, its handle is returned
// instead of starting duplicate work.
func (p *Processor) Enqueue(ctx context.Context, feedbackID int64) (jobID string, err error) {
	if active, err := p.jobs.GetActiveForFeedback(ctx, feedbackID); err == nil {
		return active.ID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("check active job: %w", err)
	}

	jobID = uuid.NewString()
	if err := p.jobs.Create(ctx, jobID, feedbackID); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	p.schedule(jobID)
	return jobID, nil
}

// schedule pushes the job handle to the queue without blocking. A full queue
// is not a loss: the job record is already durable and the next resume or
// backfill sweep picks it up.
func (p *Processor) schedule(jobID string) {
	select {
	case p.queue <- jobID:
	default:
		lgr.Printf("[WARN] pipeline queue full, job %s deferred to next sweep", jobID)
	}
}

// Status returns the durable state of a job
func (p *Processor) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return p.jobs.Get(ctx, jobID)
}

// Resume re-schedules jobs stuck in a non-terminal stage
func (p *Processor) Resume(ctx context.Context) (int, error) {
	jobs, err := p.jobs.GetIncomplete(ctx, p.cfg.BackfillBatch)
	if err != nil {
		return 0, fmt.Errorf("get incomplete jobs: %w", err)
	}

	count := 0
	for _, job := range jobs {
		if p.tracked(job.ID) {
			continue // already being processed
		}
		p.schedule(job.ID)
		count++
	}
	return count, nil
}

// Backfill enqueues unclassified items that have no active job. Also invoked
// via the API for a manual sweep.
func (p *Processor) Backfill(ctx context.Context) (int, error) {
	items, err := p.feedback.GetUnclassified(ctx, p.cfg.BackfillBatch)
	if err != nil {
		return 0, fmt.Errorf("get unclassified feedback: %w", err)
	}

	count := 0
	for _, fb := range items {
		if _, err := p.Enqueue(ctx, fb.ID); err != nil {
			lgr.Printf("[WARN] backfill enqueue feedback %d: %v", fb.ID, err)
			continue
		}
		count++
	}
	return count, nil
}

func (p *Processor) track(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inFlight[jobID]; ok {
		return false
	}
	p.inFlight[jobID] = struct{}{}
	return true
}

func (p *Processor) untrack(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, jobID)
}

func (p *Processor) tracked(jobID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.inFlight[jobID]
	return ok
}

// runJob loads the job and advances it stage by stage until it reaches a
// terminal state or the context is cancelled
func (p *Processor) runJob(ctx context.Context, jobID string) {
	if !p.track(jobID) {
		return
	}
	defer p.untrack(jobID)

	job, err := p.jobs.Get(ctx, jobID)
	if err != nil {
		lgr.Printf("[WARN] load job %s: %v", jobID, err)
		return
	}
	if job.Done() {
		return
	}

	lgr.Printf("[DEBUG] processing job %s for feedback %d at stage %s", job.ID, job.FeedbackID, job.Stage)

	for !job.Done() {
		if ctx.Err() != nil {
			return // job stays at its stage, resume will pick it up
		}
		if err := p.runStage(ctx, job); err != nil {
			lgr.Printf("[WARN] job %s failed at stage %s: %v", job.ID, job.Stage, err)
			job.Stage = domain.StageFailed
			job.Error = err.Error()
		}
		if err := p.jobs.Update(ctx, job); err != nil {
			lgr.Printf("[ERROR] persist job %s: %v", job.ID, err)
			return
		}
	}

	if job.Stage == domain.StageCompleted {
		lgr.Printf("[INFO] job %s completed for feedback %d", job.ID, job.FeedbackID)
	}
}

// runStage executes the job's current stage and advances it on success. Each
// stage is idempotent; replaying a finished stage after a crash is safe.
func (p *Processor) runStage(ctx context.Context, job *domain.Job) error {
	switch job.Stage {
	case domain.StageFetch:
		fb, err := p.feedback.Get(ctx, job.FeedbackID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("feedback %d not found", job.FeedbackID)
			}
			return fmt.Errorf("fetch feedback: %w", err)
		}
		if fb.Content == "" {
			return fmt.Errorf("feedback %d has no content", job.FeedbackID)
		}
		job.Stage = domain.StageAnalyze
		return nil

	case domain.StageAnalyze:
		fb, err := p.feedback.Get(ctx, job.FeedbackID)
		if err != nil {
			return fmt.Errorf("fetch feedback for analyze: %w", err)
		}
		if fb.Classified() {
			// manually classified at ingest, keep the stored verdict and
			// run the remaining stages as an embed-only pass
			verdict := fb.Verdict()
			job.Verdict = &verdict
			job.Stage = domain.StageStore
			return nil
		}
		verdict := p.classifier.Classify(ctx, fb.Title, fb.Content)
		job.Verdict = &verdict
		job.Stage = domain.StageStore
		return nil

	case domain.StageStore:
		if job.Verdict == nil {
			// resumed job with a lost verdict, send it back one stage
			job.Stage = domain.StageAnalyze
			return nil
		}
		if err := p.feedback.UpdateClassification(ctx, job.FeedbackID, *job.Verdict); err != nil {
			return fmt.Errorf("store classification: %w", err)
		}
		job.Stage = domain.StageEmbed
		return nil

	case domain.StageEmbed:
		fb, err := p.feedback.Get(ctx, job.FeedbackID)
		if err != nil {
			return fmt.Errorf("fetch feedback for embed: %w", err)
		}

		text := fb.Content
		if fb.Title != "" {
			text = fb.Title + "\n" + fb.Content
		}

		retrier := repeater.NewBackoff(p.cfg.EmbedAttempts, p.cfg.RetryInitialDelay,
			repeater.WithMaxDelay(p.cfg.RetryMaxDelay))
		var vec []float32
		err = retrier.Do(ctx, func() error {
			job.Attempts++
			var embErr error
			vec, embErr = p.embedder.Embed(ctx, text)
			return embErr
		})
		if err != nil {
			// the item keeps its classification, only similarity search loses it
			return fmt.Errorf("embed after %d attempts: %w", job.Attempts, err)
		}

		job.Embedding = vec
		job.Stage = domain.StageIndex
		return nil

	case domain.StageIndex:
		if len(job.Embedding) == 0 {
			job.Stage = domain.StageEmbed
			return nil
		}
		fb, err := p.feedback.Get(ctx, job.FeedbackID)
		if err != nil {
			return fmt.Errorf("fetch feedback for index: %w", err)
		}

		entry := vector.Entry{
			ID:       fb.ID,
			Vector:   job.Embedding,
			Metadata: vector.Metadata{ProductID: fb.ProductID, Title: fb.Title, Snippet: fb.Snippet(200)},
		}
		if fb.Category != nil {
			entry.Metadata.Category = *fb.Category
		}
		if fb.SentimentLabel != nil {
			entry.Metadata.Sentiment = *fb.SentimentLabel
		}

		retrier := repeater.NewBackoff(p.cfg.RetryAttempts, p.cfg.RetryInitialDelay,
			repeater.WithMaxDelay(p.cfg.RetryMaxDelay))
		if err := retrier.Do(ctx, func() error { return p.index.Upsert(ctx, entry) }); err != nil {
			return fmt.Errorf("index vector: %w", err)
		}

		job.Stage = domain.StageCompleted
		job.Error = ""
		return nil

	default:
		return fmt.Errorf("unknown stage %q", job.Stage)
	}
}
