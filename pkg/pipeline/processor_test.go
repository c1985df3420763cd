package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedscope/feedscope/pkg/config"
	"github.com/feedscope/feedscope/pkg/domain"
	"github.com/feedscope/feedscope/pkg/pipeline/mocks"
	"github.com/feedscope/feedscope/pkg/repository"
	"github.com/feedscope/feedscope/pkg/vector"
)

func setupRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	repos, err := repository.NewRepositories(context.Background(), repository.Config{
		DSN:          ":memory:",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, repos.Close()) })
	return repos
}

func createFeedback(t *testing.T, repos *repository.Repositories, title, content string) int64 {
	t.Helper()
	ctx := context.Background()

	productID, err := repos.Product.CreateProduct(ctx, &domain.Product{Name: fmt.Sprintf("product-%d", time.Now().UnixNano())})
	require.NoError(t, err)
	source, err := repos.Product.GetOrCreateSource(ctx, productID, "api", "manual")
	require.NoError(t, err)

	id, _, err := repos.Feedback.Create(ctx, &domain.Feedback{
		ProductID: productID,
		SourceID:  source.ID,
		Title:     title,
		Content:   content,
	})
	require.NoError(t, err)
	return id
}

func fastConfig() config.PipelineConfig {
	return config.PipelineConfig{
		MaxWorkers:        2,
		QueueSize:         10,
		EmbedAttempts:     2,
		RetryAttempts:     2,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
		BackfillInterval:  50 * time.Millisecond,
		BackfillBatch:     10,
	}
}

func waitForStage(t *testing.T, p *Processor, jobID string, want domain.Stage) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = p.Status(context.Background(), jobID)
		return err == nil && job.Stage == want
	}, 5*time.Second, 5*time.Millisecond, "job %s never reached stage %s", jobID, want)
	return job
}

func TestProcessor_HappyPath(t *testing.T) {
	repos := setupRepos(t)
	idx := vector.NewMemoryIndex()

	verdict := domain.Verdict{
		SentimentScore: -0.7, SentimentLabel: domain.SentimentNegative,
		Category: domain.CategoryBug, Priority: domain.PriorityHigh,
	}
	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return verdict },
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{0.1, 0.2, 0.3}, nil },
	}

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, idx, fastConfig())
	p.Start(context.Background())
	defer p.Stop()

	fbID := createFeedback(t, repos, "Crash on save", "the app crashes when I hit save")
	jobID, err := p.Enqueue(context.Background(), fbID)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitForStage(t, p, jobID, domain.StageCompleted)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.Verdict)
	assert.Equal(t, verdict, *job.Verdict)

	// record store got the classification
	fb, err := repos.Feedback.Get(context.Background(), fbID)
	require.NoError(t, err)
	assert.True(t, fb.Classified())
	assert.Equal(t, verdict, fb.Verdict())
	assert.Equal(t, domain.StatusProcessed, fb.Status)

	// vector index got the entry with denormalized metadata
	vec, err := idx.GetVector(context.Background(), fbID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	matches, err := idx.Query(context.Background(), []float32{0.1, 0.2, 0.3}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.CategoryBug, matches[0].Metadata.Category)
	assert.Equal(t, "Crash on save", matches[0].Metadata.Title)

	// model saw title and content
	require.Len(t, classifier.ClassifyCalls(), 1)
	assert.Equal(t, "Crash on save", classifier.ClassifyCalls()[0].Title)
}

func TestProcessor_Enqueue_Idempotent(t *testing.T) {
	repos := setupRepos(t)

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return domain.DefaultVerdict() },
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{1}, nil },
	}

	// not started, jobs stay queued so the first one remains active
	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, vector.NewMemoryIndex(), fastConfig())

	fbID := createFeedback(t, repos, "", "some feedback")

	first, err := p.Enqueue(context.Background(), fbID)
	require.NoError(t, err)
	second, err := p.Enqueue(context.Background(), fbID)
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-enqueueing an in-flight item returns the same job")
}

func TestProcessor_RunTwice_Converges(t *testing.T) {
	repos := setupRepos(t)
	idx := vector.NewMemoryIndex()
	ctx := context.Background()

	verdict := domain.Verdict{
		SentimentScore: -0.8, SentimentLabel: domain.SentimentNegative,
		Category: domain.CategoryBug, Priority: domain.PriorityCritical,
	}
	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return verdict },
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{0.4, 0.6}, nil },
	}

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, idx, fastConfig())
	p.Start(ctx)
	defer p.Stop()

	fbID := createFeedback(t, repos, "crash on upload", "crashes on upload of files over 2GB")

	firstJob, err := p.Enqueue(ctx, fbID)
	require.NoError(t, err)
	waitForStage(t, p, firstJob, domain.StageCompleted)

	after, err := repos.Feedback.Get(ctx, fbID)
	require.NoError(t, err)

	// redelivery: enqueue the same item again after the first run finished
	secondJob, err := p.Enqueue(ctx, fbID)
	require.NoError(t, err)
	assert.NotEqual(t, firstJob, secondJob, "completed job is not reused")
	waitForStage(t, p, secondJob, domain.StageCompleted)

	// the record is byte-for-byte what one run produced
	again, err := repos.Feedback.Get(ctx, fbID)
	require.NoError(t, err)
	assert.Equal(t, after, again, "second run must converge to the same record")
	assert.Equal(t, *after.ProcessedAt, *again.ProcessedAt)

	// one index entry, not two, and the vector is unchanged
	assert.Equal(t, 1, idx.Len(), "upsert overwrites, never duplicates")
	vec, err := idx.GetVector(ctx, fbID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.4, 0.6}, vec)

	// the second run reuses the stored classification instead of paying for
	// another model call
	assert.Len(t, classifier.ClassifyCalls(), 1)
}

func TestProcessor_EmbedFailure_KeepsClassification(t *testing.T) {
	repos := setupRepos(t)
	idx := vector.NewMemoryIndex()

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return domain.DefaultVerdict() },
	}
	var attempts atomic.Int32
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) {
			attempts.Add(1)
			return nil, fmt.Errorf("embedding provider down")
		},
	}

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, idx, fastConfig())
	p.Start(context.Background())
	defer p.Stop()

	fbID := createFeedback(t, repos, "", "feedback that cannot be embedded")
	jobID, err := p.Enqueue(context.Background(), fbID)
	require.NoError(t, err)

	job := waitForStage(t, p, jobID, domain.StageFailed)
	assert.Contains(t, job.Error, "embed")
	assert.Equal(t, int32(2), attempts.Load(), "embed attempts are bounded")

	// classification survives the embed failure
	fb, err := repos.Feedback.Get(context.Background(), fbID)
	require.NoError(t, err)
	assert.True(t, fb.Classified())

	// nothing was indexed
	_, err = idx.GetVector(context.Background(), fbID)
	assert.ErrorIs(t, err, vector.ErrVectorNotFound)
}

func TestProcessor_DeletedFeedback_DropsJob(t *testing.T) {
	repos := setupRepos(t)
	ctx := context.Background()

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return domain.DefaultVerdict() },
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{1}, nil },
	}

	// not started yet, so the job stays queued while the item is deleted
	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, vector.NewMemoryIndex(), fastConfig())

	fbID := createFeedback(t, repos, "", "doomed")
	jobID, err := p.Enqueue(ctx, fbID)
	require.NoError(t, err)

	// deleting the item cascades to its job, the queued handle goes stale
	require.NoError(t, repos.Feedback.Delete(ctx, fbID))
	_, err = p.Status(ctx, jobID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// the worker must skip the stale handle without touching the model
	p.Start(ctx)
	defer p.Stop()
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, classifier.ClassifyCalls())
}

func TestProcessor_Resume_ContinuesFromStoredStage(t *testing.T) {
	repos := setupRepos(t)
	idx := vector.NewMemoryIndex()
	ctx := context.Background()

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict {
			t.Error("classify must not run again on resume")
			return domain.DefaultVerdict()
		},
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{0.5, 0.5}, nil },
	}

	fbID := createFeedback(t, repos, "resume me", "interrupted mid-pipeline")

	// simulate a crash after the store stage: classification persisted, job
	// parked at embed with its verdict saved
	verdict := domain.Verdict{SentimentScore: 0.2, SentimentLabel: domain.SentimentPositive,
		Category: domain.CategoryPraise, Priority: domain.PriorityLow}
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fbID, verdict))

	jobID := "11111111-2222-3333-4444-555555555555"
	require.NoError(t, repos.Job.Create(ctx, jobID, fbID))
	job, err := repos.Job.Get(ctx, jobID)
	require.NoError(t, err)
	job.Stage = domain.StageEmbed
	job.Verdict = &verdict
	require.NoError(t, repos.Job.Update(ctx, job))

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, idx, fastConfig())
	p.Start(ctx)
	defer p.Stop()

	waitForStage(t, p, jobID, domain.StageCompleted)

	vec, err := idx.GetVector(ctx, fbID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, vec)
	assert.Empty(t, classifier.ClassifyCalls())
	assert.Len(t, embedder.EmbedCalls(), 1)
}

func TestProcessor_ManuallyClassified_EmbedOnly(t *testing.T) {
	repos := setupRepos(t)
	idx := vector.NewMemoryIndex()
	ctx := context.Background()

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict {
			t.Error("classify must not run for manually classified items")
			return domain.DefaultVerdict()
		},
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{0.3, 0.7}, nil },
	}

	fbID := createFeedback(t, repos, "dark mode", "please add dark mode")
	manual := domain.Verdict{SentimentScore: 0, SentimentLabel: domain.SentimentNeutral,
		Category: domain.CategoryFeatureRequest, Priority: domain.PriorityLow}
	require.NoError(t, repos.Feedback.UpdateClassification(ctx, fbID, manual))

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, idx, fastConfig())
	p.Start(ctx)
	defer p.Stop()

	jobID, err := p.Enqueue(ctx, fbID)
	require.NoError(t, err)

	job := waitForStage(t, p, jobID, domain.StageCompleted)
	require.NotNil(t, job.Verdict)
	assert.Equal(t, manual, *job.Verdict, "stored verdict carried through unchanged")

	matches, err := idx.Query(ctx, []float32{0.3, 0.7}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, domain.CategoryFeatureRequest, matches[0].Metadata.Category)
	assert.Empty(t, classifier.ClassifyCalls())
}

func TestProcessor_Backfill_PicksUpUnclassified(t *testing.T) {
	repos := setupRepos(t)
	idx := vector.NewMemoryIndex()

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return domain.DefaultVerdict() },
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil },
	}

	fbID := createFeedback(t, repos, "", "arrived while the pipeline was down")

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, idx, fastConfig())

	n, err := p.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// second sweep sees the active job and does not double-enqueue
	n, err = p.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "existing active job is reused, not duplicated")

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool {
		fb, err := repos.Feedback.Get(context.Background(), fbID)
		return err == nil && fb.Classified()
	}, 5*time.Second, 5*time.Millisecond)
}

func TestProcessor_IndexFailure_FailsJob(t *testing.T) {
	repos := setupRepos(t)

	classifier := &mocks.ClassifierMock{
		ClassifyFunc: func(context.Context, string, string) domain.Verdict { return domain.DefaultVerdict() },
	}
	embedder := &mocks.EmbedderMock{
		EmbedFunc: func(context.Context, string) ([]float32, error) { return []float32{1}, nil },
	}
	index := &mocks.IndexMock{
		UpsertFunc: func(context.Context, vector.Entry) error { return fmt.Errorf("vector store unreachable") },
	}

	p := NewProcessor(repos.Feedback, repos.Job, classifier, embedder, index, fastConfig())
	p.Start(context.Background())
	defer p.Stop()

	fbID := createFeedback(t, repos, "", "content")
	jobID, err := p.Enqueue(context.Background(), fbID)
	require.NoError(t, err)

	job := waitForStage(t, p, jobID, domain.StageFailed)
	assert.Contains(t, job.Error, "index vector")
	assert.Len(t, index.UpsertCalls(), 2, "index attempts are bounded")

	fb, err := repos.Feedback.Get(context.Background(), fbID)
	require.NoError(t, err)
	assert.True(t, fb.Classified(), "classification survives index failure")
}
