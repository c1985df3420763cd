package domain

import "time"

// Stage is the pipeline step a job is waiting to run. A job resumed after a
// crash re-enters at its stored stage; each stage is idempotent so re-running
// a stage that already happened is harmless.
type Stage string

// pipeline stages in execution order, plus terminal states
const (
	StageFetch     Stage = "fetch"     // load the feedback item from the record store
	StageAnalyze   Stage = "analyze"   // classify via the model
	StageStore     Stage = "store"     // persist the verdict
	StageEmbed     Stage = "embed"     // generate the embedding vector
	StageIndex     Stage = "index"     // upsert into the vector index
	StageCompleted Stage = "completed" // terminal, all stages done
	StageFailed    Stage = "failed"    // terminal, gave up
)

// Terminal reports whether the stage is a final state
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Job is one durable pipeline run over a single feedback item. Stage outputs
// (verdict, embedding) are persisted with the job so a restart never repeats
// a model call that already succeeded.
type Job struct {
	ID         string
	FeedbackID int64
	Stage      Stage
	Attempts   int
	Verdict    *Verdict
	Embedding  []float32
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Done reports whether the job reached a terminal stage
func (j *Job) Done() bool {
	return j.Stage.Terminal()
}
