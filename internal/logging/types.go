package logging

import "time"

// #region batch-run
// BatchRun is a single row in the batch_runs table.
type BatchRun struct {
	ID         string
	Model      string
	Sentences  int
	Succeeded  int
	Failed     int
	Canceled   int
	Attempts   int
	Note       string // first failure reason, empty when every sentence succeeded
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is how long the batch ran.
func (r BatchRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
// #endregion batch-run
