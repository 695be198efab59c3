package pipeline

import (
	"time"

	"github.com/fpang/thread-publisher/internal/metrics"
)

// metricsNamespace is the CloudWatch namespace for publisher run metrics.
const metricsNamespace = "ThreadPublisher"

// EmitRunMetrics flushes one EMF document describing a completed run.
// Failed runs get the "failed" outcome dimension regardless of how far the
// pipeline got.
func EmitRunMetrics(runID string, result Result, runErr error, elapsed time.Duration) {
	outcome := string(result.Outcome)
	if runErr != nil {
		outcome = "failed"
	}

	rec := metrics.New(metricsNamespace).
		Dimension("Outcome", outcome).
		Duration("RunDurationMs", elapsed).
		Metric("PartsPublished", float64(result.PartsPublished), metrics.UnitCount).
		Property("runId", runID)
	if result.PostID != "" {
		rec.Property("postId", result.PostID)
	}
	if result.SkipReason != "" {
		rec.Property("skipReason", result.SkipReason)
	}
	rec.Flush()
}
