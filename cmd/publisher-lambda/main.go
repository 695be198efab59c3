// Package main provides the Lambda entry point for the publishing pipeline.
//
// The function is invoked by an EventBridge schedule at the posting-window
// hours (and can be invoked manually with {"force": true}). Each invocation
// handles at most one pending post; the schedule provides the single-flight
// guarantee the pipeline assumes.
//
// Container: Light (no ffmpeg, no AI runtime needed)
// Memory: 128 MB
// Timeout: 5 minutes (covers 3 attempts x 10s backoff plus pacing for long threads)
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/thread-publisher/internal/jobs"
	"github.com/fpang/thread-publisher/internal/lambdaboot"
	"github.com/fpang/thread-publisher/internal/logging"
	"github.com/fpang/thread-publisher/internal/media"
	"github.com/fpang/thread-publisher/internal/pipeline"
	"github.com/fpang/thread-publisher/internal/platform"
	"github.com/fpang/thread-publisher/internal/publisher"
	"github.com/fpang/thread-publisher/internal/schedule"
	"github.com/fpang/thread-publisher/internal/store"
)

var coldStart = true

var (
	queueStore *store.DynamoStore
	blobStore  *media.S3BlobStore
	creds      platform.Credentials
)

func init() {
	initStart := time.Now()
	logging.Init()

	awsClients := lambdaboot.InitAWS()
	queueStore = lambdaboot.InitQueueStore(awsClients.Config)
	blobStore = lambdaboot.InitBlobStore(awsClients.Config)
	creds = lambdaboot.LoadPlatformCredentials(awsClients.SSM)

	lambdaboot.StartupLog("publisher-lambda", initStart).
		DynamoTable("queue", os.Getenv(lambdaboot.EnvQueueTable)).
		DynamoTable("history", os.Getenv(lambdaboot.EnvHistoryTable)).
		S3Bucket("media", os.Getenv(lambdaboot.EnvMediaBucket)).
		SSMParam("apiKey", logging.EnvOrDefault("SSM_API_KEY_PARAM", "/thread-publisher/prod/api-key")).
		SSMParam("accessToken", logging.EnvOrDefault("SSM_ACCESS_TOKEN_PARAM", "/thread-publisher/prod/access-token")).
		Feature("media", blobStore != nil).
		Log()
}

func main() {
	lambda.Start(handler)
}

// --- Event and Result types ---

// RunEvent is the invocation payload. The EventBridge schedule sends an
// empty event; manual invocations can force a run outside the window or
// override the window hours.
type RunEvent struct {
	Force bool  `json:"force,omitempty"`
	Hours []int `json:"hours,omitempty"`
}

// RunResult reports how the run ended. Publish failures surface as handler
// errors instead, so they mark the invocation failed and alarmable.
type RunResult struct {
	Outcome        string `json:"outcome"`
	PostID         string `json:"postId,omitempty"`
	ThreadID       string `json:"threadId,omitempty"`
	PartsPublished int    `json:"partsPublished,omitempty"`
	SkipReason     string `json:"skipReason,omitempty"`
}

func handler(ctx context.Context, event RunEvent) (RunResult, error) {
	if coldStart {
		coldStart = false
		log.Info().Str("function", "publisher-lambda").Msg("Cold start — first invocation")
	}

	if !event.Force {
		window := schedule.NewWindow(event.Hours)
		if !window.Open(time.Now()) {
			log.Info().
				Ints("windowHours", window.Hours()).
				Int("currentHour", time.Now().UTC().Hour()).
				Msg("Outside posting window — nothing to do")
			return RunResult{Outcome: "window_closed"}, nil
		}
	}

	session, err := platform.NewSession(creds)
	if err != nil {
		return RunResult{}, err
	}

	var resolver pipeline.MediaResolver
	if blobStore != nil {
		resolver = media.NewResolver(blobStore, session)
	}

	runID := jobs.NewRunID()
	log.Info().Str("runId", runID).Msg("Publisher Lambda invoked")

	run := pipeline.New(queueStore, session, resolver, publisher.New(session, queueStore))

	runStart := time.Now()
	result, err := run.Run(ctx)
	pipeline.EmitRunMetrics(runID, result, err, time.Since(runStart))
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Pipeline run failed")
		return RunResult{}, err
	}

	log.Info().
		Str("runId", runID).
		Str("outcome", string(result.Outcome)).
		Str("postId", result.PostID).
		Int("partsPublished", result.PartsPublished).
		Msg("Pipeline run complete")

	return RunResult{
		Outcome:        string(result.Outcome),
		PostID:         result.PostID,
		ThreadID:       result.ThreadID,
		PartsPublished: result.PartsPublished,
		SkipReason:     result.SkipReason,
	}, nil
}
