package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/thread-publisher/internal/jobs"
	"github.com/fpang/thread-publisher/internal/lambdaboot"
	"github.com/fpang/thread-publisher/internal/logging"
	"github.com/fpang/thread-publisher/internal/media"
	"github.com/fpang/thread-publisher/internal/pipeline"
	"github.com/fpang/thread-publisher/internal/platform"
	"github.com/fpang/thread-publisher/internal/publisher"
	"github.com/fpang/thread-publisher/internal/schedule"
)

// CLI flags
var (
	gateFlag  bool
	hoursFlag []int
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "publisher-cli",
	Short: "Publishes queued multi-part posts as threads",
	Long: `publisher-cli runs one pass of the publishing pipeline: it fetches the most
recent unposted entry from the queue, checks every part against the published
history, resolves and uploads the optional image, publishes the parts as a
reply chain with human-like pacing, and marks the entry done.

By default the pipeline runs unconditionally. With --gate it only runs when
the current UTC hour is inside the posting window and exits successfully
otherwise, which makes it safe to invoke from a frequent cron entry.

Examples:
  publisher-cli                    # run one pass now
  publisher-cli --gate             # run only at the default window hours (06, 12 UTC)
  publisher-cli --gate --hours 9,18`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().BoolVar(&gateFlag, "gate", false, "Only run when the current UTC hour is inside the posting window")
	rootCmd.Flags().IntSliceVar(&hoursFlag, "hours", nil, "Posting window UTC hours used with --gate (default 6,12)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	initStart := time.Now()
	logging.Init()

	if gateFlag {
		window := schedule.NewWindow(hoursFlag)
		if !window.Open(time.Now()) {
			log.Info().
				Ints("windowHours", window.Hours()).
				Int("currentHour", time.Now().UTC().Hour()).
				Msg("Outside posting window — nothing to do")
			return
		}
	}

	// A terminate signal cancels the run context; already-published parts
	// are not rolled back.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsClients := lambdaboot.InitAWS()
	queueStore := lambdaboot.InitQueueStore(awsClients.Config)
	blobStore := lambdaboot.InitBlobStore(awsClients.Config)
	creds := lambdaboot.LoadPlatformCredentials(awsClients.SSM)

	session, err := platform.NewSession(creds)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to establish platform session")
	}

	var resolver pipeline.MediaResolver
	if blobStore != nil {
		resolver = media.NewResolver(blobStore, session)
	}

	runID := jobs.NewRunID()
	lambdaboot.StartupLog("publisher-cli", initStart).
		DynamoTable("queue", os.Getenv(lambdaboot.EnvQueueTable)).
		DynamoTable("history", os.Getenv(lambdaboot.EnvHistoryTable)).
		S3Bucket("media", os.Getenv(lambdaboot.EnvMediaBucket)).
		Feature("media", blobStore != nil).
		Feature("windowGate", gateFlag).
		Config("runId", runID).
		Log()

	run := pipeline.New(queueStore, session, resolver, publisher.New(session, queueStore))

	runStart := time.Now()
	result, err := run.Run(ctx)
	pipeline.EmitRunMetrics(runID, result, err, time.Since(runStart))
	if err != nil {
		log.Error().Err(err).Str("runId", runID).Msg("Pipeline run failed")
		os.Exit(1)
	}

	log.Info().
		Str("runId", runID).
		Str("outcome", string(result.Outcome)).
		Str("postId", result.PostID).
		Int("partsPublished", result.PartsPublished).
		Msg("Pipeline run complete")
}
