// Package lambdaboot provides shared cold-start bootstrap logic for the
// publisher entrypoints.
//
// Both the Lambda and the CLI need the same subset of: AWS config, the
// DynamoDB queue store, the optional S3 blob store, platform credentials
// from env or SSM, and startup logging. This package extracts the common
// init patterns so each entrypoint is a short composition of helpers.
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/thread-publisher/internal/logging"
	"github.com/fpang/thread-publisher/internal/media"
	"github.com/fpang/thread-publisher/internal/platform"
	"github.com/fpang/thread-publisher/internal/store"
)

// Environment variables read at startup.
const (
	EnvQueueTable   = "QUEUE_TABLE_NAME"
	EnvHistoryTable = "HISTORY_TABLE_NAME"
	EnvMediaBucket  = "MEDIA_BUCKET_NAME"
)

// AWSClients holds the core AWS SDK clients used across entrypoints.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitQueueStore creates the DynamoDB-backed content store from the queue and
// history table environment variables. Fatals if either is empty.
func InitQueueStore(cfg aws.Config) *store.DynamoStore {
	queueTable := os.Getenv(EnvQueueTable)
	if queueTable == "" {
		log.Fatal().Str("envVar", EnvQueueTable).Msg("Queue table environment variable is required")
	}
	historyTable := os.Getenv(EnvHistoryTable)
	if historyTable == "" {
		log.Fatal().Str("envVar", EnvHistoryTable).Msg("History table environment variable is required")
	}
	ddbClient := dynamodb.NewFromConfig(cfg)
	return store.NewDynamoStore(ddbClient, queueTable, historyTable)
}

// InitBlobStore creates the S3 blob store if the media bucket is configured.
// Returns nil (with a warning) if not; posts then always go out text-only.
func InitBlobStore(cfg aws.Config) *media.S3BlobStore {
	bucket := os.Getenv(EnvMediaBucket)
	if bucket == "" {
		log.Warn().Str("envVar", EnvMediaBucket).Msg("Media bucket not set — images disabled")
		return nil
	}
	return media.NewS3BlobStore(s3.NewFromConfig(cfg), bucket)
}

// credentialSources maps each platform credential to its environment
// variable, its SSM path override variable, and its default SSM path.
var credentialSources = []struct {
	envVar       string
	paramEnvVar  string
	defaultParam string
	decrypt      bool
	set          func(*platform.Credentials, string)
}{
	{"PLATFORM_API_KEY", "SSM_API_KEY_PARAM", "/thread-publisher/prod/api-key", true,
		func(c *platform.Credentials, v string) { c.APIKey = v }},
	{"PLATFORM_API_SECRET", "SSM_API_SECRET_PARAM", "/thread-publisher/prod/api-secret", true,
		func(c *platform.Credentials, v string) { c.APISecret = v }},
	{"PLATFORM_ACCESS_TOKEN", "SSM_ACCESS_TOKEN_PARAM", "/thread-publisher/prod/access-token", true,
		func(c *platform.Credentials, v string) { c.AccessToken = v }},
	{"PLATFORM_ACCESS_SECRET", "SSM_ACCESS_SECRET_PARAM", "/thread-publisher/prod/access-secret", true,
		func(c *platform.Credentials, v string) { c.AccessSecret = v }},
	{"PLATFORM_BEARER_TOKEN", "SSM_BEARER_TOKEN_PARAM", "/thread-publisher/prod/bearer-token", true,
		func(c *platform.Credentials, v string) { c.BearerToken = v }},
}

// LoadPlatformCredentials assembles the five static platform credentials,
// preferring environment variables and falling back to SSM Parameter Store.
// Missing values are left empty; platform.NewSession rejects an incomplete
// set with an authentication error, which aborts the run before any store
// access.
func LoadPlatformCredentials(ssmClient *ssm.Client) platform.Credentials {
	var creds platform.Credentials
	for _, src := range credentialSources {
		if v := os.Getenv(src.envVar); v != "" {
			src.set(&creds, v)
			continue
		}

		paramName := logging.EnvOrDefault(src.paramEnvVar, src.defaultParam)
		ssmStart := time.Now()
		result, err := ssmClient.GetParameter(context.Background(), &ssm.GetParameterInput{
			Name:           &paramName,
			WithDecryption: aws.Bool(src.decrypt),
		})
		if err != nil {
			log.Warn().Err(err).Str("param", paramName).Msg("Platform credential not found in SSM")
			continue
		}
		src.set(&creds, *result.Parameter.Value)
		log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Platform credential loaded from SSM")
	}
	return creds
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
