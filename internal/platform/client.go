// Package platform provides a client for the posting platform's API.
// It covers the two endpoints the pipeline consumes:
//  1. create-post (v2, JSON): publishes one text segment, optionally as a
//     reply to a previous post and optionally with attached media ids.
//  2. media-upload (v1.1, multipart): the legacy upload endpoint that takes
//     raw image bytes and returns a media id for later attachment. It lives
//     on a separate host and requires its own OAuth handshake, so the client
//     holds two signed HTTP sessions.
//
// All requests are signed with OAuth 1.0a user context built from the five
// static credential values.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/rs/zerolog/log"
)

const (
	// defaultAPIBaseURL is the v2 API base URL (create-post, verify).
	defaultAPIBaseURL = "https://api.twitter.com/2"

	// defaultUploadBaseURL is the legacy v1.1 media endpoint base URL.
	defaultUploadBaseURL = "https://upload.twitter.com/1.1"

	// defaultTimeout is the HTTP client timeout for API calls. This is the
	// only upper bound on a stalled call.
	defaultTimeout = 30 * time.Second
)

// Credentials holds the five static values the platform session is built from.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	BearerToken  string
}

// Validate reports the first missing credential value.
func (c Credentials) Validate() error {
	switch {
	case c.APIKey == "":
		return fmt.Errorf("missing API key")
	case c.APISecret == "":
		return fmt.Errorf("missing API secret")
	case c.AccessToken == "":
		return fmt.Errorf("missing access token")
	case c.AccessSecret == "":
		return fmt.Errorf("missing access token secret")
	case c.BearerToken == "":
		return fmt.Errorf("missing bearer token")
	}
	return nil
}

// AuthError indicates the credential exchange or verification failed.
// The run aborts immediately without touching the content store.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed: %v", e.Err) }

func (e *AuthError) Unwrap() error { return e.Err }

// APIError is a create-post or upload failure reported by the platform.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("platform API error: %s (%s, HTTP %d)", e.Title, e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("platform API error: %s (HTTP %d)", e.Title, e.StatusCode)
}

// Session is one authenticated client, scoped to a single job run.
// Acquire with NewSession, verify with Verify, and always Close when done.
type Session struct {
	httpClient    *http.Client
	uploadClient  *http.Client
	apiBaseURL    string
	uploadBaseURL string
}

// NewSession builds the OAuth1-signed sessions from static credentials.
// The legacy upload endpoint gets its own signed client; its handshake is
// independent of the v2 session.
func NewSession(creds Credentials) (*Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, &AuthError{Err: err}
	}

	config := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	apiClient := config.Client(oauth1.NoContext, token)
	apiClient.Timeout = defaultTimeout

	uploadClient := oauth1.NewConfig(creds.APIKey, creds.APISecret).Client(oauth1.NoContext, token)
	uploadClient.Timeout = defaultTimeout

	return &Session{
		httpClient:    apiClient,
		uploadClient:  uploadClient,
		apiBaseURL:    defaultAPIBaseURL,
		uploadBaseURL: defaultUploadBaseURL,
	}, nil
}

// Verify performs the credential exchange check against the verify endpoint.
// Returns *AuthError on any failure so the orchestrator can fail fast.
func (s *Session) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBaseURL+"/users/me", nil)
	if err != nil {
		return &AuthError{Err: fmt.Errorf("build request: %w", err)}
	}

	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		return &AuthError{Err: fmt.Errorf("verify request: %w", err)}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &AuthError{Err: fmt.Errorf("read response: %w", err)}
	}

	var resp verifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &AuthError{Err: fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))}
	}
	if httpResp.StatusCode != http.StatusOK || resp.Data.ID == "" {
		return &AuthError{Err: apiErrorFrom(httpResp.StatusCode, resp.Title, resp.Detail)}
	}

	log.Info().Str("userId", resp.Data.ID).Str("username", resp.Data.Username).Msg("Authentication successful")
	return nil
}

// Close tears the session down. Deferred by the orchestrator on every path.
func (s *Session) Close() {
	s.httpClient.CloseIdleConnections()
	s.uploadClient.CloseIdleConnections()
}

// --- API request/response types ---

// PostResult is the explicit result of a create-post call. ID is always
// non-empty; a response without a usable id fails the attempt instead.
type PostResult struct {
	ID   string
	Text string
}

type createPostRequest struct {
	Text  string    `json:"text"`
	Reply *replyRef `json:"reply,omitempty"`
	Media *mediaRef `json:"media,omitempty"`
}

type replyRef struct {
	InReplyToPostID string `json:"in_reply_to_tweet_id"`
}

type mediaRef struct {
	MediaIDs []string `json:"media_ids"`
}

type createPostResponse struct {
	Data *struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type verifyResponse struct {
	Data struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"data"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// --- Posting ---

// CreatePost publishes one part. inReplyTo threads the part under a previous
// post id (empty for the first part); mediaIDs attaches uploaded media.
// Every call is a live external write; there is no dry-run mode.
func (s *Session) CreatePost(ctx context.Context, text, inReplyTo string, mediaIDs []string) (*PostResult, error) {
	reqBody := createPostRequest{Text: text}
	if inReplyTo != "" {
		reqBody.Reply = &replyRef{InReplyToPostID: inReplyTo}
	}
	if len(mediaIDs) > 0 {
		reqBody.Media = &mediaRef{MediaIDs: mediaIDs}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	startTime := time.Now()
	log.Debug().
		Str("method", http.MethodPost).
		Str("path", "/tweets").
		Bool("isReply", inReplyTo != "").
		Int("mediaIds", len(mediaIDs)).
		Msg("Platform API request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBaseURL+"/tweets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Platform API response")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Platform API response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp createPostResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		apiErr := apiErrorFrom(httpResp.StatusCode, resp.Title, resp.Detail)
		log.Error().Int("statusCode", httpResp.StatusCode).Str("title", resp.Title).Str("detail", resp.Detail).Msg("Platform API error")
		return nil, apiErr
	}

	// Required-field check: a 2xx without a post id is still a failed attempt.
	if resp.Data == nil || resp.Data.ID == "" {
		return nil, &APIError{
			StatusCode: httpResp.StatusCode,
			Title:      "no post id returned",
			Detail:     truncate(string(body), 200),
		}
	}

	log.Info().Str("postId", resp.Data.ID).Bool("isReply", inReplyTo != "").Msg("Post created")
	return &PostResult{ID: resp.Data.ID, Text: resp.Data.Text}, nil
}

// apiErrorFrom builds an APIError, substituting a generic title when the
// response body carried none.
func apiErrorFrom(status int, title, detail string) *APIError {
	if title == "" {
		title = "unexpected response"
	}
	return &APIError{StatusCode: status, Title: title, Detail: detail}
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
