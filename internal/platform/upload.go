package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// uploadResponse is the legacy media-upload endpoint response.
type uploadResponse struct {
	MediaIDString string `json:"media_id_string"`
	Errors        []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

// UploadMedia uploads staged image bytes through the legacy v1.1 endpoint and
// returns the platform media id. The returned id is only valid for attachment
// within the same session and is consumed by the first successful create-post
// call that carries it.
func (s *Session) UploadMedia(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open staged file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("read staged file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart form: %w", err)
	}

	startTime := time.Now()
	log.Debug().Str("path", path).Msg("Uploading media through legacy endpoint")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadBaseURL+"/media/upload.json", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := s.uploadClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Media upload response")
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer httpResp.Body.Close()

	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Media upload response")

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w (body: %s)", err, truncate(string(body), 200))
	}

	if len(resp.Errors) > 0 {
		e := resp.Errors[0]
		return "", &APIError{StatusCode: httpResp.StatusCode, Title: e.Message, Detail: fmt.Sprintf("code %d", e.Code)}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", apiErrorFrom(httpResp.StatusCode, "", truncate(string(body), 200))
	}
	if resp.MediaIDString == "" {
		return "", &APIError{StatusCode: httpResp.StatusCode, Title: "no media id returned", Detail: truncate(string(body), 200)}
	}

	log.Info().Str("mediaId", resp.MediaIDString).Msg("Media uploaded")
	return resp.MediaIDString, nil
}
