// Package sync pushes backup archives to a remote endpoint, authenticating
// with an OAuth2 client-credentials grant.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Settings configures where archives are pushed and how the client
// authenticates with the remote endpoint.
type Settings struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Pusher uploads backup archives to a remote endpoint using a
// client-credentials-authenticated HTTP client.
type Pusher struct {
	endpoint string
	client   *http.Client
}

// NewPusher builds a Pusher whose underlying http.Client transparently
// attaches and refreshes an OAuth2 client-credentials token.
func NewPusher(ctx context.Context, s Settings) *Pusher {
	cc := &clientcredentials.Config{
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		TokenURL:     s.TokenURL,
		Scopes:       s.Scopes,
	}
	return &Pusher{endpoint: s.Endpoint, client: cc.Client(ctx)}
}

// PushArchive uploads the archive at archivePath as a multipart form field
// named "archive".
func (p *Pusher) PushArchive(ctx context.Context, archivePath string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("sync: open archive: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("archive", filepath.Base(archivePath))
	if err != nil {
		return fmt.Errorf("sync: build multipart request: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("sync: copy archive into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("sync: finalize multipart request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return fmt.Errorf("sync: build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync: push archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sync: remote rejected archive: status %d", resp.StatusCode)
	}
	return nil
}

// PushOnInterval pushes newest archives matching pattern every interval
// until ctx is cancelled. It is meant to run in its own goroutine.
func PushOnInterval(ctx context.Context, p *Pusher, backupDir, pattern string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			matches, err := filepath.Glob(filepath.Join(backupDir, pattern))
			if err != nil || len(matches) == 0 {
				continue
			}
			latest := matches[len(matches)-1]
			_ = p.PushArchive(ctx, latest)
		}
	}
}
