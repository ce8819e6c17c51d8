package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"music-bot-go/config"
	"music-bot-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// DownloadAudio fetches the audio file behind a chosen track link.
func DownloadAudio(ctx context.Context, rawURL string) ([]byte, error) {
	client := &http.Client{Timeout: time.Duration(config.Get().Search.DownloadTimeoutSecs) * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	log.Infof("%s Downloaded %d bytes from %s", logcolors.LogDownload, len(data), rawURL)
	return data, nil
}
