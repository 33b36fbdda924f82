package client

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"boardflow/domain"
)

// StreamConfig describes one board stream subscription.
type StreamConfig struct {
	// BaseURL is the server root, e.g. "http://localhost:8080".
	BaseURL string
	BoardID string
	// Token is sent as a Bearer credential.
	Token string
	// HTTPClient defaults to http.DefaultClient. It must not carry a global
	// timeout; the stream is long-lived.
	HTTPClient *http.Client
}

// ListenStream opens the board's event stream and feeds every decoded event
// to apply, in arrival order. It returns when ctx is cancelled or the
// connection drops; the caller re-fetches a snapshot before reconnecting.
func ListenStream(ctx context.Context, cfg StreamConfig, apply func(domain.Event)) error {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	url := fmt.Sprintf("%s/api/boards/%s/stream", strings.TrimRight(cfg.BaseURL, "/"), cfg.BoardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream subscription rejected: %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates a frame.
			if data.Len() > 0 {
				var ev domain.Event
				if err := sonic.ConfigStd.Unmarshal([]byte(data.String()), &ev); err != nil {
					return fmt.Errorf("decode stream event: %w", err)
				}
				apply(ev)
				data.Reset()
			}
		case strings.HasPrefix(line, ":"):
			// Heartbeat comment, ignore.
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}
