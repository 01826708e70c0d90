// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package notifications pushes download lifecycle updates to an ntfy topic.
package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/downloads"
	"github.com/gamarr/gamarr/internal/models"
)

// Notifier publishes human-facing messages. The zero configuration yields a
// no-op implementation so callers never branch on whether notifications are
// enabled.
type Notifier interface {
	Publish(ctx context.Context, title, message, priority string) error
}

// New returns an ntfy notifier for topicURL, or a noop when it is empty.
func New(topicURL string, timeout time.Duration) Notifier {
	if strings.TrimSpace(topicURL) == "" {
		return noopNotifier{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyNotifier{
		topicURL: topicURL,
		client:   &http.Client{Timeout: timeout},
	}
}

type noopNotifier struct{}

func (noopNotifier) Publish(ctx context.Context, title, message, priority string) error {
	return nil
}

type ntfyNotifier struct {
	topicURL string
	client   *http.Client
}

func (n *ntfyNotifier) Publish(ctx context.Context, title, message, priority string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.topicURL, strings.NewReader(message))
	if err != nil {
		return errors.Wrap(err, "failed to build ntfy request")
	}
	req.Header.Set("Title", title)
	req.Header.Set("User-Agent", buildinfo.UserAgent)
	if priority != "" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "ntfy request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Errorf("ntfy returned status %d", resp.StatusCode)
	}
	return nil
}

// progressInterval bounds per-download progress notifications. Lifecycle
// transitions always go out; progress is sampled.
const progressInterval = 30 * time.Second

// Pump consumes the orchestrator's event stream and forwards it to the
// notifier until the stream closes or ctx is cancelled. Run it in its own
// goroutine.
func Pump(ctx context.Context, events <-chan downloads.Event, notifier Notifier) {
	lastProgress := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Type == downloads.EventProgress {
				if time.Since(lastProgress[event.Download.ID]) < progressInterval {
					continue
				}
				lastProgress[event.Download.ID] = time.Now()
			}
			if event.Download.Status.Terminal() {
				delete(lastProgress, event.Download.ID)
			}

			title, message, priority := format(event)
			if title == "" {
				continue
			}
			if err := notifier.Publish(ctx, title, message, priority); err != nil {
				log.Warn().Err(err).Str("download", event.Download.ID).Msg("Failed to publish notification")
			}
		}
	}
}

func format(event downloads.Event) (title, message, priority string) {
	dl := event.Download

	switch event.Type {
	case downloads.EventQueued:
		return "Download queued", fmt.Sprintf("%s (%s)", dl.GameName, dl.Source), ""
	case downloads.EventStarted:
		return "Download started", dl.GameName, ""
	case downloads.EventProgress:
		return "Downloading", progressLine(dl), "min"
	case downloads.EventCompleted:
		return "Download complete", fmt.Sprintf("%s saved to %s", dl.GameName, dl.DestinationFolder), "high"
	case downloads.EventFailed:
		return "Download failed", fmt.Sprintf("%s: %s", dl.GameName, dl.Error), "high"
	case downloads.EventCancelled:
		return "Download cancelled", dl.GameName, ""
	}
	return "", "", ""
}

func progressLine(dl models.DDLDownload) string {
	p := dl.Progress
	if p.TotalBytes > 0 {
		return fmt.Sprintf("%s %.0f%% (%s/s)", dl.GameName, p.Percentage, humanBytes(p.SpeedBytesPerSecond))
	}
	return fmt.Sprintf("%s %s downloaded", dl.GameName, humanBytes(p.DownloadedBytes))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
