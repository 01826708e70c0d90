// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package downloads owns the direct-download lifecycle: a bounded set of
// concurrent transfers, a FIFO queue behind it, retry with a fixed delay,
// and lifecycle events for the notification layer.
package downloads

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/gamarr/gamarr/internal/domain"
	"github.com/gamarr/gamarr/internal/metrics"
	"github.com/gamarr/gamarr/internal/models"
)

// ErrDownloadNotFound is returned for unknown download ids.
var ErrDownloadNotFound = errors.New("download not found")

// ErrNotFetchable is returned when a candidate carries no URL the
// orchestrator can stream itself (magnet or info page only).
var ErrNotFetchable = errors.New("candidate has no fetchable download url")

const historyCap = 100

type activeDownload struct {
	dl     *models.DDLDownload
	cancel context.CancelFunc
	// queued downloads have no worker yet and no cancel func
	queued bool
}

// Orchestrator executes approved downloads. One worker goroutine per active
// transfer; everything else waits in a FIFO queue. Only the owning worker
// mutates a download after it leaves the queue.
type Orchestrator struct {
	client  *http.Client
	metrics *metrics.Metrics
	events  chan Event

	mu       sync.Mutex
	settings domain.DownloadSettings
	active   map[string]*activeDownload
	queue    []string
	history  []models.DDLDownload
	workers  sync.WaitGroup
	closed   bool
}

func NewOrchestrator(settings domain.DownloadSettings, m *metrics.Metrics) *Orchestrator {
	if settings.MaxConcurrentDownloads <= 0 {
		settings.MaxConcurrentDownloads = 3
	}
	if settings.MaxRetries < 0 {
		settings.MaxRetries = 0
	}
	return &Orchestrator{
		// No global timeout: game downloads legitimately run for hours.
		// Cancellation goes through the per-download context.
		client:   &http.Client{},
		metrics:  m,
		events:   make(chan Event, 128),
		settings: settings,
		active:   make(map[string]*activeDownload),
	}
}

// Events exposes the lifecycle stream. The channel is buffered; if no
// consumer drains it, events are dropped rather than blocking workers.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// UpdateSettings hot-swaps the orchestrator configuration. A raised
// concurrency limit dispatches queued downloads immediately; a lowered one
// only affects future dispatches, running transfers are never interrupted.
func (o *Orchestrator) UpdateSettings(settings domain.DownloadSettings) {
	o.mu.Lock()
	if settings.MaxConcurrentDownloads > 0 {
		o.settings = settings
	}
	o.mu.Unlock()

	log.Info().Int("maxConcurrent", settings.MaxConcurrentDownloads).Int("maxRetries", settings.MaxRetries).Msg("Download settings updated")
	o.dispatch()
}

// Start implements the aggregator's DownloadStarter: it validates the
// candidate, creates a pending download and queues it.
func (o *Orchestrator) Start(ctx context.Context, game models.CanonicalGame, c models.GameDownloadCandidate) (models.DDLDownload, error) {
	sourceURL, err := pickSourceURL(c)
	if err != nil {
		return models.DDLDownload{}, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return models.DDLDownload{}, errors.New("orchestrator is shut down")
	}

	dl := &models.DDLDownload{
		ID:                newDownloadID(),
		IGDBID:            game.IGDBID,
		GameName:          game.Name,
		Source:            c.Source,
		SourceURL:         sourceURL,
		Filename:          filenameFor(sourceURL, c.Title),
		Status:            models.DownloadStatusPending,
		DestinationFolder: o.destinationLocked(game.Name),
		CreatedAt:         time.Now(),
	}
	o.active[dl.ID] = &activeDownload{dl: dl, queued: true}
	o.queue = append(o.queue, dl.ID)
	snapshot := dl.Clone()
	o.mu.Unlock()

	o.metrics.DownloadStarted()
	o.emit(Event{Type: EventQueued, Download: snapshot})
	o.dispatch()
	return snapshot, nil
}

// pickSourceURL prefers a direct link over a .torrent fetch; magnets and
// bare info pages cannot be streamed by this orchestrator.
func pickSourceURL(c models.GameDownloadCandidate) (string, error) {
	if c.DirectDownloadURL != "" {
		return c.DirectDownloadURL, nil
	}
	if c.TorrentURL != "" {
		return c.TorrentURL, nil
	}
	return "", ErrNotFetchable
}

func (o *Orchestrator) destinationLocked(gameName string) string {
	if !o.settings.CreateGameSubfolders {
		return o.settings.DownloadPath
	}
	return filepath.Join(o.settings.DownloadPath, sanitizeFilename(gameName))
}

// dispatch promotes queued downloads into workers while slots are free.
func (o *Orchestrator) dispatch() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.queue) > 0 && o.runningLocked() < o.settings.MaxConcurrentDownloads {
		id := o.queue[0]
		o.queue = o.queue[1:]

		entry, ok := o.active[id]
		if !ok {
			// cancelled while queued
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		entry.queued = false
		entry.cancel = cancel

		now := time.Now()
		entry.dl.Status = models.DownloadStatusDownloading
		entry.dl.StartedAt = &now

		o.workers.Add(1)
		go o.run(ctx, id)

		o.emit(Event{Type: EventStarted, Download: entry.dl.Clone()})
	}

	o.updateGauges()
}

func (o *Orchestrator) runningLocked() int {
	n := 0
	for _, entry := range o.active {
		if !entry.queued {
			n++
		}
	}
	return n
}

// run executes one download to a terminal state, retrying on the same slot
// with a fixed delay between attempts.
func (o *Orchestrator) run(ctx context.Context, id string) {
	defer o.workers.Done()

	o.mu.Lock()
	entry, ok := o.active[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	sourceURL := entry.dl.SourceURL
	destDir := entry.dl.DestinationFolder
	fallback := entry.dl.Filename
	settings := o.settings
	o.mu.Unlock()

	var written int64
	err := retry.Do(
		func() error {
			n, filename, err := o.transfer(ctx, sourceURL, destDir, fallback, func(p models.DownloadProgress) {
				o.progress(id, p)
			})
			if err != nil {
				return err
			}
			written = n
			o.mu.Lock()
			if e, ok := o.active[id]; ok {
				e.dl.Filename = filename
			}
			o.mu.Unlock()
			return nil
		},
		retry.Attempts(uint(settings.MaxRetries)+1),
		retry.Delay(settings.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			var de *DownloadError
			if errors.As(err, &de) && de.Permanent() {
				return false
			}
			return ctx.Err() == nil
		}),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Str("download", id).Uint("attempt", n+1).Err(err).Msg("Download attempt failed, retrying")
		}),
	)

	switch {
	case ctx.Err() != nil:
		o.finish(id, models.DownloadStatusCancelled, "", written)
	case err != nil:
		o.finish(id, models.DownloadStatusFailed, err.Error(), written)
	default:
		o.finish(id, models.DownloadStatusCompleted, "", written)
	}
}

func (o *Orchestrator) progress(id string, p models.DownloadProgress) {
	o.mu.Lock()
	entry, ok := o.active[id]
	if !ok {
		o.mu.Unlock()
		return
	}
	entry.dl.Progress = p
	snapshot := entry.dl.Clone()
	o.mu.Unlock()

	o.emit(Event{Type: EventProgress, Download: snapshot})
}

// finish moves a download to its terminal state, records it in history and
// frees the slot.
func (o *Orchestrator) finish(id string, status models.DownloadStatus, errMsg string, written int64) {
	o.mu.Lock()
	entry, ok := o.active[id]
	if !ok {
		o.mu.Unlock()
		return
	}

	now := time.Now()
	entry.dl.Status = status
	entry.dl.Error = errMsg
	entry.dl.FinishedAt = &now
	if status == models.DownloadStatusCompleted {
		entry.dl.Progress.DownloadedBytes = written
		if entry.dl.Progress.TotalBytes > 0 {
			entry.dl.Progress.Percentage = 100
		}
	}

	snapshot := entry.dl.Clone()
	if entry.cancel != nil {
		entry.cancel()
	}
	delete(o.active, id)
	o.history = append(o.history, snapshot)
	if len(o.history) > historyCap {
		o.history = o.history[len(o.history)-historyCap:]
	}
	o.mu.Unlock()

	switch status {
	case models.DownloadStatusCompleted:
		o.metrics.DownloadCompleted(written)
		log.Info().Str("download", id).Str("game", snapshot.GameName).Int64("bytes", written).Msg("Download completed")
	case models.DownloadStatusFailed:
		o.metrics.DownloadFailed()
		log.Error().Str("download", id).Str("error", errMsg).Msg("Download failed")
	case models.DownloadStatusCancelled:
		o.metrics.DownloadCancelled()
		log.Info().Str("download", id).Msg("Download cancelled")
	}

	o.emit(Event{Type: eventFor(status), Download: snapshot})
	o.dispatch()
}

func eventFor(status models.DownloadStatus) EventType {
	switch status {
	case models.DownloadStatusCompleted:
		return EventCompleted
	case models.DownloadStatusCancelled:
		return EventCancelled
	default:
		return EventFailed
	}
}

// Cancel stops an active transfer or removes a queued download. Terminal
// downloads cannot be cancelled.
func (o *Orchestrator) Cancel(id string) error {
	o.mu.Lock()
	entry, ok := o.active[id]
	if !ok {
		o.mu.Unlock()
		return ErrDownloadNotFound
	}

	if entry.queued {
		now := time.Now()
		entry.dl.Status = models.DownloadStatusCancelled
		entry.dl.FinishedAt = &now
		snapshot := entry.dl.Clone()
		delete(o.active, id)
		o.history = append(o.history, snapshot)
		o.mu.Unlock()

		o.metrics.DownloadCancelled()
		o.emit(Event{Type: EventCancelled, Download: snapshot})
		o.dispatch()
		return nil
	}

	cancel := entry.cancel
	o.mu.Unlock()
	// The worker observes the context, cleans up the partial file and
	// finishes as cancelled.
	cancel()
	return nil
}

// Get returns one download by id, checking active and history.
func (o *Orchestrator) Get(id string) (models.DDLDownload, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if entry, ok := o.active[id]; ok {
		return entry.dl.Clone(), nil
	}
	for i := range o.history {
		if o.history[i].ID == id {
			return o.history[i].Clone(), nil
		}
	}
	return models.DDLDownload{}, ErrDownloadNotFound
}

// List returns all known downloads: active and queued first in creation
// order, then terminal history newest first.
func (o *Orchestrator) List() []models.DDLDownload {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.DDLDownload, 0, len(o.active)+len(o.history))
	for _, entry := range o.active {
		out = append(out, entry.dl.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	for i := len(o.history) - 1; i >= 0; i-- {
		out = append(out, o.history[i].Clone())
	}
	return out
}

// ActiveCount reports downloads currently transferring.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.runningLocked()
}

// QueuedCount reports downloads waiting for a slot.
func (o *Orchestrator) QueuedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for _, entry := range o.active {
		if entry.queued {
			n++
		}
	}
	return n
}

// Shutdown finishes queued downloads as cancelled, cancels every transfer
// and waits for workers to drain or ctx to expire.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var cancelled []models.DDLDownload

	o.mu.Lock()
	o.closed = true
	o.queue = nil
	for id, entry := range o.active {
		if entry.queued {
			// no worker owns a queued entry, terminate it here
			now := time.Now()
			entry.dl.Status = models.DownloadStatusCancelled
			entry.dl.FinishedAt = &now
			snapshot := entry.dl.Clone()
			delete(o.active, id)
			o.history = append(o.history, snapshot)
			cancelled = append(cancelled, snapshot)
			continue
		}
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	if len(o.history) > historyCap {
		o.history = o.history[len(o.history)-historyCap:]
	}
	o.mu.Unlock()

	for _, snapshot := range cancelled {
		o.metrics.DownloadCancelled()
		o.emit(Event{Type: EventCancelled, Download: snapshot})
	}

	done := make(chan struct{})
	go func() {
		o.workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) emit(e Event) {
	select {
	case o.events <- e:
	default:
		log.Debug().Str("type", string(e.Type)).Msg("Dropping download event, no consumer")
	}
}

func (o *Orchestrator) updateGauges() {
	active := 0
	queued := 0
	for _, entry := range o.active {
		if entry.queued {
			queued++
		} else {
			active++
		}
	}
	o.metrics.SetActiveDownloads(active)
	o.metrics.SetQueuedDownloads(queued)
}

func newDownloadID() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
