// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamarr/gamarr/internal/downloads"
	"github.com/gamarr/gamarr/internal/models"
)

type captured struct {
	title    string
	message  string
	priority string
}

func newCaptureServer(t *testing.T) (*httptest.Server, func() []captured) {
	t.Helper()
	var mu sync.Mutex
	var got []captured

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got = append(got, captured{
			title:    r.Header.Get("Title"),
			message:  string(body),
			priority: r.Header.Get("Priority"),
		})
		mu.Unlock()
	}))

	return srv, func() []captured {
		mu.Lock()
		defer mu.Unlock()
		return append([]captured{}, got...)
	}
}

func TestNtfyPublish(t *testing.T) {
	srv, messages := newCaptureServer(t)
	defer srv.Close()

	n := New(srv.URL+"/gamarr", time.Second)
	require.NoError(t, n.Publish(context.Background(), "Download complete", "Hollow Knight", "high"))

	got := messages()
	require.Len(t, got, 1)
	assert.Equal(t, "Download complete", got[0].title)
	assert.Equal(t, "Hollow Knight", got[0].message)
	assert.Equal(t, "high", got[0].priority)
}

func TestNtfyPublishError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(srv.URL, time.Second)
	err := n.Publish(context.Background(), "t", "m", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestEmptyTopicIsNoop(t *testing.T) {
	n := New("", time.Second)
	assert.NoError(t, n.Publish(context.Background(), "t", "m", ""))
}

func TestPumpForwardsLifecycleEvents(t *testing.T) {
	srv, messages := newCaptureServer(t)
	defer srv.Close()

	events := make(chan downloads.Event, 8)
	dl := models.DDLDownload{ID: "dl-1", GameName: "Hollow Knight", Source: "directrip"}

	events <- downloads.Event{Type: downloads.EventQueued, Download: dl}
	dl.Status = models.DownloadStatusCompleted
	dl.DestinationFolder = "/srv/games/Hollow Knight"
	events <- downloads.Event{Type: downloads.EventCompleted, Download: dl}
	close(events)

	Pump(context.Background(), events, New(srv.URL, time.Second))

	got := messages()
	require.Len(t, got, 2)
	assert.Equal(t, "Download queued", got[0].title)
	assert.Equal(t, "Download complete", got[1].title)
	assert.Contains(t, got[1].message, "/srv/games/Hollow Knight")
}

func TestPumpSamplesProgress(t *testing.T) {
	srv, messages := newCaptureServer(t)
	defer srv.Close()

	events := make(chan downloads.Event, 8)
	dl := models.DDLDownload{
		ID:       "dl-1",
		GameName: "Hollow Knight",
		Status:   models.DownloadStatusDownloading,
		Progress: models.DownloadProgress{DownloadedBytes: 1 << 20, TotalBytes: 1 << 30, Percentage: 0.1},
	}

	// Burst of progress events inside one sampling window.
	for i := 0; i < 5; i++ {
		events <- downloads.Event{Type: downloads.EventProgress, Download: dl}
	}
	close(events)

	Pump(context.Background(), events, New(srv.URL, time.Second))

	got := messages()
	require.Len(t, got, 1, "progress is sampled, not forwarded per event")
	assert.Equal(t, "Downloading", got[0].title)
}
