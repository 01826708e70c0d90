// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import "time"

// DownloadStatus is the lifecycle state of a direct download.
type DownloadStatus string

const (
	DownloadStatusPending     DownloadStatus = "pending"
	DownloadStatusDownloading DownloadStatus = "downloading"
	DownloadStatusCompleted   DownloadStatus = "completed"
	DownloadStatusFailed      DownloadStatus = "failed"
	DownloadStatusCancelled   DownloadStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s DownloadStatus) Terminal() bool {
	switch s {
	case DownloadStatusCompleted, DownloadStatusFailed, DownloadStatusCancelled:
		return true
	}
	return false
}

// DownloadProgress carries transfer progress for one download.
// TotalBytes is zero when the source did not send a content length.
type DownloadProgress struct {
	DownloadedBytes     int64   `json:"downloadedBytes"`
	TotalBytes          int64   `json:"totalBytes,omitempty"`
	Percentage          float64 `json:"percentage"`
	SpeedBytesPerSecond int64   `json:"speedBytesPerSecond,omitempty"`
	ETASeconds          int64   `json:"etaSeconds,omitempty"`
}

// DDLDownload is one direct download transfer owned by the orchestrator.
// Only the orchestrator's own worker mutates a download after creation.
type DDLDownload struct {
	ID                string           `json:"id"`
	IGDBID            int64            `json:"igdbId,omitempty"`
	GameName          string           `json:"gameName"`
	Source            string           `json:"source"`
	SourceURL         string           `json:"sourceUrl"`
	Filename          string           `json:"filename"`
	Status            DownloadStatus   `json:"status"`
	Progress          DownloadProgress `json:"progress"`
	DestinationFolder string           `json:"destinationFolder"`
	Error             string           `json:"error,omitempty"`
	CreatedAt         time.Time        `json:"createdAt"`
	StartedAt         *time.Time       `json:"startedAt,omitempty"`
	FinishedAt        *time.Time       `json:"finishedAt,omitempty"`
}

// Clone returns a copy safe to hand to callers outside the orchestrator.
func (d *DDLDownload) Clone() DDLDownload {
	copied := *d
	if d.StartedAt != nil {
		t := *d.StartedAt
		copied.StartedAt = &t
	}
	if d.FinishedAt != nil {
		t := *d.FinishedAt
		copied.FinishedAt = &t
	}
	return copied
}
