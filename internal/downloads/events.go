// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloads

import "github.com/gamarr/gamarr/internal/models"

// EventType identifies a download lifecycle transition.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event is one lifecycle notification. The Download field is a snapshot;
// consumers never see the orchestrator's mutable copy.
type Event struct {
	Type     EventType           `json:"type"`
	Download models.DDLDownload  `json:"download"`
}
