// Package events provides a small in-process event bus used to notify
// interested parties about scan lifecycle and library changes.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// Scan events
	EventScanStarted   EventType = "scan.started"
	EventScanProgress  EventType = "scan.progress"
	EventScanCompleted EventType = "scan.completed"
	EventScanFailed    EventType = "scan.failed"

	// Library events
	EventLibraryFileAdded   EventType = "library.file.added"
	EventLibraryFileRemoved EventType = "library.file.removed"

	// Storage events
	EventStorageDegraded EventType = "storage.degraded"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, title, message string) Event {
	return Event{
		Type:      eventType,
		Title:     title,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Handler receives published events. Handlers run on the bus dispatch
// goroutine and must not block.
type Handler func(event Event)
