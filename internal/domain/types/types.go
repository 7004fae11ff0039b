// Package types contains common types used across the application
package types

import (
	"encoding/json"
	"time"
)

// EventType names a live update channel message kind.
type EventType string

// Message kinds carried on the portal WebSocket channel.
const (
	EventProjectUpdate  EventType = "project-update"
	EventTaskUpdate     EventType = "task-update"
	EventDocumentUpload EventType = "document-upload"
	EventCollaboration  EventType = "collaboration-update"
	EventHeartbeat      EventType = "heartbeat"
)

// Known reports whether the kind is one the client understands.
func (t EventType) Known() bool {
	switch t {
	case EventProjectUpdate, EventTaskUpdate, EventDocumentUpload, EventCollaboration, EventHeartbeat:
		return true
	default:
		return false
	}
}

// Message is one frame on the live update channel. Payload stays raw so each
// consumer decodes only the kinds it cares about.
type Message struct {
	Type      EventType       `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitzero"`
}

// Level classifies a notification.
type Level string

// Notification levels, mirroring the portal's toast severities.
const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-facing message published by client components.
type Notification struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}
