// Package events publishes entity change notifications for Crewboard.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of change an event describes.
type Type string

const (
	AgentCreated   Type = "agent.created"
	AgentUpdated   Type = "agent.updated"
	AgentDeleted   Type = "agent.deleted"
	TaskCreated    Type = "task.created"
	TaskUpdated    Type = "task.updated"
	TaskCompleted  Type = "task.completed"
	TaskDeleted    Type = "task.deleted"
	ProjectCreated Type = "project.created"
	ProjectUpdated Type = "project.updated"
	ProjectDeleted Type = "project.deleted"
)

// Event is the envelope for every published change.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	EntityID  string          `json:"entity_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an event with a fresh id and the current UTC time.
func New(eventType Type, entityID string, payload interface{}) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling payload: %w", err)
		}
		raw = b
	}

	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		EntityID:  entityID,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// ParsePayload unmarshals the event payload into T.
func ParsePayload[T any](ev *Event) (*T, error) {
	var result T
	if err := json.Unmarshal(ev.Payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshaling payload as %T: %w", result, err)
	}
	return &result, nil
}

// ValidateSubjectToken checks that a name is safe for use in NATS subjects.
// NATS treats '.', '*', and '>' as special characters in subjects.
func ValidateSubjectToken(name string) error {
	if name == "" {
		return fmt.Errorf("subject token must not be empty")
	}
	if strings.ContainsAny(name, ".*> \t\n\r") {
		return fmt.Errorf("subject token %q contains invalid NATS characters (.*> or whitespace)", name)
	}
	return nil
}

// Subject returns the NATS subject for an event type under prefix, e.g.
// "crewboard.task.completed".
func Subject(prefix string, eventType Type) (string, error) {
	if err := ValidateSubjectToken(prefix); err != nil {
		return "", fmt.Errorf("invalid subject prefix: %w", err)
	}
	parts := strings.Split(string(eventType), ".")
	for _, p := range parts {
		if err := ValidateSubjectToken(p); err != nil {
			return "", fmt.Errorf("invalid event type %q: %w", eventType, err)
		}
	}
	return prefix + "." + string(eventType), nil
}

// Wildcard returns the subject matching every event under prefix.
func Wildcard(prefix string) string {
	return prefix + ".>"
}
