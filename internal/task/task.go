package task

import (
	"fmt"
	"time"
)

// Priority is an Eisenhower-Matrix quadrant.
type Priority string

const (
	PriorityDoNow    Priority = "P0" // urgent + important
	PrioritySchedule Priority = "P1" // not urgent + important
	PriorityDelegate Priority = "P2" // urgent + not important
	PriorityArchive  Priority = "P3" // not urgent + not important
)

// Priorities lists the buckets in display order.
var Priorities = []Priority{PriorityDoNow, PrioritySchedule, PriorityDelegate, PriorityArchive}

// ParsePriority validates a priority value coming from external data
// (oracle output, stored rows).
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityDoNow, PrioritySchedule, PriorityDelegate, PriorityArchive:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Rank orders buckets for sorting. Unrecognized buckets sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityDoNow:
		return 0
	case PrioritySchedule:
		return 1
	case PriorityDelegate:
		return 2
	case PriorityArchive:
		return 3
	}
	return 4
}

func (p Priority) Label() string {
	switch p {
	case PriorityDoNow:
		return "🔴 DO NOW"
	case PrioritySchedule:
		return "🟡 SCHEDULE"
	case PriorityDelegate:
		return "🔵 DELEGATE"
	case PriorityArchive:
		return "⚪ ARCHIVE/FYI"
	}
	return string(p)
}

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelegated  Status = "delegated"
	StatusArchived   Status = "archived"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusDelegated, StatusArchived:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Task is one actionable item derived from an email message.
//
// DeadlineText is the original phrase from the email and Deadline the parsed
// timestamp; they are independent sources of truth and are never reconciled.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SourceEmailID   string     `json:"source_email_id"`
	SourceSubject   string     `json:"source_subject"`
	Sender          string     `json:"sender"`
	SenderName      string     `json:"sender_name"`
	Assignee        string     `json:"assignee,omitempty"`
	Deadline        *time.Time `json:"deadline"`
	DeadlineText    string     `json:"deadline_text,omitempty"`
	Priority        Priority   `json:"priority"`
	UrgencyScore    float64    `json:"urgency_score"`
	ImportanceScore float64    `json:"importance_score"`
	Confidence      float64    `json:"confidence"`
	Status          Status     `json:"status"`
	Tags            []string   `json:"tags"`
	Dependencies    []string   `json:"dependencies"`
	CreatedAt       time.Time  `json:"created_at"`
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-ish timestamps produced by the oracle and
// stored in the database. Returns false when the value is unparsable.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
