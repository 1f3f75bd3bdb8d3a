package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Status enumerates the lifecycle states of a task. The ordinal values are
// part of the wire contract and must not be reordered.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusCancelled
)

// Valid reports whether s is one of the defined status values.
func (s Status) Valid() bool {
	return s >= StatusPending && s <= StatusCancelled
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

const (
	// MaxTitleLength caps the title field.
	MaxTitleLength = 200
	// MaxDescriptionLength caps the description field.
	MaxDescriptionLength = 1000
)

// Task represents a single to-do item.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     time.Time  `json:"dueDate"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// Validate checks the field rules shared by create and update against the
// given reference time. It returns nil when every rule passes.
func (t Task) Validate(now time.Time) *ValidationError {
	var ve ValidationError

	if t.Title == "" {
		ve.add("title", "title is required")
	} else if utf8.RuneCountInString(t.Title) > MaxTitleLength {
		ve.add("title", fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		ve.add("description", fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength))
	}

	if t.DueDate.IsZero() {
		ve.add("dueDate", "dueDate is required")
	} else if !t.DueDate.After(now) {
		ve.add("dueDate", "dueDate must be in the future")
	}

	if !t.Status.Valid() {
		ve.add("status", "status must be one of Pending, InProgress, Completed, Cancelled")
	}

	if len(ve.Fields) == 0 {
		return nil
	}
	return &ve
}

// ValidationError aggregates per-field rule violations. A request either
// passes every rule or is rejected before any persistence happens.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %d field(s)", len(e.Fields))
}
