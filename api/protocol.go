package api

import (
	"time"

	"taskboard-api/domain"
)

const taskRequestMaxSize = 64 * 1024 // 64 KiB

// POST /api/tasks and PUT /api/tasks/:id request body. Pointer fields
// distinguish omitted values: a missing dueDate is a validation error, a
// missing status falls back to Pending.
type taskRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	DueDate     *time.Time     `json:"dueDate"`
	Status      *domain.Status `json:"status"`
}

func (r taskRequest) toTask() domain.Task {
	task := domain.Task{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.StatusPending,
	}
	if r.DueDate != nil {
		task.DueDate = *r.DueDate
	}
	if r.Status != nil {
		task.Status = *r.Status
	}
	return task
}

// Error body for 4xx/5xx responses.
type errorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}
