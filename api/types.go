package api

import (
	"context"
	"time"

	"taskboard-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context, status *domain.Status) ([]domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	TaskStatistics(ctx context.Context, now time.Time) (domain.Statistics, error)
	Ping(ctx context.Context) error
}

// TaskNotFoundError is returned by storage when a referenced task id does
// not exist.
type TaskNotFoundError interface {
	error
	TaskNotFound()
}
