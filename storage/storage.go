package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskboard-api/domain"
)

// NotFoundError reports that no task with the given id exists.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %d not found", e.ID)
}

// TaskNotFound marks the error so the API boundary can map it to a 404.
func (e *NotFoundError) TaskNotFound() {}

type taskRecord struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Title       string     `gorm:"size:200;not null"`
	Description string     `gorm:"size:1000"`
	DueDate     time.Time  `gorm:"not null;index"`
	Status      int        `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

func (taskRecord) TableName() string {
	return "tasks"
}

func (r taskRecord) toDomain() domain.Task {
	return domain.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		Status:      domain.Status(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Storage persists tasks in a relational database.
type Storage struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to the database selected by driver ("sqlite" or "postgres")
// and runs migrations. An empty driver defaults to sqlite.
func Open(driver, dsn string) (*Storage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "taskboard.db"
		}
		dialector = sqlite.Open(dsn)
	case "postgres":
		if dsn == "" {
			return nil, errors.New("postgres driver requires DB_DSN")
		}
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and runs migrations.
func New(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("migrate tasks table: %w", err)
	}
	return &Storage{db: db, now: time.Now}, nil
}

// ListTasks retrieves all tasks in ascending due-date order, optionally
// restricted to a single status.
func (s *Storage) ListTasks(ctx context.Context, status *domain.Status) ([]domain.Task, error) {
	q := s.db.WithContext(ctx).Order("due_date asc")
	if status != nil {
		q = q.Where("status = ?", int(*status))
	}
	var recs []taskRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]domain.Task, len(recs))
	for i, r := range recs {
		tasks[i] = r.toDomain()
	}
	return tasks, nil
}

// GetTask retrieves a single task by id.
func (s *Storage) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	var rec taskRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Task{}, &NotFoundError{ID: id}
		}
		return domain.Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return rec.toDomain(), nil
}

// CreateTask inserts a new task. The store assigns the id and creation time;
// the update time stays unset until the first update.
func (s *Storage) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	rec := taskRecord{
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate,
		Status:      int(task.Status),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdateTask replaces the mutable fields of an existing task wholesale and
// refreshes its update time. Id and creation time are untouched.
func (s *Storage) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	var rec taskRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", task.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{ID: task.ID}
			}
			return err
		}
		now := s.now().UTC()
		rec.Title = task.Title
		rec.Description = task.Description
		rec.DueDate = task.DueDate
		rec.Status = int(task.Status)
		rec.UpdatedAt = &now
		return tx.Save(&rec).Error
	})
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return domain.Task{}, err
		}
		return domain.Task{}, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	return rec.toDomain(), nil
}

// DeleteTask removes a task permanently.
func (s *Storage) DeleteTask(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&taskRecord{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete task %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// TaskStatistics recomputes aggregate counts over the full collection on
// every call. A task counts as overdue when its due date precedes now and
// its status is not Completed; Cancelled tasks with past due dates are
// included.
func (s *Storage) TaskStatistics(ctx context.Context, now time.Time) (domain.Statistics, error) {
	var rows []struct {
		Status int
		Count  int
	}
	err := s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("count tasks by status: %w", err)
	}

	var stats domain.Statistics
	for _, row := range rows {
		stats.Total += row.Count
		switch domain.Status(row.Status) {
		case domain.StatusPending:
			stats.Pending = row.Count
		case domain.StatusInProgress:
			stats.InProgress = row.Count
		case domain.StatusCompleted:
			stats.Completed = row.Count
		case domain.StatusCancelled:
			stats.Cancelled = row.Count
		}
	}

	var overdue int64
	err = s.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("due_date < ? AND status <> ?", now, int(domain.StatusCompleted)).
		Count(&overdue).Error
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("count overdue tasks: %w", err)
	}
	stats.Overdue = int(overdue)
	return stats, nil
}

// Ping verifies database connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
