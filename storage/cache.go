package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"taskboard-api/domain"
)

type backend interface {
	ListTasks(ctx context.Context, status *domain.Status) ([]domain.Task, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	CreateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	TaskStatistics(ctx context.Context, now time.Time) (domain.Statistics, error)
	Ping(ctx context.Context) error
}

// Cache wraps a task store with Redis-backed caching for read operations.
// Every mutation evicts the affected keys. Statistics always hit the
// backing store so the counts stay freshly computed.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, status *domain.Status) ([]domain.Task, error) {
	key := listCacheKey(status)
	if tasks, ok := c.loadTasks(ctx, key); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, status)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, tasks)
	return tasks, nil
}

func (c *Cache) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	if task, ok := c.loadTask(ctx, taskCacheKey(id)); ok {
		return task, nil
	}

	task, err := c.base.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	c.store(ctx, taskCacheKey(id), task)
	return task, nil
}

func (c *Cache) CreateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	created, err := c.base.CreateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, created.ID)
	return created, nil
}

func (c *Cache) UpdateTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	updated, err := c.base.UpdateTask(ctx, task)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, task.ID)
	return updated, nil
}

func (c *Cache) DeleteTask(ctx context.Context, id int64) error {
	if err := c.base.DeleteTask(ctx, id); err != nil {
		return err
	}
	c.evict(ctx, id)
	return nil
}

// TaskStatistics is never cached.
func (c *Cache) TaskStatistics(ctx context.Context, now time.Time) (domain.Statistics, error) {
	return c.base.TaskStatistics(ctx, now)
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.base.Ping(ctx)
}

func (c *Cache) loadTasks(ctx context.Context, key string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing store without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := sonic.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) loadTask(ctx context.Context, key string) (domain.Task, bool) {
	if c.redis == nil {
		return domain.Task{}, false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return domain.Task{}, false
	}
	var task domain.Task
	if err := sonic.Unmarshal(data, &task); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return domain.Task{}, false
	}
	return task, true
}

func (c *Cache) store(ctx context.Context, key string, value any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(value)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, id int64) {
	if c.redis == nil {
		return
	}
	keys := []string{
		listCacheKey(nil),
		taskCacheKey(id),
	}
	for st := domain.StatusPending; st <= domain.StatusCancelled; st++ {
		s := st
		keys = append(keys, listCacheKey(&s))
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func listCacheKey(status *domain.Status) string {
	if status == nil {
		return "tasks:all"
	}
	return "tasks:status:" + strconv.Itoa(int(*status))
}

func taskCacheKey(id int64) string {
	return "task:" + strconv.FormatInt(id, 10)
}
