package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, logger *log.Logger) {
	e.GET("/api/tasks", listTasks(store, logger))
	e.GET("/api/tasks/statistics", taskStatistics(store, logger))
	e.GET("/api/tasks/:id", getTask(store, logger))
	e.POST("/api/tasks", createTask(store, logger))
	e.PUT("/api/tasks/:id", updateTask(store, logger))
	e.DELETE("/api/tasks/:id", deleteTask(store, logger))
	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	}
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var statusFilter *domain.Status
		if raw := c.QueryParam("status"); raw != "" {
			metrics.SetStatusFilterProvided(true)
			n, parseErr := strconv.Atoi(raw)
			if parseErr != nil || !domain.Status(n).Valid() {
				metrics.SetErrorStage("invalid_status_filter")
				err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid status filter"})
				return err
			}
			status := domain.Status(n)
			statusFilter = &status
		}

		fetchStart := time.Now()
		tasks, fetchErr := store.ListTasks(ctx, statusFilter)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			logger.WithError(fetchErr).Error("list tasks failed")
			err = c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, tasks)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := taskID(c)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
		}
		task, err := store.GetTask(c.Request().Context(), id)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func createTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := decodeTaskRequest(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		task := req.toTask()
		if ve := task.Validate(time.Now()); ve != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.Fields})
		}

		created, err := store.CreateTask(c.Request().Context(), task)
		if err != nil {
			return respondError(c, logger, err)
		}
		c.Response().Header().Set(echo.HeaderLocation, "/api/tasks/"+strconv.FormatInt(created.ID, 10))
		return c.JSON(http.StatusCreated, created)
	}
}

func updateTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := taskID(c)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
		}
		req, err := decodeTaskRequest(c)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}

		// The not-found check runs before validation: updating a missing id
		// is 404 no matter what the payload contains.
		if _, err := store.GetTask(c.Request().Context(), id); err != nil {
			return respondError(c, logger, err)
		}

		task := req.toTask()
		task.ID = id
		if ve := task.Validate(time.Now()); ve != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.Fields})
		}

		updated, err := store.UpdateTask(c.Request().Context(), task)
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := taskID(c)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "task not found"})
		}
		if err := store.DeleteTask(c.Request().Context(), id); err != nil {
			return respondError(c, logger, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func taskStatistics(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats, err := store.TaskStatistics(c.Request().Context(), time.Now())
		if err != nil {
			return respondError(c, logger, err)
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func taskID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func decodeTaskRequest(c echo.Context) (taskRequest, error) {
	lr := io.LimitReader(c.Request().Body, taskRequestMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()

	var req taskRequest
	if err := dec.Decode(&req); err != nil {
		return taskRequest{}, err
	}
	return req, nil
}

func respondError(c echo.Context, logger *log.Logger, err error) error {
	var notFound TaskNotFoundError
	var invalid *domain.ValidationError
	switch {
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: notFound.Error()})
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: invalid.Fields})
	default:
		logger.WithError(err).WithField("path", c.Request().URL.Path).Error("request failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
