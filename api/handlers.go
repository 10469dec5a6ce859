package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/domain"
)

const (
	routeTasks    = "/api/tasks"
	routeTask     = "/api/tasks/:id"
	routeSeed     = "/api/tasks/seed"
	healthTimeout = 2 * time.Second
)

// Register wires up all API routes on the provided Echo instance. auth may be
// nil, in which case the task routes are open. The stream route is only
// registered when broker is non-nil.
func Register(e *echo.Echo, store Storage, auth Authenticator, events *EventDispatcher, broker *Broker, logger *log.Logger) {
	g := e.Group("/api", DecodeRequestBody(taskBodyMaxSize))
	if auth != nil {
		g.Use(RequireAuth(auth))
	}
	g.GET("/tasks", listTasks(store, logger))
	g.POST("/tasks", createTask(store, events, logger))
	g.POST("/tasks/seed", seedTasks(store, events, logger))
	g.PUT("/tasks/:id", updateTask(store, events, logger))
	g.DELETE("/tasks/:id", deleteTask(store, events, logger))
	if broker != nil {
		g.GET("/tasks/stream", streamTasks(store, broker, logger))
	}

	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		}
		return c.NoContent(http.StatusOK)
	}
}

func startRequest(c echo.Context, logger *log.Logger, route, op string) (context.Context, *requestMetrics) {
	metrics, ctx := newRequestMetrics(c.Request().Context(), logger, route, op)
	c.SetRequest(c.Request().WithContext(ctx))
	return ctx, metrics
}

// storeFailure reports a store error to the caller with its raw message.
func storeFailure(c echo.Context, logger *log.Logger, metrics *requestMetrics, op string, err error) error {
	metrics.SetErrorStage("storage")
	metrics.SetCause(err)
	if logger != nil {
		logger.WithError(err).WithField("op", op).Error("task store failure")
	}
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

// decodeTaskInput reads an optional JSON object body. An empty body decodes
// to an empty input. The size cap comes from DecodeRequestBody.
func decodeTaskInput(c echo.Context) (domain.TaskInput, error) {
	var in domain.TaskInput
	body := c.Request().Body
	if body == nil {
		return in, nil
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return in, errBodyTooLarge
		}
		return in, errInvalidBody
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return in, nil
	}
	if err := sonic.ConfigStd.Unmarshal(raw, &in); err != nil {
		return domain.TaskInput{}, errInvalidBody
	}
	return in, nil
}

func invalidBody(c echo.Context, metrics *requestMetrics, err error) error {
	metrics.SetErrorStage("decode")
	metrics.SetCause(err)
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func listTasks(store Storage, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, metrics := startRequest(c, logger, routeTasks, "list")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		start := time.Now()
		tasks, storeErr := store.ListTasks(ctx)
		metrics.ObserveStore(time.Since(start))
		if storeErr != nil {
			return storeFailure(c, logger, metrics, "list", storeErr)
		}
		metrics.SetTasksReturned(len(tasks))
		return c.JSON(http.StatusOK, tasks)
	}
}

func createTask(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, metrics := startRequest(c, logger, routeTasks, "create")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		in, decodeErr := decodeTaskInput(c)
		if decodeErr != nil {
			return invalidBody(c, metrics, decodeErr)
		}

		start := time.Now()
		storeErr := store.UpsertTask(ctx, in.ID, in.Normalize())
		metrics.ObserveStore(time.Since(start))
		if storeErr != nil {
			return storeFailure(c, logger, metrics, "create", storeErr)
		}
		events.Dispatch(domain.EventTaskUpserted, in.TaskID(), 0)
		return c.JSON(http.StatusOK, createTaskResponse{Success: true, ID: in.TaskID()})
	}
}

// updateTask replaces the task named in the path. The body id, if any, is
// ignored and a missing row is not reported.
func updateTask(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, metrics := startRequest(c, logger, routeTask, "update")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id := c.Param("id")
		in, decodeErr := decodeTaskInput(c)
		if decodeErr != nil {
			return invalidBody(c, metrics, decodeErr)
		}

		start := time.Now()
		storeErr := store.UpdateTask(ctx, id, in.Normalize())
		metrics.ObserveStore(time.Since(start))
		if storeErr != nil {
			return storeFailure(c, logger, metrics, "update", storeErr)
		}
		events.Dispatch(domain.EventTaskUpdated, id, 0)
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

func deleteTask(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, metrics := startRequest(c, logger, routeTask, "delete")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id := c.Param("id")
		start := time.Now()
		storeErr := store.DeleteTask(ctx, id)
		metrics.ObserveStore(time.Since(start))
		if storeErr != nil {
			return storeFailure(c, logger, metrics, "delete", storeErr)
		}
		events.Dispatch(domain.EventTaskDeleted, id, 0)
		return c.JSON(http.StatusOK, successResponse{Success: true})
	}
}

// seedTasks reports the number of seeds attempted, not the number inserted.
func seedTasks(store Storage, events *EventDispatcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx, metrics := startRequest(c, logger, routeSeed, "seed")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		seeds := domain.SeedTasks()
		start := time.Now()
		inserted, storeErr := store.SeedTasks(ctx, seeds)
		metrics.ObserveStore(time.Since(start))
		if storeErr != nil {
			if logger != nil && inserted > 0 {
				logger.WithField("inserted", inserted).Warn("seed stopped after partial insert")
			}
			return storeFailure(c, logger, metrics, "seed", storeErr)
		}
		if logger != nil {
			logger.WithFields(log.Fields{"attempted": len(seeds), "inserted": inserted}).Info("tasks seeded")
		}
		events.Dispatch(domain.EventTasksSeeded, "", inserted)
		return c.JSON(http.StatusOK, seedResponse{Success: true, Count: len(seeds)})
	}
}
