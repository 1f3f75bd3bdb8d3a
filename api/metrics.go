package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName       = "taskboard-api/api"
	tasksSpanName    = "api.tasks.list"
	tasksEventName   = "tasks.list"
	tasksEventDomain = "taskboard"
	tasksRoute       = "/api/tasks"
)

// taskRequestMetrics collects per-request observability data for the task
// list route and emits it both as a structured log entry and as span
// attributes on an OpenTelemetry span.
type taskRequestMetrics struct {
	logger               *log.Logger
	span                 trace.Span
	start                time.Time
	fetchDuration        time.Duration
	encodeDuration       time.Duration
	statusFilterProvided bool
	tasksReturned        int
	errorStage           string
}

func newTaskRequestMetrics(ctx context.Context, logger *log.Logger) (*taskRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, tasksSpanName)
	m := &taskRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}
	return m, spanCtx
}

func (m *taskRequestMetrics) ObserveFetch(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.fetchDuration = duration
}

func (m *taskRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *taskRequestMetrics) SetStatusFilterProvided(provided bool) {
	m.statusFilterProvided = provided
}

func (m *taskRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *taskRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log finishes the span and writes one observability event covering the
// whole request.
func (m *taskRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	totalMs := durationToMillis(time.Since(m.start))
	severityText, severityNumber := severityForStatus(status, err)

	attrs := map[string]any{
		"http.route":                             tasksRoute,
		"http.status_code":                       status,
		"taskboard.tasks.total_ms":               totalMs,
		"taskboard.tasks.status_filter_provided": m.statusFilterProvided,
		"taskboard.tasks.tasks_returned":         m.tasksReturned,
	}
	if m.fetchDuration > 0 {
		attrs["taskboard.tasks.fetch_ms"] = durationToMillis(m.fetchDuration)
	}
	if m.encodeDuration > 0 {
		attrs["taskboard.tasks.encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		attrs["taskboard.tasks.error_stage"] = m.errorStage
	}
	if err != nil {
		attrs["error.message"] = err.Error()
	}

	if m.span != nil {
		spanAttrs := []attribute.KeyValue{
			attribute.String("http.route", tasksRoute),
			attribute.Int64("http.status_code", int64(status)),
			attribute.Float64("taskboard.tasks.total_ms", totalMs),
			attribute.Bool("taskboard.tasks.status_filter_provided", m.statusFilterProvided),
			attribute.Int("taskboard.tasks.tasks_returned", m.tasksReturned),
		}
		if m.errorStage != "" {
			spanAttrs = append(spanAttrs, attribute.String("taskboard.tasks.error_stage", m.errorStage))
		}
		m.span.SetAttributes(spanAttrs...)

		eventAttrs := []attribute.KeyValue{
			attribute.String("event.name", tasksEventName),
			attribute.String("event.domain", tasksEventDomain),
			attribute.String("severity_text", severityText),
			attribute.Int("severity_number", severityNumber),
			attribute.Float64("taskboard.tasks.total_ms", totalMs),
		}
		if err != nil {
			eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
		}
		if m.errorStage != "" {
			eventAttrs = append(eventAttrs, attribute.String("taskboard.tasks.error_stage", m.errorStage))
		}
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))

		if err != nil || status >= http.StatusInternalServerError {
			desc := "request failed"
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"event.name":      tasksEventName,
		"event.domain":    tasksEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attrs,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	entry := m.logger.WithFields(fields)
	switch {
	case severityNumber >= 17:
		entry.Error("observability.event")
	case severityNumber >= 13:
		entry.Warn("observability.event")
	default:
		entry.Info("observability.event")
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
