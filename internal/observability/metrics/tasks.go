// Package metrics centralizes the metric names and tag shapes emitted by the
// task and batch pipelines.
package metrics

import (
	"time"

	obserrors "github.com/punchd-io/punchd/internal/observability/errors"
	"github.com/punchd-io/punchd/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkip    = "skip"
)

// TaskMetric captures one task execution for metric emission.
type TaskMetric struct {
	TaskType string
	Source   string // scheduler or batch
	Result   string
	Duration time.Duration
	Err      error
}

// EmitTaskLifecycle emits standardized per-task metrics.
func EmitTaskLifecycle(sink statsd.Sink, in TaskMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"task_type": in.TaskType,
		"source":    in.Source,
		"result":    in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("task.executed", 1, tags)
	if in.Duration > 0 {
		sink.Timing("task.duration", in.Duration, cloneTags(tags))
	}
}

// BatchMetric captures one batch item outcome.
type BatchMetric struct {
	Result   string
	Attempts int
	Err      error
}

// EmitBatchItem emits per-item batch queue metrics.
func EmitBatchItem(sink statsd.Sink, in BatchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"result": in.Result}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("batch.item", 1, tags)
	if in.Attempts > 0 {
		sink.Gauge("batch.item_attempts", float64(in.Attempts), cloneTags(tags))
	}
}

func cloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
