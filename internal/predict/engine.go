// Package predict forecasts the next due date for a maintenance task from
// telemetry usage rates and service history.
package predict

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/store"
)

// hoursPerDay converts between durations and fractional calendar days.
const hoursPerDay = 24.0

// Engine computes due-date forecasts. It never returns a Go error from
// Predict; every failure mode is reported through the result's Err field so
// a bad task or a gap in telemetry cannot take down a caller iterating a
// whole fleet.
type Engine struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the time source; tests pin it for determinism.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine builds a prediction engine over the given store.
func NewEngine(st store.Store, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{store: st, log: log, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Predict forecasts when the task is next due for the entity. For usage
// tasks the entity's accrued usage since its last service is extrapolated
// against the task's limit; for calendar tasks the interval is added to the
// last service date; tasks carrying both report whichever forecast comes
// first.
func (e *Engine) Predict(ctx context.Context, entityID string, entityType model.EntityType, taskID string) model.Prediction {
	result := model.Prediction{EntityID: entityID, EntityType: entityType, TaskID: taskID}

	if _, err := model.ParseEntityType(string(entityType)); err != nil {
		return e.fail(result, model.ErrUnknownEntityType, string(entityType))
	}

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return e.storageFail(result, "load task", err)
	}
	if task == nil {
		return e.fail(result, model.ErrUnknownTask, taskID)
	}

	kind := task.Kind()
	if kind == model.TaskInvalid {
		return e.fail(result, model.ErrInvalidTaskConfig, taskID)
	}

	lastService, err := e.store.LastService(ctx, entityID, entityType, taskID)
	if err != nil {
		return e.storageFail(result, "load service history", err)
	}

	switch kind {
	case model.TaskCalendar:
		return e.calendarForecast(result, task, lastService)
	case model.TaskUsage:
		return e.usageForecast(ctx, result, task, lastService)
	default: // TaskBoth
		usage := e.usageForecast(ctx, result, task, lastService)
		calendar := e.calendarForecast(result, task, lastService)
		return earlierOf(usage, calendar)
	}
}

// calendarForecast is due a fixed number of days after the last service.
// Without a service record there is nothing to anchor on; guessing a start
// date would silently produce wrong schedules.
func (e *Engine) calendarForecast(result model.Prediction, task *model.TaskConfig, lastService *model.ServiceRecord) model.Prediction {
	if lastService == nil {
		return e.fail(result, model.ErrNoServiceHistory, result.TaskID)
	}

	predicted := lastService.ServiceDate.AddDate(0, 0, *task.ServiceIntervalDays)
	days := predicted.Sub(e.now()).Hours() / hoursPerDay

	result.PredictedDate = &predicted
	result.DaysRemaining = &days
	return result
}

// usageForecast extrapolates accrued usage against the task's limit. The
// baseline is the last service date, or the earliest sample across the
// entity's members when it has never been serviced.
func (e *Engine) usageForecast(ctx context.Context, result model.Prediction, task *model.TaskConfig, lastService *model.ServiceRecord) model.Prediction {
	members, pred, ok := e.resolveMembers(ctx, result)
	if !ok {
		return pred
	}

	var baseline time.Time
	if lastService != nil {
		baseline = lastService.ServiceDate
	} else {
		earliest, pred, ok := e.earliestSample(ctx, result, members, task.TagName)
		if !ok {
			return pred
		}
		baseline = earliest
	}

	usage, pred, ok := e.accruedUsage(ctx, result, members, task.TagName, baseline)
	if !ok {
		return pred
	}
	result.CurrentValue = usage

	now := e.now()
	elapsedDays := now.Sub(baseline).Hours() / hoursPerDay
	if elapsedDays <= 0 || usage <= 0 {
		return e.fail(result, model.ErrCannotExtrapolate,
			fmt.Sprintf("usage %.2f over %.2f days", usage, elapsedDays))
	}

	rate := usage / elapsedDays
	days := (*task.ServiceLimit - usage) / rate
	predicted := now.Add(time.Duration(days * hoursPerDay * float64(time.Hour)))

	result.PredictedDate = &predicted
	result.DaysRemaining = &days
	return result
}

// resolveMembers maps the entity to the set of cranes its usage accrues on:
// a crane reads its own telemetry, a spreader sums over its assignment set.
func (e *Engine) resolveMembers(ctx context.Context, result model.Prediction) ([]string, model.Prediction, bool) {
	if !result.EntityType.Composite() {
		return []string{result.EntityID}, result, true
	}

	members, err := e.store.Members(ctx, result.EntityID)
	if err != nil {
		return nil, e.storageFail(result, "load assignments", err), false
	}
	if len(members) == 0 {
		return nil, e.fail(result, model.ErrNoAssignments, result.EntityID), false
	}
	return members, result, true
}

// earliestSample finds the oldest sample timestamp across members, used as
// the baseline for a never-serviced entity.
func (e *Engine) earliestSample(ctx context.Context, result model.Prediction, members []string, metric string) (time.Time, model.Prediction, bool) {
	var earliest *time.Time
	for _, member := range members {
		pt, err := e.store.EarliestValue(ctx, member, metric)
		if err != nil {
			return time.Time{}, e.storageFail(result, "load earliest sample", err), false
		}
		if pt == nil {
			continue
		}
		if earliest == nil || pt.Timestamp.Before(*earliest) {
			ts := pt.Timestamp
			earliest = &ts
		}
	}
	if earliest == nil {
		return time.Time{}, e.fail(result, model.ErrNoTelemetry, metric), false
	}
	return *earliest, result, true
}

// accruedUsage sums each member's net metric increase since the baseline.
// A member with no sample at or before the baseline contributes its full
// observed history; a member with no samples at all contributes nothing.
func (e *Engine) accruedUsage(ctx context.Context, result model.Prediction, members []string, metric string, baseline time.Time) (float64, model.Prediction, bool) {
	total := 0.0
	for _, member := range members {
		latest, err := e.store.LatestValue(ctx, member, metric)
		if err != nil {
			return 0, e.storageFail(result, "load latest sample", err), false
		}
		if latest == nil {
			continue
		}

		base := 0.0
		basePt, err := e.store.ValueAtOrBefore(ctx, member, metric, baseline)
		if err != nil {
			return 0, e.storageFail(result, "load baseline sample", err), false
		}
		if basePt != nil {
			base = basePt.Value
		}

		total += latest.Value - base
	}
	return total, result, true
}

// earlierOf picks the forecast with the earlier predicted date. When one
// side failed, the other stands alone; when both failed, the usage failure
// is reported.
func earlierOf(usage, calendar model.Prediction) model.Prediction {
	switch {
	case usage.OK() && calendar.OK():
		if calendar.PredictedDate.Before(*usage.PredictedDate) {
			calendar.CurrentValue = usage.CurrentValue
			return calendar
		}
		return usage
	case usage.OK():
		return usage
	case calendar.OK():
		calendar.CurrentValue = usage.CurrentValue
		return calendar
	default:
		return usage
	}
}

func (e *Engine) fail(result model.Prediction, code, detail string) model.Prediction {
	if detail != "" {
		result.Err = code + ": " + detail
	} else {
		result.Err = code
	}
	return result
}

func (e *Engine) storageFail(result model.Prediction, operation string, err error) model.Prediction {
	e.log.Error("prediction storage failure",
		zap.String("entity_id", result.EntityID),
		zap.String("task_id", result.TaskID),
		zap.String("operation", operation),
		zap.Error(err),
	)
	return e.fail(result, model.ErrStorage, operation)
}
