package model

// TaskKind classifies how a maintenance task's due date is forecast.
type TaskKind string

const (
	// TaskUsage extrapolates from a cumulative usage metric against a limit.
	TaskUsage TaskKind = "usage"
	// TaskCalendar is due a fixed number of days after the last service.
	TaskCalendar TaskKind = "calendar"
	// TaskBoth carries a usage limit and a calendar interval; the earlier of
	// the two forecasts governs.
	TaskBoth TaskKind = "both"
	// TaskInvalid has neither a usable limit nor an interval and is rejected
	// at load time.
	TaskInvalid TaskKind = "invalid"
)

// TaskConfig is the static definition of a maintainable task, loaded from an
// external table and never mutated by the pipeline.
type TaskConfig struct {
	TaskID              string   `json:"task_id"`
	Category            string   `json:"category"`
	TagName             string   `json:"tag_name"`
	ServiceLimit        *float64 `json:"service_limit,omitempty"`
	ServiceIntervalDays *int     `json:"service_interval_days,omitempty"`
	Unit                string   `json:"unit"`
	DurationHours       float64  `json:"duration_hours"`
}

// Kind derives the forecast strategy from which fields are populated.
func (t TaskConfig) Kind() TaskKind {
	usage := t.TagName != "" && t.ServiceLimit != nil && *t.ServiceLimit > 0
	calendar := t.ServiceIntervalDays != nil && *t.ServiceIntervalDays > 0
	switch {
	case usage && calendar:
		return TaskBoth
	case usage:
		return TaskUsage
	case calendar:
		return TaskCalendar
	default:
		return TaskInvalid
	}
}
