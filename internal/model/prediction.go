package model

import "time"

// Prediction error codes. A prediction never raises; callers distinguish
// success from failure solely by inspecting Err.
const (
	ErrUnknownTask       = "unknown_task"
	ErrInvalidTaskConfig = "invalid_task_config"
	ErrUnknownEntityType = "unknown_entity_type"
	ErrNoServiceHistory  = "no_service_history"
	ErrNoAssignments     = "no_assignments"
	ErrNoTelemetry       = "no_telemetry"
	ErrCannotExtrapolate = "cannot_extrapolate"
	ErrStorage           = "storage_error"
)

// Prediction is the engine's output for one (entity, type, task) query.
type Prediction struct {
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	TaskID     string     `json:"task_id"`

	PredictedDate *time.Time `json:"predicted_date"`
	DaysRemaining *float64   `json:"days_remaining"`
	// CurrentValue is the usage accrued since the baseline that the forecast
	// was computed from; 0 for pure calendar tasks.
	CurrentValue float64 `json:"current_value"`

	// Err is empty on success, otherwise one of the error codes above,
	// optionally followed by ": detail".
	Err string `json:"error,omitempty"`
}

// OK reports whether the prediction succeeded.
func (p Prediction) OK() bool { return p.Err == "" }
