package model

import "time"

// ServiceRecord is a completed maintenance action. Full history is retained;
// the record with the latest ServiceDate is authoritative for "last service"
// queries. Records are only ever deleted individually by id as an
// administrative correction.
type ServiceRecord struct {
	ID              string     `json:"id"`
	EntityID        string     `json:"entity_id"`
	EntityType      EntityType `json:"entity_type"`
	TaskID          string     `json:"task_id"`
	ServiceDate     time.Time  `json:"service_date"`
	ServicedAtValue *float64   `json:"serviced_at_value,omitempty"`
	ServicedBy      string     `json:"serviced_by"`
	DurationHours   float64    `json:"duration_hours"`
}
