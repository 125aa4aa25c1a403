package model

import "time"

// MetricSample is one normalized telemetry reading extracted from a crane log.
// The triple (EntityID, MetricName, Timestamp) is the natural key; re-ingesting
// the same file must not create duplicate rows.
type MetricSample struct {
	EntityID   string    `json:"entity_id"`
	MetricName string    `json:"metric_name"`
	Timestamp  time.Time `json:"timestamp"`
	RawValue   string    `json:"raw_value"`
	// ValueNum is the numeric interpretation of RawValue parsed at ingest
	// time, nil when the payload has no leading numeric token.
	ValueNum *float64 `json:"value_num,omitempty"`
}

// Point is a (timestamp, value) pair returned by time-series queries.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
