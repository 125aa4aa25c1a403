package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("crane")
	require.NoError(t, err)
	assert.Equal(t, EntityCrane, et)
	assert.False(t, et.Composite())

	et, err = ParseEntityType("spreader")
	require.NoError(t, err)
	assert.Equal(t, EntitySpreader, et)
	assert.True(t, et.Composite())

	_, err = ParseEntityType("forklift")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown entity type")
}

func f64(v float64) *float64 { return &v }
func days(n int) *int        { return &n }

func TestTaskConfig_Kind(t *testing.T) {
	tests := []struct {
		name string
		cfg  TaskConfig
		want TaskKind
	}{
		{"usage only", TaskConfig{TagName: "Hoist cycles", ServiceLimit: f64(100000)}, TaskUsage},
		{"calendar only", TaskConfig{ServiceIntervalDays: days(365)}, TaskCalendar},
		{"both", TaskConfig{TagName: "Hoist cycles", ServiceLimit: f64(100000), ServiceIntervalDays: days(365)}, TaskBoth},
		{"neither", TaskConfig{Category: "inspection"}, TaskInvalid},
		{"zero limit is not usage", TaskConfig{TagName: "Hoist cycles", ServiceLimit: f64(0)}, TaskInvalid},
		{"tag without limit is not usage", TaskConfig{TagName: "Hoist cycles"}, TaskInvalid},
		{"zero interval is not calendar", TaskConfig{ServiceIntervalDays: days(0)}, TaskInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Kind())
		})
	}
}

func TestPrediction_OK(t *testing.T) {
	assert.True(t, Prediction{}.OK())
	assert.False(t, Prediction{Err: ErrUnknownTask}.OK())
}
