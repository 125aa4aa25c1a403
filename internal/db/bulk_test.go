package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkInsertIgnore_EmptyRows(t *testing.T) {
	n, err := BulkInsertIgnore(nil, nil, InsertIgnoreConfig{
		Table:        "metric_samples",
		Columns:      []string{"entity_id", "metric_name", "ts"},
		ConflictKeys: []string{"entity_id", "metric_name", "ts"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkInsertIgnore_NoColumns(t *testing.T) {
	_, err := BulkInsertIgnore(nil, nil, InsertIgnoreConfig{
		Table:        "metric_samples",
		ConflictKeys: []string{"entity_id"},
	}, [][]any{{"RMG01"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkInsertIgnore_NoConflictKeys(t *testing.T) {
	_, err := BulkInsertIgnore(nil, nil, InsertIgnoreConfig{
		Table:   "metric_samples",
		Columns: []string{"entity_id"},
	}, [][]any{{"RMG01"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"metric_samples", `"metric_samples"`},
		{"telemetry.metric_samples", `"telemetry"."metric_samples"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"entity_id", "metric_name", "ts"})
	assert.Equal(t, `"entity_id", "metric_name", "ts"`, result)
}
