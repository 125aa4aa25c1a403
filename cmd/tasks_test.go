package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborside/cranetrack/internal/model"
)

func TestParseTaskRows(t *testing.T) {
	rows := [][]string{
		{"5000", "crane", "TWISTLOCK COUNT", "50000", "", "locks", "4"},
		{"annual", "crane", "", "", "365", "", "8"},
		{"combo", "spreader", "HOIST HOURS", "2000", "180", "h", ""},
	}

	tasks, err := parseTaskRows(rows)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	assert.Equal(t, model.TaskUsage, tasks[0].Kind())
	require.NotNil(t, tasks[0].ServiceLimit)
	assert.Equal(t, 50000.0, *tasks[0].ServiceLimit)
	assert.Nil(t, tasks[0].ServiceIntervalDays)
	assert.Equal(t, 4.0, tasks[0].DurationHours)

	assert.Equal(t, model.TaskCalendar, tasks[1].Kind())
	require.NotNil(t, tasks[1].ServiceIntervalDays)
	assert.Equal(t, 365, *tasks[1].ServiceIntervalDays)

	assert.Equal(t, model.TaskBoth, tasks[2].Kind())
}

func TestParseTaskRowsRejectsBadRows(t *testing.T) {
	cases := [][][]string{
		{{"short", "row"}},
		{{"", "crane", "TAG", "100", "", "", ""}},             // no task id
		{{"t1", "crane", "TAG", "abc", "", "", ""}},           // bad limit
		{{"t2", "crane", "", "", "1.5", "", ""}},              // bad interval
		{{"t3", "crane", "", "", "", "", ""}},                 // neither limit nor interval
		{{"t4", "crane", "TAG", "100", "", "locks", "heavy"}}, // bad duration
	}
	for i, rows := range cases {
		_, err := parseTaskRows(rows)
		require.Error(t, err, "case %d", i)
	}
}
