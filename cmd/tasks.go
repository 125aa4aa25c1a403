package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/tabular"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage the maintenance task catalogue",
}

var tasksFile string

var tasksLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load or update the task catalogue from a .csv or .xlsx table",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := tabular.ReadFile(tasksFile, tabular.Options{SkipRows: 1})
		if err != nil {
			return err
		}
		tasks, err := parseTaskRows(rows)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.UpsertTasks(cmd.Context(), tasks)
		if err != nil {
			return err
		}
		log.Info("task catalogue loaded", zap.String("file", tasksFile), zap.Int("tasks", n))
		return nil
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the task catalogue",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tasks, err := st.ListTasks(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	},
}

// parseTaskRows maps table rows (task_id, category, tag_name, service_limit,
// service_interval_days, unit, duration_hours) to task configs. Empty limit
// and interval cells stay nil; a row with neither is rejected up front so a
// bad catalogue never reaches the store.
func parseTaskRows(rows [][]string) ([]model.TaskConfig, error) {
	var tasks []model.TaskConfig
	for i, row := range rows {
		if len(row) < 7 {
			return nil, eris.Errorf("task row %d has %d columns, want 7", i+1, len(row))
		}

		t := model.TaskConfig{
			TaskID:   strings.TrimSpace(row[0]),
			Category: strings.TrimSpace(row[1]),
			TagName:  strings.TrimSpace(row[2]),
			Unit:     strings.TrimSpace(row[5]),
		}
		if t.TaskID == "" {
			return nil, eris.Errorf("task row %d has no task_id", i+1)
		}

		if cell := strings.TrimSpace(row[3]); cell != "" {
			limit, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "task %s: bad service_limit %q", t.TaskID, cell)
			}
			t.ServiceLimit = &limit
		}
		if cell := strings.TrimSpace(row[4]); cell != "" {
			days, err := strconv.Atoi(cell)
			if err != nil {
				return nil, eris.Wrapf(err, "task %s: bad service_interval_days %q", t.TaskID, cell)
			}
			t.ServiceIntervalDays = &days
		}
		if cell := strings.TrimSpace(row[6]); cell != "" {
			hours, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "task %s: bad duration_hours %q", t.TaskID, cell)
			}
			t.DurationHours = hours
		}

		if t.Kind() == model.TaskInvalid {
			return nil, eris.Errorf("task %s has neither a usage limit nor a calendar interval", t.TaskID)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func init() {
	tasksLoadCmd.Flags().StringVar(&tasksFile, "file", "", "task table (.csv or .xlsx)")
	tasksLoadCmd.MarkFlagRequired("file") //nolint:errcheck
	tasksCmd.AddCommand(tasksLoadCmd, tasksListCmd)
	rootCmd.AddCommand(tasksCmd)
}
