package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborside/cranetrack/internal/model"
)

var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the service history log",
}

var (
	svcEntity   string
	svcType     string
	svcTask     string
	svcDate     string
	svcValue    float64
	svcBy       string
	svcDuration float64
)

var serviceLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a completed service",
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := model.ParseEntityType(svcType)
		if err != nil {
			return err
		}
		date, err := time.Parse("2006-01-02", svcDate)
		if err != nil {
			return eris.Wrapf(err, "parse --date %q (want YYYY-MM-DD)", svcDate)
		}

		rec := model.ServiceRecord{
			EntityID:      svcEntity,
			EntityType:    entityType,
			TaskID:        svcTask,
			ServiceDate:   date,
			ServicedBy:    svcBy,
			DurationHours: svcDuration,
		}
		if cmd.Flags().Changed("value") {
			rec.ServicedAtValue = &svcValue
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		id, err := st.LogService(cmd.Context(), rec)
		if err != nil {
			return err
		}
		log.Info("service recorded",
			zap.String("id", id),
			zap.String("entity_id", svcEntity),
			zap.String("task_id", svcTask),
		)
		return nil
	},
}

var serviceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List service history for an entity and task",
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := model.ParseEntityType(svcType)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListServices(cmd.Context(), svcEntity, entityType, svcTask)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	},
}

var serviceDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a service record by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deleted, err := st.DeleteService(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !deleted {
			return eris.Errorf("no service record with id %s", args[0])
		}
		log.Info("service record deleted", zap.String("id", args[0]))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{serviceLogCmd, serviceListCmd} {
		c.Flags().StringVar(&svcEntity, "entity", "", "equipment id")
		c.Flags().StringVar(&svcType, "type", "crane", "entity type: crane or spreader")
		c.Flags().StringVar(&svcTask, "task", "", "task id")
		c.MarkFlagRequired("entity") //nolint:errcheck
		c.MarkFlagRequired("task")   //nolint:errcheck
	}
	serviceLogCmd.Flags().StringVar(&svcDate, "date", "", "service date, YYYY-MM-DD")
	serviceLogCmd.Flags().Float64Var(&svcValue, "value", 0, "metric reading at service time")
	serviceLogCmd.Flags().StringVar(&svcBy, "by", "", "who performed the service")
	serviceLogCmd.Flags().Float64Var(&svcDuration, "duration", 0, "service duration in hours")
	serviceLogCmd.MarkFlagRequired("date") //nolint:errcheck

	serviceCmd.AddCommand(serviceLogCmd, serviceListCmd, serviceDeleteCmd)
	rootCmd.AddCommand(serviceCmd)
}
