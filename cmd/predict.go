package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/predict"
)

var (
	predictEntity string
	predictType   string
	predictTask   string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast when a maintenance task is next due",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		engine := predict.NewEngine(st, log)
		result := engine.Predict(cmd.Context(), predictEntity, model.EntityType(predictType), predictTask)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	predictCmd.Flags().StringVar(&predictEntity, "entity", "", "equipment id, e.g. RMG07 or a spreader id")
	predictCmd.Flags().StringVar(&predictType, "type", "crane", "entity type: crane or spreader")
	predictCmd.Flags().StringVar(&predictTask, "task", "", "task id from the task catalogue")
	predictCmd.MarkFlagRequired("entity") //nolint:errcheck
	predictCmd.MarkFlagRequired("task")   //nolint:errcheck
	rootCmd.AddCommand(predictCmd)
}
