package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Manage spreader-to-crane assignments",
	Long:  "A spreader accrues usage on every crane it has been mounted on; assignments map each spreader id to the set of crane ids its usage is summed over.",
}

var assignFile string

var assignLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace assignments from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(assignFile)
		if err != nil {
			return eris.Wrapf(err, "read assignments file %s", assignFile)
		}

		// spreader id -> crane ids
		var assignments map[string][]string
		if err := yaml.Unmarshal(data, &assignments); err != nil {
			return eris.Wrapf(err, "parse assignments file %s", assignFile)
		}
		if len(assignments) == 0 {
			return eris.Errorf("assignments file %s is empty", assignFile)
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		// Deterministic order so a partial failure is reproducible.
		composites := make([]string, 0, len(assignments))
		for id := range assignments {
			composites = append(composites, id)
		}
		sort.Strings(composites)

		for _, composite := range composites {
			members := assignments[composite]
			if len(members) == 0 {
				return eris.Errorf("spreader %s has no assigned cranes", composite)
			}
			if err := st.ReplaceAssignments(cmd.Context(), composite, members); err != nil {
				return err
			}
		}
		log.Info("assignments loaded", zap.String("file", assignFile), zap.Int("spreaders", len(composites)))
		return nil
	},
}

var assignListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		assignments, err := st.ListAssignments(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assignments)
	},
}

func init() {
	assignLoadCmd.Flags().StringVar(&assignFile, "file", "", "YAML file mapping spreader ids to crane ids")
	assignLoadCmd.MarkFlagRequired("file") //nolint:errcheck
	assignCmd.AddCommand(assignLoadCmd, assignListCmd)
	rootCmd.AddCommand(assignCmd)
}
