package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/stats"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and indexes, then print a table report",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(mustConfig(cmd))
			if err != nil {
				return err
			}
			defer models.Close(db)

			report, err := stats.New(db).PerformanceReport(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
