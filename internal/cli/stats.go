package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/helmcode/crewboard/internal/models"
	"github.com/helmcode/crewboard/internal/stats"
)

func newStatsCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the system overview as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(mustConfig(cmd))
			if err != nil {
				return err
			}
			defer models.Close(db)

			ov, err := stats.New(db).Overview(cmd.Context())
			if err != nil {
				return err
			}
			var out interface{} = ov
			if !detailed {
				out = ov.Summary
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().BoolVar(&detailed, "detailed", false, "Include the per-agent breakdown")
	return cmd
}
