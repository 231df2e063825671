package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the embeddings table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		repo, closeDB, err := openRepository(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()

		summary, err := repo.Summarize(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("embeddings table is up to date",
			zap.Int64("total_enrollments", summary.TotalEnrollments),
			zap.Int64("distinct_users", summary.DistinctUsers),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
