package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/usecase"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll --user <id> <image-url>...",
	Short: "Enroll the face of every image under a user",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	enrollCmd.Flags().Int64("user", 0, "Identifier of the user being enrolled")
	_ = enrollCmd.MarkFlagRequired("user")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	userID, _ := cmd.Flags().GetInt64("user")
	if userID <= 0 {
		return fmt.Errorf("--user must be a positive identifier, got %d", userID)
	}

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

	pipeline, embedder, _ := newFaceStack(cfg, logger)
	uc := usecase.NewEnrollmentUseCase(pipeline, embedder, repo, logger)

	enrolled, err := uc.Enroll(cmd.Context(), userID, args)
	if err != nil {
		return err
	}
	for _, e := range enrolled {
		logger.Info("enrolled face", zap.Int64("user_id", e.UserID), zap.Uint("enrollment_id", e.ID))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enrolled %d image(s) for user %d\n", len(enrolled), userID)
	return nil
}
