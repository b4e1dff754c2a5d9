package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/policy"
	"github.com/featureboard/backend/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newFeaturesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Manage feature requests",
	}
	cmd.AddCommand(newFeaturesResetCommand(opts))
	return cmd
}

func newFeaturesResetCommand(opts *rootOptions) *cobra.Command {
	var (
		actorEmail string
		confirmed  bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every feature request and vote",
		Long: `Delete every feature request, every vote and the stored attachments.

The operation is authorized against the configured admin policy as the
account named by --as, and only runs when --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to delete all feature requests without --yes")
			}

			return opts.withDB(func(cfg *config.Config, db *gorm.DB) error {
				ctx := cmd.Context()

				var actor models.User
				err := db.WithContext(ctx).First(&actor, "email = ?", strings.ToLower(strings.TrimSpace(actorEmail))).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("no user with e-mail %q", actorEmail)
				}
				if err != nil {
					return err
				}

				store, err := services.NewFileStore(cfg.Storage.AttachmentsDir)
				if err != nil {
					return err
				}
				queue := services.NewSyncQueue()
				queue.Handle(services.TaskTypeAttachmentPurge, services.PurgeAttachmentsHandler(store))
				defer queue.Close()

				features := services.NewFeatureService(db, policy.New(&cfg.Auth), queue, &cfg.Features)
				result, err := features.DeleteAll(ctx, services.IdentityOf(&actor))
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "deleted %d feature requests and %d votes\n", result.Features, result.Votes)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&actorEmail, "as", "", "e-mail of the admin performing the reset (required)")
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the deletion")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
