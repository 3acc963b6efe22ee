package main

import (
	"context"
	"log/slog"

	"together/internal/config"
	"together/internal/database"
	"together/internal/schema"

	"github.com/spf13/cobra"
)

func newInitDBCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var linkPartners bool
	var noSeed bool

	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the collections and indexes and seed the demo accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateDatabase(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.InitTimeout)
			defer cancel()

			if err := database.Connect(ctx, cfg.MongoURI, cfg.DBName); err != nil {
				return err
			}
			defer database.Disconnect(context.Background())

			var opts []schema.Option
			if cfg.SeedUsers && !noSeed {
				hash, err := schema.SeedHash(cfg.SeedPassword)
				if err != nil {
					return err
				}
				opts = append(opts,
					schema.WithSeedUsers(schema.SeedUsers(hash)),
					schema.WithPartnerLinking(linkPartners),
				)
			}

			report, err := schema.New(schema.NewMongoStore(), logger, opts...).Run(ctx)
			if printErr := printJSON(report); printErr != nil {
				return printErr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&linkPartners, "link-partners", false, "Set partner_id on the seeded accounts")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Skip the demo accounts even if SEED_USERS is true")
	return cmd
}
