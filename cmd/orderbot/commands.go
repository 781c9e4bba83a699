package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Renal37/wa-orderbot/internal/database"
	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/services"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// setup инициализирует логгер и подключается к базе данных
func setup(ctx context.Context, config Config) (*database.Database, error) {
	if err := logger.Initialize(config.logLevel, config.env); err != nil {
		return nil, fmt.Errorf("logger wasn't initialized due to %w", err)
	}

	db, err := database.New(ctx, config.dsn)
	if err != nil {
		return nil, fmt.Errorf("database wasn't initialized due to %w", err)
	}

	return db, nil
}

func migrateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := NewConfig(v)

			db, err := setup(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RunMigrations(); err != nil {
				return fmt.Errorf("migrations weren't run due to %w", err)
			}
			return nil
		},
	}
}

func sweepCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := NewConfig(v)

			db, err := setup(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer db.Close()

			billing := services.NewBillingService(db, nil)
			retention := services.NewRetentionService(db, billing, nil, config.retention)

			report, err := retention.Sweep(cmd.Context())
			logger.Log.Info("sweep finished",
				zap.Int64("processedMarkers", report.ProcessedMarkers),
				zap.Int64("rateLimitWindows", report.RateLimitWindows),
				zap.Int("expiredOrders", report.ExpiredOrders),
			)
			return err
		},
	}
}

func tokenCmd(v *viper.Viper) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token [subject]",
		Short: "Issue an admin bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := NewConfig(v)
			if config.generatedSecret {
				return fmt.Errorf("AUTH_SECRET_KEY has to be defined to issue tokens")
			}

			token, err := services.NewJWTService(config.authSecretKey, ttl).GenerateJWT(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", services.DefaultAdminTokenTTL, "token lifetime")

	return cmd
}
