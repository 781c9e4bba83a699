package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Renal37/wa-orderbot/internal/broker"
	router "github.com/Renal37/wa-orderbot/internal/http"
	"github.com/Renal37/wa-orderbot/internal/logger"
	"github.com/Renal37/wa-orderbot/internal/metrics"
	"github.com/Renal37/wa-orderbot/internal/middlewares"
	"github.com/Renal37/wa-orderbot/internal/models"
	"github.com/Renal37/wa-orderbot/internal/services"
	"github.com/Renal37/wa-orderbot/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the webhook and admin server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), NewConfig(v))
		},
	}
}

func seedMenu(ctx context.Context, menu *services.MenuService, path string) error {
	if path == "" {
		return nil
	}

	items, err := models.LoadMenu(path)
	if err != nil {
		return err
	}
	return menu.SeedMenu(ctx, items)
}

func serve(parent context.Context, config Config) error {
	db, err := setup(parent, config)
	if err != nil {
		return err
	}
	defer db.Close()

	if config.generatedSecret {
		logger.Log.Warn("AUTH_SECRET_KEY has to be defined for production environment")
	}

	if err := db.RunMigrations(); err != nil {
		return fmt.Errorf("migrations weren't run due to %w", err)
	}

	metrics.Register()

	menuService := services.NewMenuService(db, config.menuCacheTTL)
	if err := seedMenu(parent, menuService, config.menuFile); err != nil {
		return fmt.Errorf("menu wasn't seeded due to %w", err)
	}

	publisher, err := broker.Connect(config.amqpURL)
	if err != nil {
		return fmt.Errorf("broker wasn't connected due to %w", err)
	}
	defer publisher.Close()

	ctx := utils.HandleTerminationProcess(parent, nil)

	jobQueueService := services.NewJobQueueService(ctx, config.queueCapacity, config.workers)
	defer jobQueueService.Shutdown()

	customerService := services.NewCustomerService(db)
	orderService := services.NewOrderService(db, publisher)
	billingService := services.NewBillingService(db, publisher)

	var messageLog services.MessageLogStorage
	if config.enableMessageLogging {
		messageLog = db
	}

	ingestService := services.NewIngestService(
		services.NewIdempotencyGuard(db),
		customerService,
		services.NewRateLimiter(db, config.rateLimitRequests, config.rateLimitWindow),
		orderService,
		jobQueueService,
		messageLog,
	)

	services.NewRetentionService(db, billingService, jobQueueService, config.retention).Start(ctx)

	server := router.New(router.Config{Endpoint: config.endpoint}, middlewares.Services{
		JWT:      services.NewJWTService(config.authSecretKey, services.DefaultAdminTokenTTL),
		Ingest:   ingestService,
		Orders:   orderService,
		Billing:  billingService,
		Customer: customerService,
		Menu:     menuService,
		Health:   db,
	}).Server()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Info("running server", zap.String("address", config.endpoint))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Log.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
