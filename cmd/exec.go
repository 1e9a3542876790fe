package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"rifa/config"
	"rifa/internal/cache"
	"rifa/internal/handlers"
	"rifa/internal/notify"
	"rifa/internal/services"
	"rifa/internal/status"
	"rifa/internal/store"
	"rifa/security"
	"rifa/utils"
)

func Start() error {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	app := pocketbase.New()

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis, optional
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = utils.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	ticketStore, proofs, err := openStore(ctx, app, cfg)
	if err != nil {
		return err
	}

	responseCache := newCache(cfg, redisClient)
	loader := cache.NewLoader(responseCache)
	notifier := newNotifier(cfg)

	// Initialize services
	tickets := services.NewTicketService(ticketStore, proofs, loader, notifier, services.TicketConfig{
		ReservationTTL: cfg.ReservationTTL,
		MaxProofSize:   cfg.MaxProofSize,
		Price:          cfg.TicketPrice,
	})
	draws := services.NewDrawService(ticketStore, loader, notifier)

	var limiter *security.RateLimiter
	if redisClient != nil {
		limiter = security.NewRateLimiter(redisClient, cfg.ReserveRateLimit, time.Minute)
	}

	// Initialize handlers
	routes := handlers.Routes{
		Boletas: handlers.NewBoletaHandler(tickets),
		Admin:   handlers.NewAdminHandler(tickets, proofs),
		Sorteo:  handlers.NewSorteoHandler(draws),
		Health:  handlers.NewHealthHandler(ticketStore, redisClient),
		Guard:   security.NewAdminGuard(cfg.AdminSecretKey, cfg.AdminSecretHash),
		Limiter: limiter,
	}

	app.RootCmd.AddCommand(newSeedCommand(ticketStore, responseCache))

	// Persist lapsed reservation holds
	app.Cron().MustAdd("rifa_liberar_vencidas", cfg.ExpirySweepCron, func() {
		if _, err := tickets.ReleaseExpired(ctx); err != nil {
			slog.Error("Failed to release expired reservations", "error", err)
		}
	})

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		if err := ensureSeeded(ctx, ticketStore); err != nil {
			return err
		}

		routes.Register(e.Router)

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		slog.Info("Server routes registered", "environment", cfg.Environment, "store", cfg.StoreDriver, "cache", cfg.CacheDriver)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		if err := ticketStore.Close(context.Background()); err != nil {
			slog.Error("Failed to close store", "error", err)
		}
		return e.Next()
	})

	// Start server
	return app.Start()
}

func openStore(ctx context.Context, app *pocketbase.PocketBase, cfg *config.Config) (store.Store, *store.ProofStore, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		s, err := store.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return s, store.NewLocalProofStore(cfg.UploadDir), nil
	default:
		return store.NewPocketBaseStore(app), store.NewAppProofStore(app), nil
	}
}

func newCache(cfg *config.Config, redisClient *redis.Client) cache.Cache {
	if cfg.CacheDriver == config.CacheDriverRedis && redisClient != nil {
		return cache.NewRedis(redisClient, cfg.CacheTTL)
	}
	return cache.NewMemory(cfg.CacheTTL)
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if !cfg.PubNubEnabled() {
		slog.Info("PubNub keys not configured, realtime notifications disabled")
		return notify.Noop{}
	}

	return notify.NewPubNub(notify.Config{
		PublishKey:   cfg.PubNubPublishKey,
		SubscribeKey: cfg.PubNubSubscribeKey,
		SecretKey:    cfg.PubNubSecretKey,
		UserID:       cfg.PubNubUserID,
		Channel:      cfg.PubNubChannel,
	})
}

// ensureSeeded creates the schema and the ticket pool on first start.
func ensureSeeded(ctx context.Context, s store.Store) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	n, err := s.Seed(ctx, false)
	if errors.Is(err, status.ErrAlreadySeeded) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Seeded tickets", "count", n)
	return nil
}

func newSeedCommand(s store.Store, responseCache cache.Cache) *cobra.Command {
	var reset bool

	command := &cobra.Command{
		Use:   "seed",
		Short: "Create the 100 raffle tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if err := s.EnsureSchema(ctx); err != nil {
				return err
			}

			n, err := s.Seed(ctx, reset)
			if errors.Is(err, status.ErrAlreadySeeded) {
				fmt.Printf("Tickets already exist (%d), use --reset to recreate them\n", n)
				return nil
			}
			if err != nil {
				return err
			}

			responseCache.Clear(ctx)

			fmt.Printf("Created %d tickets\n", n)
			return nil
		},
	}
	command.Flags().BoolVar(&reset, "reset", false, "delete every ticket and the draw before seeding")

	return command
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")
	cancel()
}
