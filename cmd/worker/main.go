package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pelotonhq/peloton-backend/internal/cron"
	"github.com/pelotonhq/peloton-backend/internal/groups"
	"github.com/pelotonhq/peloton-backend/internal/notifications"
	"github.com/pelotonhq/peloton-backend/internal/participants"
	"github.com/pelotonhq/peloton-backend/internal/rides"
	"github.com/pelotonhq/peloton-backend/internal/roster"
	"github.com/pelotonhq/peloton-backend/internal/users"
	"github.com/pelotonhq/peloton-backend/pkg/config"
	"github.com/pelotonhq/peloton-backend/pkg/db"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
	"github.com/pelotonhq/peloton-backend/pkg/metrics"
	"github.com/pelotonhq/peloton-backend/pkg/migrate"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
	"github.com/pelotonhq/peloton-backend/pkg/outbox/idempotency"
	"github.com/pelotonhq/peloton-backend/pkg/pubsub"
	"github.com/pelotonhq/peloton-backend/pkg/redis"
)

const (
	lockKeyFormat        = "pl:cron-worker:lock:%s"
	processedMarkerTTL   = 24 * time.Hour
	initialLoadRetryWait = 5 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	ridesRepo := rides.NewRepository(dbClient.DB())
	participantsRepo := participants.NewRepository(dbClient.DB())
	usersRepo := users.NewRepository(dbClient.DB())
	notificationsRepo := notifications.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	groupsService, err := groups.NewService(groups.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create groups service", err)
		os.Exit(1)
	}
	ridesService, err := rides.NewService(dbClient, ridesRepo, participantsRepo, groupsService, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create rides service", err)
		os.Exit(1)
	}
	participantsService, err := participants.NewService(dbClient, participantsRepo, ridesRepo, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create participants service", err)
		os.Exit(1)
	}

	rosterStore, err := roster.NewStore(ridesRepo, participantsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create roster store", err)
		os.Exit(1)
	}
	feed, err := roster.NewPubSubFeed(pubsubClient.RosterSubscription(), logg, cfg.Roster.EventBuffer)
	if err != nil {
		logg.Error(context.Background(), "failed to create roster feed", err)
		os.Exit(1)
	}
	engine, err := roster.NewEngine(roster.EngineParams{
		Store:        rosterStore,
		RideService:  ridesService,
		Participants: participantsService,
		Feed:         feed,
		Logger:       logg,
		Config:       cfg.Roster,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create roster engine", err)
		os.Exit(1)
	}

	idempotencyManager, err := idempotency.NewManager(redisClient, processedMarkerTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}
	consumer, err := notifications.NewConsumer(notificationsRepo, usersRepo, ridesRepo, pubsubClient.NotificationSubscription(), idempotencyManager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications consumer", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	reminderJob, err := cron.NewRideReminderJob(ridesRepo, participantsRepo, notificationsRepo, logg, cfg.Reminder.Horizon)
	if err != nil {
		logg.Error(context.Background(), "failed to create reminder job", err)
		os.Exit(1)
	}
	registry := cron.NewRegistry()
	registry.Register(reminderJob)
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reminder.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting worker")

	// The engine keeps serving its last-known-good snapshot while the
	// initial load retries.
	if err := engine.LoadAll(ctx); err != nil {
		logg.Error(ctx, "initial roster load failed, will retry", err)
	}

	errCh := make(chan error, 4)
	go func() { errCh <- runNamed(ctx, logg, "roster-feed", feed.Run) }()
	go func() { errCh <- runNamed(ctx, logg, "roster-engine", engine.Run) }()
	go func() { errCh <- runNamed(ctx, logg, "notifications-consumer", consumer.Run) }()
	go func() { errCh <- runNamed(ctx, logg, "cron", cronService.Run) }()
	go retryInitialLoad(ctx, logg, engine)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func runNamed(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	logg.Info(logg.WithField(ctx, "component", name), "component started")
	err := fn(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(logg.WithField(ctx, "component", name), "component stopped", err)
	}
	return err
}

func retryInitialLoad(ctx context.Context, logg *logger.Logger, engine *roster.Engine) {
	for !engine.Loaded() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialLoadRetryWait):
		}
		if engine.Loaded() {
			return
		}
		if err := engine.LoadAll(ctx); err != nil {
			logg.Warn(logg.WithField(ctx, "component", "roster-engine"), "roster load retry failed")
			continue
		}
		return
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
