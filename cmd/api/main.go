package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pelotonhq/peloton-backend/api/routes"
	"github.com/pelotonhq/peloton-backend/internal/auth"
	"github.com/pelotonhq/peloton-backend/internal/groups"
	"github.com/pelotonhq/peloton-backend/internal/notifications"
	"github.com/pelotonhq/peloton-backend/internal/participants"
	"github.com/pelotonhq/peloton-backend/internal/rides"
	"github.com/pelotonhq/peloton-backend/internal/users"
	"github.com/pelotonhq/peloton-backend/pkg/auth/session"
	"github.com/pelotonhq/peloton-backend/pkg/config"
	"github.com/pelotonhq/peloton-backend/pkg/db"
	"github.com/pelotonhq/peloton-backend/pkg/env"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
	"github.com/pelotonhq/peloton-backend/pkg/migrate"
	"github.com/pelotonhq/peloton-backend/pkg/outbox"
	"github.com/pelotonhq/peloton-backend/pkg/pubsub"
	"github.com/pelotonhq/peloton-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	defer pubsubClient.Close()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		UserRepo:       users.NewRepository(dbClient.DB()),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	usersService, err := users.NewService(users.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	groupsService, err := groups.NewService(groups.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create groups service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ridesRepo := rides.NewRepository(dbClient.DB())
	participantsRepo := participants.NewRepository(dbClient.DB())

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

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			PubSub:        pubsubClient,
			Sessions:      sessionManager,
			Auth:          authService,
			Users:         usersService,
			Rides:         ridesService,
			Participants:  participantsService,
			Groups:        groupsService,
			Notifications: notificationsService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
