package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pelotonhq/peloton-backend/api/controllers"
	"github.com/pelotonhq/peloton-backend/api/middleware"
	"github.com/pelotonhq/peloton-backend/internal/auth"
	"github.com/pelotonhq/peloton-backend/internal/groups"
	"github.com/pelotonhq/peloton-backend/internal/notifications"
	"github.com/pelotonhq/peloton-backend/internal/participants"
	"github.com/pelotonhq/peloton-backend/internal/rides"
	"github.com/pelotonhq/peloton-backend/internal/users"
	"github.com/pelotonhq/peloton-backend/pkg/auth/session"
	"github.com/pelotonhq/peloton-backend/pkg/config"
	"github.com/pelotonhq/peloton-backend/pkg/logger"
	"github.com/pelotonhq/peloton-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps bundles everything the router needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            pinger
	Redis         *redis.Client
	PubSub        pinger
	Sessions      sessionManager
	Auth          auth.Service
	Users         users.Service
	Rides         rides.Service
	Participants  participants.Service
	Groups        groups.Service
	Notifications notifications.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis, deps.PubSub))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))

		r.Route("/rides", func(r chi.Router) {
			r.Get("/", controllers.ListRides(deps.Rides, logg))
			r.Post("/", controllers.CreateRide(deps.Rides, logg))
			r.Get("/{rideID}", controllers.GetRide(deps.Rides, logg))
			r.Patch("/{rideID}", controllers.UpdateRide(deps.Rides, logg))
			r.Delete("/{rideID}", controllers.DeleteRide(deps.Rides, logg))

			r.Post("/{rideID}/join", controllers.JoinRide(deps.Participants, logg))
			r.Delete("/{rideID}/leave", controllers.LeaveRide(deps.Participants, logg))
			r.Post("/{rideID}/status", controllers.SetParticipantStatus(deps.Participants, logg))
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/", controllers.GetProfile(deps.Users, logg))
			r.Put("/", controllers.UpdateProfile(deps.Users, logg))
			r.Put("/notification-prefs", controllers.UpdateNotificationPrefs(deps.Users, logg))
			r.Put("/push-subscription", controllers.SavePushSubscription(deps.Users, logg))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", controllers.ListGroups(deps.Groups, logg))
			r.Post("/", controllers.CreateGroup(deps.Groups, logg))
			r.Get("/mine", controllers.ListMyGroups(deps.Groups, logg))
			r.Post("/{groupID}/membership", controllers.JoinGroup(deps.Groups, logg))
			r.Delete("/{groupID}/membership", controllers.LeaveGroup(deps.Groups, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	return r
}
