package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/airport-booking/api"
	"github.com/Domenick1991/airport-booking/config"
	"github.com/Domenick1991/airport-booking/internal/auth"
	"github.com/Domenick1991/airport-booking/internal/bootstrap"
	"github.com/Domenick1991/airport-booking/internal/cache"
	"github.com/Domenick1991/airport-booking/internal/kafka"
	"github.com/Domenick1991/airport-booking/internal/logger"
	"github.com/Domenick1991/airport-booking/internal/metrics"
	"github.com/Domenick1991/airport-booking/internal/repository"
	"github.com/Domenick1991/airport-booking/internal/service/booking"
	"github.com/Domenick1991/airport-booking/internal/service/flights"
	"github.com/Domenick1991/airport-booking/internal/service/users"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.Fatalf("load .env: %v", err)
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log)
	if cfg.Auth.JWTSecret == "" {
		log.Fatal("auth.jwt_secret (or JWT_SECRET) must be set")
	}
	loc, err := cfg.Booking.Location()
	if err != nil {
		log.Fatalf("booking timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	redisCache := cache.NewRedisCache(cfg.Redis, cfg.Booking.FlightsCacheDuration())
	defer redisCache.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer producer.Close()
	if err := producer.CheckConnection(ctx); err != nil {
		log.WithError(err).Warn("kafka unavailable, booking events will be dropped until it recovers")
	}

	metrics.Register()

	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())

	flightService := flights.NewFlightService(flightRepo, redisCache,
		flights.WithLocation(loc),
		flights.WithLogger(log),
	)
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		redisCache,
		producer,
		cfg.Kafka.BookingEventsTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithCancellationWindow(cfg.Booking.CancellationWindow()),
		booking.WithReferenceAttempts(cfg.Booking.ReferenceAttempts),
		booking.WithLockTTL(cfg.Booking.LockTTL()),
		booking.WithLocation(loc),
		booking.WithLogger(log),
	)
	userService := users.NewUserService(userRepo, tokens, log)

	metrics.StartBookingCollector(ctx, bookingRepo, cfg.Worker.MetricsRefresh(), log)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.RouterDeps{
		Flights:    flightService,
		Bookings:   bookingService,
		Users:      userService,
		Tokens:     tokens,
		Logger:     log,
		Ping:       pool.Ping,
		SwaggerDir: cfg.HTTP.SwaggerDir,
	})

	if err := bootstrap.Run(ctx, cfg.HTTP.Address, router, log); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
