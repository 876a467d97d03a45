package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/config"
	"github.com/Domenick1991/airport-booking/internal/email"
	"github.com/Domenick1991/airport-booking/internal/kafka"
	"github.com/Domenick1991/airport-booking/internal/logger"
	"github.com/Domenick1991/airport-booking/internal/metrics"
	"github.com/Domenick1991/airport-booking/internal/repository"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	pool, err := repository.NewPool(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.WithError(err).Warn("postgres unavailable, booking status gauges disabled")
	} else {
		defer pool.Close()
		metrics.StartBookingCollector(ctx, repository.NewBookingRepository(pool), cfg.Worker.MetricsRefresh(), log)
	}

	if addr := cfg.Worker.MetricsAddress; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("worker metrics server stopped")
			}
		}()
		defer srv.Close()
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, log)
	defer consumer.Close()

	sender := email.NewSender(cfg.Worker.EmailFrom, log)

	log.WithField("topic", cfg.Kafka.NotificationsTopic).Info("notification worker started")
	err = consumer.ConsumeBookingEvents(ctx, func(ctx context.Context, event kafka.BookingEvent) error {
		if err := sender.Send(ctx, event); err != nil {
			metrics.IncKafkaError("worker", "send_email")
			log.WithError(err).WithFields(logrus.Fields{
				"booking_id": event.BookingID,
				"event":      event.Type,
			}).Error("send notification")
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("consumer stopped")
		return
	}
	log.Info("notification worker stopped")
}
