package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/domain"
)

// StatusCounter reports how many bookings sit in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[domain.BookingStatus]int64, error)
}

var trackedStatuses = []domain.BookingStatus{
	domain.BookingStatusConfirmed,
	domain.BookingStatusCancelled,
	domain.BookingStatusPending,
}

// StartBookingCollector refreshes the booking status gauges every interval until ctx ends.
func StartBookingCollector(ctx context.Context, counter StatusCounter, interval time.Duration, logger logrus.FieldLogger) {
	if counter == nil {
		return
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		UpdateBookingGauges(ctx, counter, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				UpdateBookingGauges(ctx, counter, logger)
			}
		}
	}()
}

func UpdateBookingGauges(ctx context.Context, counter StatusCounter, logger logrus.FieldLogger) {
	counts, err := counter.CountByStatus(ctx)
	if err != nil {
		logger.WithError(err).Warn("metrics: count bookings by status")
		return
	}
	for _, s := range trackedStatuses {
		SetBookingStatusCount(string(s), counts[s])
	}
}
