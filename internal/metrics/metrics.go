package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Bookings
	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Bookings created, by cabin class.",
		},
		[]string{"seat_class"},
	)
	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_cancelled_total",
			Help: "Bookings cancelled.",
		},
	)
	bookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_rejected_total",
			Help: "Booking requests rejected by a business rule, by reason.",
		},
		[]string{"reason"},
	)
	bookingPassengers = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "booking_passengers",
			Help:    "Passengers per created booking.",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 20, 50, 150},
		},
	)
	referenceRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_reference_retries_total",
			Help: "Booking reference regenerations after a uniqueness conflict.",
		},
	)
	bookingStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bookings_status_count",
			Help: "Current count of bookings by status.",
		},
		[]string{"status"},
	)

	// Kafka
	kafkaMessagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_messages_sent_total",
			Help: "Total number of Kafka messages successfully sent.",
		},
	)
	kafkaMessagesProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Total number of Kafka messages successfully processed.",
		},
	)
	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_errors_total",
			Help: "Total number of Kafka-related errors.",
		},
		[]string{"component", "operation"},
	)

	// Redis
	redisRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Total number of Redis requests.",
		},
		[]string{"operation"},
	)
	redisHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_hits_total",
			Help: "Total number of cache hits.",
		},
	)
	redisMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_cache_misses_total",
			Help: "Total number of cache misses.",
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			bookingsCreated,
			bookingsCancelled,
			bookingsRejected,
			bookingPassengers,
			referenceRetries,
			bookingStatus,

			kafkaMessagesSent,
			kafkaMessagesProcessed,
			kafkaErrors,

			redisRequests,
			redisHits,
			redisMisses,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// --- HTTP ---
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	c := strconv.Itoa(code)
	httpRequests.WithLabelValues(method, route, c).Inc()
	httpDuration.WithLabelValues(method, route, c).Observe(d.Seconds())
}

// --- Bookings ---
func ObserveBookingCreated(seatClass string, passengers int) {
	bookingsCreated.WithLabelValues(seatClass).Inc()
	bookingPassengers.Observe(float64(passengers))
}
func IncBookingCancelled()             { bookingsCancelled.Inc() }
func IncBookingRejected(reason string) { bookingsRejected.WithLabelValues(reason).Inc() }
func IncReferenceRetry()               { referenceRetries.Inc() }
func SetBookingStatusCount(status string, count int64) {
	if count < 0 {
		count = 0
	}
	bookingStatus.WithLabelValues(status).Set(float64(count))
}

// --- Kafka ---
func IncKafkaSent()      { kafkaMessagesSent.Inc() }
func IncKafkaProcessed() { kafkaMessagesProcessed.Inc() }
func IncKafkaError(component, operation string) {
	kafkaErrors.WithLabelValues(component, operation).Inc()
}

// --- Redis ---
func IncRedisRequest(operation string) { redisRequests.WithLabelValues(operation).Inc() }
func IncRedisHit()                     { redisHits.Inc() }
func IncRedisMiss()                    { redisMisses.Inc() }
