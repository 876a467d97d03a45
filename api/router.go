package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/Domenick1991/airport-booking/internal/metrics"
	"github.com/Domenick1991/airport-booking/internal/service/booking"
	"github.com/Domenick1991/airport-booking/internal/service/flights"
	"github.com/Domenick1991/airport-booking/internal/service/users"
)

type RouterDeps struct {
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	Users    users.UserUseCase
	Tokens   Authenticator
	Logger   logrus.FieldLogger
	// Ping reports whether the store answers. Optional.
	Ping func(ctx context.Context) error
	// SwaggerDir holds openapi.json. Empty disables /swagger.
	SwaggerDir string
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), metrics.GinMiddleware(), RequestLogger(deps.Logger))

	auth := RequireAuth(deps.Tokens, deps.Users, deps.Logger)
	adminOnly := RequireAdmin(deps.Logger)

	health := healthHandler(deps.Ping)
	router.GET("/health", health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/health", health)
	NewUserHandler(deps.Users, deps.Logger).Register(api.Group("/users"), auth, adminOnly)
	NewFlightHandler(deps.Flights, deps.Logger).Register(api.Group("/flights"), auth, adminOnly)
	NewBookingHandler(deps.Bookings, deps.Logger).Register(api.Group("/bookings", auth), adminOnly)

	if deps.SwaggerDir != "" {
		router.StaticFile("/openapi.json", deps.SwaggerDir+"/openapi.json")
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{Success: false, Message: "Route not found"})
	})
	return router
}

func healthHandler(ping func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)}
		if ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, envelope{Success: false, Message: "Database unavailable", Data: data})
				return
			}
		}
		c.JSON(http.StatusOK, envelope{Success: true, Message: "Airport booking API is running", Data: data})
	}
}
