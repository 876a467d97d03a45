package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/repository"
	"github.com/Domenick1991/airport-booking/internal/service/booking"
)

type BookingHandler struct {
	service booking.BookingUseCase
	logger  logrus.FieldLogger
}

func NewBookingHandler(service booking.BookingUseCase, logger logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{service: service, logger: logger}
}

// Register expects router to already require authentication.
func (h *BookingHandler) Register(router *gin.RouterGroup, adminOnly gin.HandlerFunc) {
	router.POST("", h.create)
	router.GET("", adminOnly, h.listAll)
	router.GET("/my-bookings", h.listMine)
	router.GET("/admin/all", adminOnly, h.listAll)
	router.GET("/flight/:flightId/passengers", adminOnly, h.passengers)
	router.GET("/:id", h.get)
	router.PUT("/:id/cancel", h.cancel)
}

func (h *BookingHandler) create(c *gin.Context) {
	identity, _ := identityFrom(c)

	var req booking.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "Invalid request body")
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), identity, req)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, created)
}

func (h *BookingHandler) listMine(c *gin.Context) {
	identity, _ := identityFrom(c)

	bookings, err := h.service.GetUserBookings(c.Request.Context(), identity.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondList(c, bookings)
}

func (h *BookingHandler) listAll(c *gin.Context) {
	var filter repository.BookingFilter
	if status := c.Query("status"); status != "" {
		switch s := domain.BookingStatus(status); s {
		case domain.BookingStatusPending, domain.BookingStatusConfirmed, domain.BookingStatusCancelled:
			filter.Status = s
		default:
			badRequest(c, "status", "status must be one of [pending confirmed cancelled]")
			return
		}
	}
	if raw := c.Query("flightId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "flightId", "flightId must be a valid id")
			return
		}
		filter.FlightID = id
	}

	result, err := h.service.GetAllBookings(c.Request.Context(), filter, pageFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondPage(c, result)
}

func (h *BookingHandler) get(c *gin.Context) {
	identity, _ := identityFrom(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.NotFound("Booking not found"))
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), id, identity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, b)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	identity, _ := identityFrom(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.NotFound("Booking not found"))
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), id, identity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Success: true, Data: b, Message: "Booking cancelled successfully"})
}

func (h *BookingHandler) passengers(c *gin.Context) {
	id, err := uuid.Parse(c.Param("flightId"))
	if err != nil {
		writeError(c, h.logger, domain.NotFound("Flight not found"))
		return
	}

	records, err := h.service.GetFlightPassengers(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondList(c, records)
}

// pageFrom reads page and limit; anything unparsable falls back to the defaults.
func pageFrom(c *gin.Context) domain.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return domain.NewPage(page, limit)
}
