package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/domain"
	"github.com/Domenick1991/airport-booking/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
	logger  logrus.FieldLogger
}

func NewFlightHandler(service flights.FlightUseCase, logger logrus.FieldLogger) *FlightHandler {
	return &FlightHandler{service: service, logger: logger}
}

func (h *FlightHandler) Register(router *gin.RouterGroup, auth, adminOnly gin.HandlerFunc) {
	router.GET("", h.list)
	router.GET("/search", h.search)
	router.GET("/:id", h.get)
	router.POST("", auth, adminOnly, h.create)
	router.PUT("/:id", auth, adminOnly, h.update)
	router.DELETE("/:id", auth, adminOnly, h.delete)
}

func (h *FlightHandler) list(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), flights.ListInput{
		Departure: c.Query("departure"),
		Arrival:   c.Query("arrival"),
		Date:      c.Query("date"),
	}, pageFrom(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondPage(c, result)
}

func (h *FlightHandler) search(c *gin.Context) {
	input := flights.SearchInput{
		From:          c.Query("from"),
		To:            c.Query("to"),
		DepartureDate: c.Query("departureDate"),
		SeatClass:     domain.SeatClass(c.Query("class")),
	}
	if raw := c.Query("passengers"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, "passengers", "passengers must be a positive number")
			return
		}
		input.Passengers = n
	}

	found, err := h.service.Search(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondList(c, found)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.NotFound("Flight not found"))
		return
	}
	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, flight)
}

func (h *FlightHandler) create(c *gin.Context) {
	var flight domain.Flight
	if err := c.ShouldBindJSON(&flight); err != nil {
		badRequest(c, "body", "Invalid request body")
		return
	}
	created, err := h.service.Create(c.Request.Context(), &flight)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusCreated, created)
}

func (h *FlightHandler) update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.NotFound("Flight not found"))
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "body", "Invalid request body")
		return
	}

	// Fields absent from the body keep their stored values.
	updated, err := h.service.Update(c.Request.Context(), id, func(f *domain.Flight) error {
		if err := json.Unmarshal(body, f); err != nil {
			return domain.NewValidationError("body", "Invalid request body")
		}
		return nil
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	respond(c, http.StatusOK, updated)
}

func (h *FlightHandler) delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, h.logger, domain.NotFound("Flight not found"))
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "Flight removed")
}
